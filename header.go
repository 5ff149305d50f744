package dbus

import (
	"context"
	"fmt"
	"sort"

	"github.com/outpost-systems/dbus/fragments"
)

// msgType is the type of a DBus message.
type msgType byte

const (
	msgTypeCall msgType = iota + 1
	msgTypeReturn
	msgTypeError
	msgTypeSignal
)

// headerFieldID identifies one entry of the header field array
// a(yv), per the DBus wire format.
type headerFieldID byte

const (
	fieldPath        headerFieldID = 1
	fieldInterface   headerFieldID = 2
	fieldMember      headerFieldID = 3
	fieldErrorName   headerFieldID = 4
	fieldReplySerial headerFieldID = 5
	fieldDestination headerFieldID = 6
	fieldSender      headerFieldID = 7
	fieldSignature   headerFieldID = 8
	fieldUnixFDs     headerFieldID = 9
)

// header is a DBus message header.
type header struct {
	// Type is the message's type.
	Type msgType
	// Flags is the message's flag byte.
	Flags byte
	// Version is the DBus protocol version
	Version uint8
	// Length is the length of the message body, not including the
	// header or padding between header and body.
	Length uint32
	// Serial is the serial for this message. It must be non-zero.
	Serial uint32

	// Path is the target object for a call, or the source object
	// for a signal. Required for msgTypeCall and msgTypeSignal.
	Path ObjectPath
	// Interface is the interface to target for a call, or the
	// source interface for a signal. Required for msgTypeCall and
	// msgTypeSignal.
	Interface string
	// Member is the method name for a call, or signal name for a
	// signal. Required for msgTypeCall and msgTypeSignal.
	Member string
	// ErrName is the name of the error that occurred. Required
	// for msgTypeError.
	ErrName string
	// ReplySerial is the message serial to which this message is
	// replying. Required for msgTypeReturn and msgTypeError.
	ReplySerial uint32
	// Destination is the target for a message. Required for
	// msgTypeCall, optional for everything else.
	Destination string
	// Sender is the client ID of the message sender. The message
	// bus populates this value itself, any sent value is ignored
	// and removed.
	Sender string
	// Signature is the type signature of the request
	// body. Required if a message body is present.
	Signature Signature
	// NumFDs is the number of file descriptors attached to this
	// message. Required if file descriptors are attached to the
	// message.
	NumFDs uint32

	// Unknown collects header fields this package doesn't recognize,
	// keyed by their field id.
	Unknown map[uint8]Variant
}

// Valid checks that the message header is valid for its message type.
func (h *header) Valid() error {
	if h.Serial == 0 {
		return fmt.Errorf("invalid message with zero Serial")
	}
	switch h.Type {
	case 0:
		return fmt.Errorf("invalid message with Type 0")
	case msgTypeCall:
		if h.Path == "" {
			return fmt.Errorf("missing required header field Path")
		}
		if h.Interface == "" {
			return fmt.Errorf("missing required header field Interface")
		}
		if h.Member == "" {
			return fmt.Errorf("missing required header field Member")
		}
		if h.Destination == "" {
			return fmt.Errorf("missing required header field Destination")
		}
	case msgTypeReturn:
		if h.ReplySerial == 0 {
			return fmt.Errorf("missing required header field ReplySerial")
		}
	case msgTypeError:
		if h.ReplySerial == 0 {
			return fmt.Errorf("missing required header field ReplySerial")
		}
		if h.ErrName == "" {
			return fmt.Errorf("missing required header field ErrName")
		}
	case msgTypeSignal:
		if h.Path == "" {
			return fmt.Errorf("missing required header field Path")
		}
		if h.Interface == "" {
			return fmt.Errorf("missing required header field Interface")
		}
		if h.Member == "" {
			return fmt.Errorf("missing required header field Member")
		}
	default:
		// Unknown message types are suspect, but the spec requires us to
		// gracefully allow them.
	}
	return nil
}

// WantReply reports whether this message requires a response.
func (h *header) WantReply() bool {
	return h.Type == msgTypeCall && h.Flags&0x1 == 0
}

// CanInteract reports whether the message's sender is prepared to
// wait for an interactive authorization prompt, if the sender lacks
// the necessary privileges for the message, and the bus or
// destination wish to trigger an interactive prompt.
func (h header) CanInteract() bool {
	return h.Type == msgTypeCall && h.Flags&0x4 != 0
}

// headerField is one entry of the on-wire header field array.
type headerField struct {
	id  headerFieldID
	val Variant
}

// fieldEntries returns h's populated fields as the (id, variant)
// pairs the wire format expects, in a deterministic order: the
// well-known fields first in their numeric order, followed by the
// Unknown fields sorted by id.
func (h *header) fieldEntries() []headerField {
	var fs []headerField
	add := func(id headerFieldID, v any) {
		fs = append(fs, headerField{id, Variant{v}})
	}
	if h.Path != "" {
		add(fieldPath, h.Path)
	}
	if h.Interface != "" {
		add(fieldInterface, h.Interface)
	}
	if h.Member != "" {
		add(fieldMember, h.Member)
	}
	if h.ErrName != "" {
		add(fieldErrorName, h.ErrName)
	}
	if h.ReplySerial != 0 {
		add(fieldReplySerial, h.ReplySerial)
	}
	if h.Destination != "" {
		add(fieldDestination, h.Destination)
	}
	if h.Sender != "" {
		add(fieldSender, h.Sender)
	}
	if !h.Signature.IsZero() {
		add(fieldSignature, h.Signature)
	}
	if h.NumFDs != 0 {
		add(fieldUnixFDs, h.NumFDs)
	}

	ids := make([]int, 0, len(h.Unknown))
	for id := range h.Unknown {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		fs = append(fs, headerField{headerFieldID(id), h.Unknown[uint8(id)]})
	}

	return fs
}

// setField stores the decoded value v for header field id, type
// checking it against the field's expected native type. Unrecognized
// ids are collected into h.Unknown.
func (h *header) setField(id headerFieldID, v Variant) error {
	typed := func(want string, dst *string) error {
		s, ok := v.Value.(string)
		if !ok {
			return fmt.Errorf("header field %s has wrong type %T, want string", want, v.Value)
		}
		*dst = s
		return nil
	}

	switch id {
	case fieldPath:
		p, ok := v.Value.(ObjectPath)
		if !ok {
			return fmt.Errorf("header field Path has wrong type %T, want ObjectPath", v.Value)
		}
		h.Path = p
	case fieldInterface:
		return typed("Interface", &h.Interface)
	case fieldMember:
		return typed("Member", &h.Member)
	case fieldErrorName:
		return typed("ErrName", &h.ErrName)
	case fieldReplySerial:
		u, ok := v.Value.(uint32)
		if !ok {
			return fmt.Errorf("header field ReplySerial has wrong type %T, want uint32", v.Value)
		}
		h.ReplySerial = u
	case fieldDestination:
		return typed("Destination", &h.Destination)
	case fieldSender:
		return typed("Sender", &h.Sender)
	case fieldSignature:
		sig, ok := v.Value.(Signature)
		if !ok {
			return fmt.Errorf("header field Signature has wrong type %T, want Signature", v.Value)
		}
		h.Signature = sig
	case fieldUnixFDs:
		u, ok := v.Value.(uint32)
		if !ok {
			return fmt.Errorf("header field NumFDs has wrong type %T, want uint32", v.Value)
		}
		h.NumFDs = u
	default:
		if h.Unknown == nil {
			h.Unknown = map[uint8]Variant{}
		}
		h.Unknown[uint8(id)] = v
	}
	return nil
}

func (h *header) SignatureDBus() Signature { return Signature{} }

func (h *header) IsDBusStruct() bool { return true }

// MarshalDBus writes the header in the wire layout
// yyyyuua(yv), preceded by the byte order mark, and followed by
// padding to the 8-byte boundary the message body starts on.
func (h *header) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	e.ByteOrderFlag()
	e.Uint8(uint8(h.Type))
	e.Uint8(h.Flags)
	e.Uint8(h.Version)
	e.Uint32(h.Length)
	e.Uint32(h.Serial)

	fields := h.fieldEntries()
	if err := e.Array(true, func() error {
		for _, f := range fields {
			if err := e.Struct(func() error {
				e.Uint8(byte(f.id))
				return e.Value(ctx, f.val)
			}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	e.Pad(8)
	return nil
}

// UnmarshalDBus reads a header in the wire layout produced by
// MarshalDBus.
func (h *header) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	if err := d.ByteOrderFlag(); err != nil {
		return err
	}
	t, err := d.Uint8()
	if err != nil {
		return err
	}
	h.Type = msgType(t)
	if h.Flags, err = d.Uint8(); err != nil {
		return err
	}
	if h.Version, err = d.Uint8(); err != nil {
		return err
	}
	if h.Length, err = d.Uint32(); err != nil {
		return err
	}
	if h.Serial, err = d.Uint32(); err != nil {
		return err
	}

	_, err = d.Array(true, func(i int) error {
		return d.Struct(func() error {
			id, err := d.Uint8()
			if err != nil {
				return err
			}
			var v Variant
			if err := d.Value(ctx, &v); err != nil {
				return err
			}
			return h.setField(headerFieldID(id), v)
		})
	})
	if err != nil {
		return err
	}

	return d.Pad(8)
}
