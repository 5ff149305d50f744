package dbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/outpost-systems/dbus/fragments"
)

// sigKind identifies the shape of a node in a parsed type signature.
type sigKind uint8

const (
	kInvalid sigKind = iota
	kByte
	kBool
	kInt16
	kUint16
	kInt32
	kUint32
	kInt64
	kUint64
	kFloat64
	kString
	kObjectPath
	kSignature
	kUnixFD
	kVariant
	kArray
	kStruct
	kDictEntry
)

// basicCodes maps the DBus type signature code of a basic type to its
// sigKind, and codeOf is its inverse.
var basicCodes = map[byte]sigKind{
	'y': kByte,
	'b': kBool,
	'n': kInt16,
	'q': kUint16,
	'i': kInt32,
	'u': kUint32,
	'x': kInt64,
	't': kUint64,
	'd': kFloat64,
	's': kString,
	'o': kObjectPath,
	'g': kSignature,
	'h': kUnixFD,
	'v': kVariant,
}

func codeOf(k sigKind) byte {
	for c, kk := range basicCodes {
		if kk == k {
			return c
		}
	}
	return 0
}

// maxSigDepth and maxSigLen are the DBus-specified limits on container
// nesting and total signature length.
const (
	maxSigDepth = 32
	maxSigLen   = 255
)

// sigNode is one node of a parsed DBus type signature tree. It is the
// tree-structured analog of the signature string: basic types are
// leaves, and array/struct/dict-entry/variant types recurse into
// their element(s).
type sigNode struct {
	kind sigKind

	// elem is the element type of an array (kArray).
	elem *sigNode
	// fields are the member types of a struct (kStruct), in order.
	fields []*sigNode
	// key and val are the key and value types of a dict entry
	// (kDictEntry).
	key, val *sigNode

	// rt is the reflect.Type this node derives when asked for one, or
	// nil if not yet computed. It is a secondary, lazily-computed view
	// of the tree used to bridge into the native Go struct/slice/map
	// marshaling machinery; the tree itself, not rt, is the type's
	// primary representation.
	rt reflect.Type
}

// goType returns the native Go type used to carry values described by
// n. The mapping is one of many possible Go representations of the
// signature (maps and slices for containers, the fixed-width numeric
// types for basics); callers that need the canonical wire shape
// should walk the tree directly instead.
func (n *sigNode) goType() reflect.Type {
	if n == nil {
		return nil
	}
	if n.rt != nil {
		return n.rt
	}
	switch n.kind {
	case kVariant:
		n.rt = variantType
	case kArray:
		if n.elem.kind == kDictEntry {
			n.rt = reflect.MapOf(n.elem.key.goType(), n.elem.val.goType())
		} else {
			n.rt = reflect.SliceOf(n.elem.goType())
		}
	case kStruct:
		fs := make([]reflect.StructField, len(n.fields))
		for i, f := range n.fields {
			fs[i] = reflect.StructField{
				Name: fmt.Sprintf("Field%d", i),
				Type: f.goType(),
			}
		}
		n.rt = reflect.StructOf(fs)
	case kDictEntry:
		// Dict entries only ever appear as array elements; goType is
		// never called on one directly.
		return nil
	default:
		if rt, ok := strToType[codeOf(n.kind)]; ok {
			n.rt = rt
		}
	}
	return n.rt
}

// render writes the canonical signature string for n to b.
func (n *sigNode) render(b *strings.Builder) {
	if c := codeOf(n.kind); c != 0 {
		b.WriteByte(c)
		return
	}
	switch n.kind {
	case kArray:
		b.WriteByte('a')
		n.elem.render(b)
	case kStruct:
		b.WriteByte('(')
		for _, f := range n.fields {
			f.render(b)
		}
		b.WriteByte(')')
	case kDictEntry:
		b.WriteByte('{')
		n.key.render(b)
		n.val.render(b)
		b.WriteByte('}')
	}
}

// A Signature describes the type of a DBus value, as a parsed tree of
// basic and container type nodes (see the DBus specification's type
// signature grammar).
type Signature struct {
	node *sigNode
	str  string
}

func (s Signature) asMsgBody() Signature {
	if s.node == nil || s.node.kind != kStruct {
		return s
	}
	return Signature{s.node, s.str[1 : len(s.str)-1]}
}

func (s Signature) asStruct() Signature {
	if s.IsZero() {
		return Signature{}
	}
	if s.node.kind == kStruct {
		return s
	}
	n := &sigNode{kind: kStruct, fields: []*sigNode{s.node}}
	return Signature{n, "(" + s.str + ")"}
}

// String returns the string encoding of the Signature, as described
// in the DBus specification.
func (s Signature) String() string {
	return s.str
}

// IsZero reports whether the signature is the zero value. A zero
// Signature describes a void value.
func (s Signature) IsZero() bool {
	return s.node == nil
}

// Type returns a reflect.Type capable of carrying values matching the
// Signature. It exists to bridge into code that decodes into a
// concrete Go type derived purely from the wire signature (for
// example, an unrecognized property or variant payload); the
// Signature's own tree, not this derived type, is authoritative for
// marshaling.
//
// If [Signature.IsZero] is true, Type returns nil.
func (s Signature) Type() reflect.Type {
	return s.node.goType()
}

var (
	typeToSignature cache[reflect.Type, Signature]
	strToSignature  cache[string, Signature]
)

var signatureSignature = mkSignature(&sigNode{kind: kSignature}, "g")

func (s Signature) SignatureDBus() Signature { return signatureSignature }

func (s Signature) IsDBusStruct() bool { return false }

// MarshalDBus writes s using DBus's signature wire format: a single
// length byte (unlike strings, which use a 4-byte length), the
// signature bytes, and a trailing nul. Signatures have alignment 1,
// so no padding is inserted.
func (s Signature) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	if len(s.str) > maxSigLen {
		return fmt.Errorf("signature %q exceeds %d bytes", s.str, maxSigLen)
	}
	e.Uint8(uint8(len(s.str)))
	e.Write([]byte(s.str))
	e.Uint8(0)
	return nil
}

// UnmarshalDBus reads a signature in the wire format written by
// MarshalDBus.
func (s *Signature) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	ln, err := d.Uint8()
	if err != nil {
		return err
	}
	bs, err := d.Read(int(ln) + 1)
	if err != nil {
		return err
	}
	parsed, err := ParseSignature(string(bs[:len(bs)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func mkSignature(node *sigNode, str string) Signature {
	return Signature{node, str}
}

// ParseSignature parses a DBus type signature string into a
// Signature tree.
func ParseSignature(sig string) (Signature, error) {
	if ret, err := strToSignature.Get(sig); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return Signature{}, err
	}

	if len(sig) > maxSigLen {
		err := fmt.Errorf("invalid type signature %q: exceeds %d bytes", sig, maxSigLen)
		strToSignature.SetErr(sig, err)
		return Signature{}, err
	}

	var (
		rest  = sig
		parts []*sigNode
		part  *sigNode
		err   error
	)
	for rest != "" {
		part, rest, err = parseNode(rest, false, 0)
		if err != nil {
			err := fmt.Errorf("invalid type signature %q: %w", sig, err)
			strToSignature.SetErr(sig, err)
			return Signature{}, err
		}
		parts = append(parts, part)
	}

	var ret Signature
	switch len(parts) {
	case 0:
		ret = mkSignature(nil, "")
	case 1:
		ret = mkSignature(parts[0], sig)
	default:
		st := &sigNode{kind: kStruct, fields: parts}
		ret = mkSignature(st, "("+sig+")")
		// Also add the adjusted struct signature to cache.
		strToSignature.Set(ret.str, ret)
	}

	strToSignature.Set(sig, ret)

	return ret, nil
}

func mustParseSignature(sig string) Signature {
	ret, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return ret
}

// parseNode consumes the first complete type from the front of sig,
// and returns the corresponding signature tree node as well as the
// remainder of the type string. depth tracks container nesting, which
// DBus caps at maxSigDepth.
func parseNode(sig string, inArray bool, depth int) (n *sigNode, rest string, err error) {
	if sig == "" {
		return nil, "", errors.New("unexpected end of signature")
	}
	if depth > maxSigDepth {
		return nil, "", fmt.Errorf("signature nests more than %d levels deep", maxSigDepth)
	}

	if k, ok := basicCodes[sig[0]]; ok {
		return &sigNode{kind: k}, sig[1:], nil
	}

	switch sig[0] {
	case 'a':
		elem, rest, err := parseNode(sig[1:], true, depth+1)
		if err != nil {
			return nil, "", err
		}
		return &sigNode{kind: kArray, elem: elem}, rest, nil
	case '(':
		var (
			fields []*sigNode
			field  *sigNode
			rest   = sig[1:]
			err    error
		)
		for rest != "" && rest[0] != ')' {
			field, rest, err = parseNode(rest, false, depth+1)
			if err != nil {
				return nil, "", err
			}
			fields = append(fields, field)
		}
		if rest == "" {
			return nil, "", errors.New("missing closing ) in struct definition")
		}
		return &sigNode{kind: kStruct, fields: fields}, rest[1:], nil
	case '{':
		if !inArray {
			return nil, "", errors.New("dict entry type found outside array")
		}
		key, rest, err := parseNode(sig[1:], false, depth+1)
		if err != nil {
			return nil, "", err
		}
		if key.kind == kArray || key.kind == kStruct || key.kind == kDictEntry || key.kind == kVariant {
			return nil, "", fmt.Errorf("invalid dict entry key type, must be a dbus basic type")
		}
		val, rest, err := parseNode(rest, false, depth+1)
		if err != nil {
			return nil, "", err
		}
		if rest == "" || rest[0] != '}' {
			return nil, "", errors.New("missing closing } in dict entry definition")
		}
		return &sigNode{kind: kDictEntry, key: key, val: val}, rest[1:], nil
	default:
		return nil, "", fmt.Errorf("unknown type specifier %q", sig[0])
	}
}

// A signer provides its own DBus signature.
type signer interface {
	SignatureDBus() Signature
}

var signerType = reflect.TypeFor[signer]()

// SignatureFor returns the Signature for the given type.
func SignatureFor[T any]() (Signature, error) {
	return signatureFor(reflect.TypeFor[T](), nil)
}

// SignatureOf returns the Signature of the given value.
func SignatureOf(v any) (Signature, error) {
	return signatureFor(reflect.TypeOf(v), nil)
}

// goKindToSigKind maps the reflect.Kinds of the basic types
// representable by DBus to the corresponding signature tree kind.
var goKindToSigKind = map[reflect.Kind]sigKind{
	reflect.Bool:    kBool,
	reflect.Uint8:   kByte,
	reflect.Int16:   kInt16,
	reflect.Uint16:  kUint16,
	reflect.Int32:   kInt32,
	reflect.Uint32:  kUint32,
	reflect.Int64:   kInt64,
	reflect.Uint64:  kUint64,
	reflect.Float64: kFloat64,
	reflect.String:  kString,
}

func signatureFor(t reflect.Type, stack []reflect.Type) (sig Signature, err error) {
	if ret, err := typeToSignature.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return Signature{}, err
	}

	if slices.Contains(stack, t) {
		return Signature{}, errors.New("recursive type signature")
	}
	stack = append(stack, t)

	// Note, defer captures the type value before we mess with it
	// below.
	defer func(t reflect.Type) {
		if err != nil {
			typeToSignature.SetErr(t, err)
		} else {
			typeToSignature.Set(t, sig)
		}
	}(t)

	if t == nil {
		return Signature{}, typeErr(t, "nil interface")
	}

	t = derefType(t)

	if pt := reflect.PointerTo(t); pt.Implements(marshalerType) || pt.Implements(unmarshalerType) {
		if t.Implements(signerType) {
			return reflect.Zero(t).Interface().(signer).SignatureDBus(), nil
		} else {
			return reflect.Zero(pt).Interface().(signer).SignatureDBus(), nil
		}
	}

	switch t {
	case reflect.TypeFor[Signature]():
		return mkSignature(&sigNode{kind: kSignature}, "g"), nil
	case reflect.TypeFor[ObjectPath]():
		return mkSignature(&sigNode{kind: kObjectPath}, "o"), nil
	case reflect.TypeFor[File]():
		return mkSignature(&sigNode{kind: kUnixFD}, "h"), nil
	case reflect.TypeFor[any]():
		return mkSignature(&sigNode{kind: kVariant}, "v"), nil
	}

	if bk, ok := goKindToSigKind[t.Kind()]; ok {
		return mkSignature(&sigNode{kind: bk}, string(codeOf(bk))), nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		es, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return Signature{}, err
		}
		return mkSignature(&sigNode{kind: kArray, elem: es.node}, "a"+es.str), nil
	case reflect.Map:
		k := t.Key()
		if k == reflect.TypeFor[any]() {
			return Signature{}, typeErr(t, "map keys cannot be any")
		}
		switch k.Kind() {
		case reflect.Slice:
			return Signature{}, typeErr(t, "map keys cannot be slices")
		case reflect.Array:
			return Signature{}, typeErr(t, "map keys cannot be arrays")
		case reflect.Struct:
			return Signature{}, typeErr(t, "map keys cannot be structs")
		}
		ks, err := signatureFor(k, stack)
		if err != nil {
			return Signature{}, err
		}
		vs, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return Signature{}, err
		}

		dict := &sigNode{kind: kDictEntry, key: ks.node, val: vs.node}
		return mkSignature(&sigNode{kind: kArray, elem: dict}, "a{"+ks.str+vs.str+"}"), nil
	case reflect.Struct:
		fs, err := getStructInfo(t)
		if err != nil {
			return Signature{}, typeErr(t, "getting struct info: %w", err)
		}
		var nodes []*sigNode
		var s []string
		for _, f := range fs.StructFields {
			// Descend through all fields, to look for cyclic
			// references.
			fieldSig, err := signatureFor(f.Type, stack)
			if err != nil {
				return Signature{}, err
			}
			nodes = append(nodes, fieldSig.node)
			s = append(s, fieldSig.str)
		}
		st := &sigNode{kind: kStruct, fields: nodes}
		if fs.NoPad {
			return mkSignature(st, strings.Join(s, "")), nil
		}
		return mkSignature(st, "("+strings.Join(s, "")+")"), nil
	}

	return Signature{}, typeErr(t, "no mapping available")
}
