package dbus

import (
	"context"
	"errors"
	"os"
)

type headerContextKey struct{}

type headerCtxVal struct {
	c   *Conn
	hdr *header
}

// withContextHeader attaches the message header a body is being
// encoded for (or was decoded from) to ctx, so that nested
// Marshaler/Unmarshaler implementations can recover details about the
// message they're part of, such as the identity of a signal's
// emitter.
func withContextHeader(ctx context.Context, c *Conn, hdr *header) context.Context {
	return context.WithValue(ctx, headerContextKey{}, headerCtxVal{c, hdr})
}

// ContextEmitter returns the Interface that sent the message whose
// body is currently being decoded, if ctx was derived from a dispatch
// of an incoming message with a known sender.
func ContextEmitter(ctx context.Context) (Interface, bool) {
	v, ok := ctx.Value(headerContextKey{}).(headerCtxVal)
	if !ok || v.hdr.Sender == "" {
		return Interface{}, false
	}
	return v.c.Peer(v.hdr.Sender).Object(v.hdr.Path).Interface(v.hdr.Interface), true
}

type filesContextKey struct{}

// withContextFiles attaches the file descriptors received alongside
// an incoming message to ctx, so that File values in the message body
// can be resolved to the os.File they refer to.
func withContextFiles(ctx context.Context, files []*os.File) context.Context {
	return context.WithValue(ctx, filesContextKey{}, files)
}

func contextFile(ctx context.Context, idx uint32) *os.File {
	v := ctx.Value(filesContextKey{})
	if v == nil {
		return nil
	}
	fs, ok := v.([]*os.File)
	if !ok {
		return nil
	}
	if int(idx) >= len(fs) {
		return nil
	}

	return fs[int(idx)]
}

type writeFilesContextKey struct{}

// withContextPutFiles attaches the out-of-band file descriptor list
// being accumulated for an outgoing message to ctx, so that File
// values in the message body can append themselves to it.
func withContextPutFiles(ctx context.Context, files *[]*os.File) context.Context {
	return context.WithValue(ctx, writeFilesContextKey{}, files)
}

func contextPutFile(ctx context.Context, file *os.File) (idx uint32, err error) {
	v := ctx.Value(writeFilesContextKey{})
	if v == nil {
		return 0, errors.New("cannot send file descriptor: invalid context")
	}
	fsp, ok := v.(*[]*os.File)
	if !ok || fsp == nil {
		return 0, errors.New("cannot send file descriptor: invalid context")
	}

	*fsp = append(*fsp, file)
	return uint32(len(*fsp) - 1), nil
}
