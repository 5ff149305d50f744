package dbus

import (
	"context"
	"path"
	"strings"

	"github.com/outpost-systems/dbus/fragments"
)

// ObjectPath is a slash-separated identifier for an object exported
// on a DBus connection, e.g. "/org/freedesktop/DBus".
type ObjectPath string

func (p ObjectPath) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	return e.Value(ctx, string(p))
}

func (p *ObjectPath) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	var s string
	if err := d.Value(ctx, &s); err != nil {
		return err
	}
	*p = ObjectPath(s)
	return nil
}

func (p ObjectPath) IsDBusStruct() bool { return false }

var objectPathSignature = mkSignature(&sigNode{kind: kObjectPath}, "o")

func (p ObjectPath) SignatureDBus() Signature { return objectPathSignature }

func (p ObjectPath) String() string { return string(p) }

// Clean returns the object path with "." and ".." elements resolved
// and any trailing slash removed, except for the root path "/".
func (p ObjectPath) Clean() ObjectPath {
	if p == "" {
		return "/"
	}
	c := path.Clean(string(p))
	return ObjectPath(c)
}

// IsChildOf reports whether p is equal to prefix, or is nested under
// it. The root path "/" is a prefix of every path.
func (p ObjectPath) IsChildOf(prefix ObjectPath) bool {
	prefix = prefix.Clean()
	p = p.Clean()
	if prefix == "/" {
		return true
	}
	if p == prefix {
		return true
	}
	return strings.HasPrefix(string(p), string(prefix)+"/")
}
