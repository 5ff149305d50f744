package dbus

import (
	"context"
	"fmt"
	"reflect"

	"github.com/outpost-systems/dbus/fragments"
)

// Variant is a DBus value whose type is carried alongside the value
// itself on the wire, rather than being fixed by its container's
// signature.
type Variant struct {
	Value any
}

var variantType = reflect.TypeFor[Variant]()

func (v Variant) IsDBusStruct() bool { return false }

var variantSignature = mkSignature(&sigNode{kind: kVariant}, "v")

func (v Variant) SignatureDBus() Signature { return variantSignature }

func (v Variant) MarshalDBus(ctx context.Context, e *fragments.Encoder) error {
	sig, err := SignatureOf(v.Value)
	if err != nil {
		return err
	}
	if err := e.Value(ctx, sig); err != nil {
		return err
	}
	return e.Value(ctx, v.Value)
}

func (v *Variant) UnmarshalDBus(ctx context.Context, d *fragments.Decoder) error {
	var sig Signature
	if err := d.Value(ctx, &sig); err != nil {
		return fmt.Errorf("reading Variant signature: %w", err)
	}
	t := sig.Type()
	if t == nil {
		return fmt.Errorf("unsupported Variant type signature %q", sig)
	}
	inner := reflect.New(t)
	if err := d.Value(ctx, inner.Interface()); err != nil {
		return fmt.Errorf("reading Variant value (signature %q): %w", sig, err)
	}
	v.Value = inner.Elem().Interface()
	return nil
}
