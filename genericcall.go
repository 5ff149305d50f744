package dbus

import "context"

// Call invokes method on f and decodes its response into a value of
// type T.
//
// B is usually inferred from body. It must be given explicitly when
// body is nil or an untyped constant, as in Call[[]string, any](ctx,
// f, "Frob", nil).
func Call[T, B any](ctx context.Context, f Interface, method string, body B, opts ...CallOption) (T, error) {
	var resp T
	err := f.Call(ctx, method, body, &resp, opts...)
	return resp, err
}

// GetProperty reads the named property of f and decodes it into a
// value of type T.
func GetProperty[T any](ctx context.Context, f Interface, name string, opts ...CallOption) (T, error) {
	var resp T
	err := f.GetProperty(ctx, name, &resp, opts...)
	return resp, err
}
