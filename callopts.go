package dbus

// CallOption adjusts the behavior of a method call.
type CallOption func(*callOpts)

type callOpts struct {
	noReply     bool
	noAutoStart bool
	interactive bool
}

func resolveCallOpts(opts []CallOption) callOpts {
	var ret callOpts
	for _, opt := range opts {
		opt(&ret)
	}
	return ret
}

func (o callOpts) flags() byte {
	var f byte
	if o.noReply {
		f |= flagNoReplyExpected
	}
	if o.noAutoStart {
		f |= flagNoAutoStart
	}
	if o.interactive {
		f |= flagAllowInteractiveAuthorization
	}
	return f
}

// noReply tells call not to wait for, or expect, a response from the
// peer. It is used internally by Interface.OneWay.
func noReply() CallOption {
	return func(o *callOpts) { o.noReply = true }
}

// WithNoAutoStart tells the bus not to launch an activatable service
// to handle the call if no matching peer is currently running.
func WithNoAutoStart() CallOption {
	return func(o *callOpts) { o.noAutoStart = true }
}

// WithInteractiveAuthorization tells the peer that the caller is
// prepared to wait for an interactive authorization prompt (such as a
// polkit dialog) if one is required to complete the call.
func WithInteractiveAuthorization() CallOption {
	return func(o *callOpts) { o.interactive = true }
}
