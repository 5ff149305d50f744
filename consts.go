package dbus

// Well-known interface names implemented by the message bus and by
// every object that speaks DBus.
const (
	ifaceBus            = "org.freedesktop.DBus"
	ifacePeer           = "org.freedesktop.DBus.Peer"
	ifaceProps          = "org.freedesktop.DBus.Properties"
	ifaceIntrospectable = "org.freedesktop.DBus.Introspectable"
	ifaceObjectManager  = "org.freedesktop.DBus.ObjectManager"
)

// busDestination and busPath identify the message bus daemon itself,
// as a destination for Call.
const (
	busDestination            = "org.freedesktop.DBus"
	busPath        ObjectPath = "/org/freedesktop/DBus"
)

// Message flag bits, as defined by the DBus wire protocol.
const (
	flagNoReplyExpected byte = 1 << iota
	flagNoAutoStart
	flagAllowInteractiveAuthorization
)
