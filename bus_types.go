package dbus

// NameOwnerChanged is the payload of org.freedesktop.DBus's
// NameOwnerChanged signal, emitted whenever a bus name's owner
// changes, including names gaining or losing their only owner.
type NameOwnerChanged struct {
	Name     string
	OldOwner string
	NewOwner string
}

// NameLost is the payload of org.freedesktop.DBus's NameLost signal,
// sent to a client that has just lost ownership of a bus name.
type NameLost struct {
	Name string
}

// NameAcquired is the payload of org.freedesktop.DBus's NameAcquired
// signal, sent to a client that has just gained ownership of a bus
// name.
type NameAcquired struct {
	Name string
}

// ActivatableServicesChanged is the payload of
// org.freedesktop.DBus's ActivatableServicesChanged signal, emitted
// when the set of activatable services changes.
type ActivatableServicesChanged struct{}

// PropertiesChanged is the payload of
// org.freedesktop.DBus.Properties's PropertiesChanged signal.
type PropertiesChanged struct {
	InterfaceName         string
	ChangedProperties     map[string]Variant
	InvalidatedProperties []string
}

// InterfacesAdded is the payload of
// org.freedesktop.DBus.ObjectManager's InterfacesAdded signal.
type InterfacesAdded struct {
	ObjectPath ObjectPath
	Interfaces map[string]map[string]Variant
}

// InterfacesRemoved is the payload of
// org.freedesktop.DBus.ObjectManager's InterfacesRemoved signal.
type InterfacesRemoved struct {
	ObjectPath ObjectPath
	Interfaces []string
}
