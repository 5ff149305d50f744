package dbus

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	signalsMu        sync.Mutex
	signalNameToType = map[signalKey]reflect.Type{}
	signalTypeToName = map[reflect.Type]signalKey{}
)

type signalKey struct {
	Interface, Signal string
}

// RegisterSignalType registers T as the struct type to use when
// decoding the body of the given signal name.
//
// RegisterSignalType panics if the signal already has a registered
// type.
func RegisterSignalType[T any](interfaceName, signalName string) {
	k := signalKey{interfaceName, signalName}
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Errorf("cannot use type %s (%s) as the payload type for signal %s.%s, signal payloads must be structs", t, t.Kind(), k.Interface, k.Signal))
	}
	if _, err := SignatureFor[T](); err != nil {
		panic(fmt.Errorf("cannot use %s as dbus type for signal %s.%s: %w", t, k.Interface, k.Signal, err))
	}
	signalsMu.Lock()
	defer signalsMu.Unlock()
	if prev := signalNameToType[k]; prev != nil {
		panic(fmt.Errorf("duplicate signal type registration for %s.%s, existing registration %s", k.Interface, k.Signal, prev))
	}
	if prev, ok := signalTypeToName[t]; ok {
		panic(fmt.Errorf("duplicate signal type registration for %s, already in use by %s.%s", t, prev.Interface, prev.Signal))
	}
	signalNameToType[k] = t
	signalTypeToName[t] = k
}

// signalTypeFor returns the registered payload type for the given
// signal, or nil if no type has been registered.
func signalTypeFor(interfaceName, signalName string) reflect.Type {
	signalsMu.Lock()
	defer signalsMu.Unlock()
	return signalNameToType[signalKey{interfaceName, signalName}]
}

// signalNameFor returns the interface and signal name that t was
// registered under with [RegisterSignalType].
func signalNameFor(t reflect.Type) (signalKey, bool) {
	signalsMu.Lock()
	defer signalsMu.Unlock()
	k, ok := signalTypeToName[t]
	return k, ok
}

var (
	propsMu        sync.Mutex
	propNameToType = map[signalKey]reflect.Type{}
	propTypeToName = map[reflect.Type]signalKey{}
)

// RegisterPropertyChangeType registers T as the value type to use when
// decoding PropertiesChanged notifications for the given property.
//
// RegisterPropertyChangeType panics if the property already has a
// registered type.
func RegisterPropertyChangeType[T any](interfaceName, propName string) {
	k := signalKey{interfaceName, propName}
	t := reflect.TypeFor[T]()
	if _, err := SignatureFor[T](); err != nil {
		panic(fmt.Errorf("cannot use %s as dbus type for property %s.%s: %w", t, k.Interface, k.Signal, err))
	}
	propsMu.Lock()
	defer propsMu.Unlock()
	if prev, ok := propNameToType[k]; ok {
		panic(fmt.Errorf("duplicate property type registration for %s.%s, existing registration %s", k.Interface, k.Signal, prev))
	}
	propNameToType[k] = t
	propTypeToName[t] = k
}

// propTypeFor returns the registered value type for the given
// property, or nil if no type has been registered.
func propTypeFor(interfaceName, propName string) reflect.Type {
	propsMu.Lock()
	defer propsMu.Unlock()
	return propNameToType[signalKey{interfaceName, propName}]
}

// propNameFor returns the interface and property name that t was
// registered under with [RegisterPropertyChangeType].
func propNameFor(t reflect.Type) (signalKey, bool) {
	propsMu.Lock()
	defer propsMu.Unlock()
	k, ok := propTypeToName[t]
	return k, ok
}
