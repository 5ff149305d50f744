package dbus

import (
	"errors"
	"sync"
)

// errNotFound is returned by cache.Get when the key has no entry yet.
var errNotFound = errors.New("not found in cache")

// cache is a concurrency-safe memoization table keyed by comparable
// values, used to avoid recomputing reflection-derived encoders,
// decoders and signatures for the same type repeatedly.
//
// A key with no stored entry reports errNotFound, rather than
// blocking the caller. This matters for recursive types: the
// recursive call reaches Get again before the outer call has stored a
// result, and must be told "not ready" instead of deadlocking.
type cache[K comparable, V any] struct {
	m sync.Map // K -> entry[V]
}

type entry[V any] struct {
	val V
	err error
}

func (c *cache[K, V]) Get(k K) (V, error) {
	v, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	e := v.(entry[V])
	return e.val, e.err
}

func (c *cache[K, V]) Set(k K, val V) {
	c.m.Store(k, entry[V]{val: val})
}

func (c *cache[K, V]) SetErr(k K, err error) {
	c.m.Store(k, entry[V]{err: err})
}
