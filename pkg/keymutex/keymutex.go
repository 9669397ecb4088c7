// Package keymutex provides a mutex keyed by string, so independent keys
// never block each other while operations on the same key serialize.
// Used for per-(learner, content) ledger writes and per-learner follow-up
// processing. No external dependencies - uses only standard library.
package keymutex

import (
	"sync"
)

// KeyMutex is a set of named mutexes. The zero value is not usable; create
// one with New.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for the given key, blocking until it is free.
// Distinct keys never contend.
func (k *KeyMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for the given key. The entry is dropped once
// no goroutine holds or waits for it, so the map does not grow without bound.
func (k *KeyMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("keymutex: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// WithLock runs fn while holding the key's mutex.
func (k *KeyMutex) WithLock(key string, fn func()) {
	k.Lock(key)
	defer k.Unlock(key)
	fn()
}
