// Package registry maps external addresses to the compact account ids
// the engine and ledgers work with.
package registry

import (
	"errors"
	"sync"
)

var (
	ErrNotRegistered     = errors.New("registry: account not registered")
	ErrAlreadyRegistered = errors.New("registry: address already registered")
	ErrEmptyAddress      = errors.New("registry: empty address")
)

// Registry issues monotonically increasing account ids starting at 1.
// Id 0 is reserved as the deleted-order marker and is never assigned.
type Registry struct {
	mu     sync.RWMutex
	byAddr map[string]uint64
	byID   map[uint64]string
	nextID uint64
}

func New() *Registry {
	return &Registry{
		byAddr: make(map[string]uint64),
		byID:   make(map[uint64]string),
		nextID: 1,
	}
}

// Register assigns the next id to addr. Registering the same address
// twice fails rather than returning the old id, so callers cannot
// mistake re-registration for a fresh account.
func (r *Registry) Register(addr string) (uint64, error) {
	if addr == "" {
		return 0, ErrEmptyAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAddr[addr]; ok {
		return 0, ErrAlreadyRegistered
	}
	id := r.nextID
	r.nextID++
	r.byAddr[addr] = id
	r.byID[id] = addr
	return id, nil
}

// IDOf resolves an address to its account id.
func (r *Registry) IDOf(addr string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddr[addr]
	if !ok {
		return 0, ErrNotRegistered
	}
	return id, nil
}

// AddressOf resolves an account id back to its address.
func (r *Registry) AddressOf(id uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.byID[id]
	if !ok {
		return "", ErrNotRegistered
	}
	return addr, nil
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddr)
}
