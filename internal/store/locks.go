package store

import "sync"

// OwnerLocks serializes work per owner. Holding an owner's lock across a
// store commit and the matching room broadcast keeps broadcast order equal to
// commit order for that owner; unrelated owners proceed in parallel.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-owner mutex and returns the matching unlock.
func (l *OwnerLocks) Lock(ownerID string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[ownerID]
	if !ok {
		m = new(sync.Mutex)
		l.locks[ownerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
