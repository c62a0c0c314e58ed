package catalog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/record"
)

type lockKey struct {
	kind record.Kind
	id   uuid.UUID
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// idLocks serializes mutations per record id. Entries are dropped once no
// goroutine holds or waits on them.
type idLocks struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

func newIDLocks() *idLocks {
	return &idLocks{entries: make(map[lockKey]*lockEntry)}
}

// lock blocks until the caller owns kind/id and returns the release func.
func (l *idLocks) lock(kind record.Kind, id uuid.UUID) func() {
	k := lockKey{kind: kind, id: id}

	l.mu.Lock()
	e, ok := l.entries[k]
	if !ok {
		e = &lockEntry{}
		l.entries[k] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, k)
		}
		l.mu.Unlock()
	}
}

func (l *idLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
