package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialIDs generates predictable UUIDs with a fixed prefix and an
// incrementing suffix: 00000000-0000-4000-8000-000000000001, ...
//
// This enables golden comparison of documents that embed record and event
// ids.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequentialIDs creates a generator. prefix must be 8 hex characters; an
// empty prefix means "00000000".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "00000000"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return uuid.MustParse(fmt.Sprintf("%s-0000-4000-8000-%012d", g.prefix, g.n))
}
