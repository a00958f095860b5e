package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates predictable row IDs: "<prefix>-1",
// "<prefix>-2", ...
//
// Tests can assert exact IDs without stubbing each call.
//
// Thread-safety: SequentialGenerator is safe for concurrent use via internal
// mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. If prefix is empty, "id" is
// used.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements ids.Generator interface.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
