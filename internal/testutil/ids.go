package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out readable, deterministic ids per kind:
// "req-1", "req-2", "res-1", ...
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with a fresh SequentialIDs produces byte-identical output.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequentialIDs creates a generator with every counter at zero.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{counters: make(map[string]int)}
}

// NewID returns the next id for kind.
//
// Implements engine.IDGenerator.
func (g *SequentialIDs) NewID(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[kind]++
	return fmt.Sprintf("%s-%d", kind, g.counters[kind])
}

// Reset sets every counter back to zero.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters = make(map[string]int)
}
