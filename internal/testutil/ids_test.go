package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_PerKindCounters(t *testing.T) {
	gen := NewSequentialIDs()

	assert.Equal(t, "req-1", gen.NewID("req"))
	assert.Equal(t, "req-2", gen.NewID("req"))
	assert.Equal(t, "res-1", gen.NewID("res"))
	assert.Equal(t, "req-3", gen.NewID("req"))
}

func TestSequentialIDs_Reset(t *testing.T) {
	gen := NewSequentialIDs()
	gen.NewID("res")
	gen.NewID("res")

	gen.Reset()
	assert.Equal(t, "res-1", gen.NewID("res"))
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := gen.NewID("res")
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 500)
	assert.True(t, seen["res-500"])
}
