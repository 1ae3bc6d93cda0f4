package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/testutil"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedRequirement stores a requirement plus one inventory unit per
// reservation and the reservations themselves.
func seedRequirement(t *testing.T, s *Store, req model.FaceRequirement, res ...model.Reservation) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertRequirement(ctx, req))
	for _, r := range res {
		require.NoError(t, s.UpsertInventory(ctx, testutil.InventoryUnit(r.InventoryID, "Monterrey", "billboard")))
		require.NoError(t, s.InsertReservation(ctx, r))
	}
}
