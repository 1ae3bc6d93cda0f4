package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/store"
	"github.com/roach88/caras/internal/testutil"
)

// newTestEngine opens a file-backed store in a temp dir and wraps it in an
// engine with deterministic ids.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts = append([]Option{WithIDGenerator(testutil.NewSequentialIDs())}, opts...)
	return New(s, opts...), s
}

// addUnits stores billboard units in Monterrey.
func addUnits(t *testing.T, s *store.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.UpsertInventory(context.Background(), testutil.InventoryUnit(id, "Monterrey", "billboard")))
	}
}

// createRequirement stores req and fails the test on error.
func createRequirement(t *testing.T, e *Engine, req model.FaceRequirement) model.FaceRequirement {
	t.Helper()
	got, err := e.CreateRequirement(context.Background(), req)
	require.NoError(t, err)
	return got
}

// reserve attaches unit inv to requirement reqID in the default period.
func reserve(t *testing.T, e *Engine, id, reqID, inv string, typ model.FulfillmentType) model.Reservation {
	t.Helper()
	r, err := e.CreateReservation(context.Background(), ReservationRequest{
		ID:            id,
		RequirementID: reqID,
		InventoryID:   inv,
		Type:          typ,
		Period:        testutil.DefaultPeriod,
	})
	require.NoError(t, err)
	return r
}

// view reads the derived view of one requirement.
func view(t *testing.T, e *Engine, id string) RequirementView {
	t.Helper()
	v, err := e.GetRequirement(context.Background(), id)
	require.NoError(t, err)
	return v
}

// requireCode asserts err is an *Error with the given code.
func requireCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	require.Error(t, err)
	ee, ok := AsError(err)
	require.True(t, ok, "expected *engine.Error, got %T: %v", err, err)
	require.Equal(t, code, ee.Code, "error: %v", err)
	return ee
}
