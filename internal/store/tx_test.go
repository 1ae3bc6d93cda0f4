package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/testutil"
)

func TestInTx_CommitsOnSuccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertRequirement(ctx, testutil.Requirement("req-1", 1, 0, 0))
	})
	require.NoError(t, err)

	_, err = s.Requirement(ctx, "req-1")
	assert.NoError(t, err)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertRequirement(ctx, testutil.Requirement("req-1", 1, 0, 0)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Requirement(ctx, "req-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(tx *Tx) error {
			_ = tx.InsertRequirement(ctx, testutil.Requirement("req-1", 1, 0, 0))
			panic("kaboom")
		})
	})

	_, err := s.Requirement(ctx, "req-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInTx_CancelledBeforeCommit(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertRequirement(ctx, testutil.Requirement("req-1", 1, 0, 0)); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Requirement(context.Background(), "req-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInTx_ConcurrentStampsSerialize(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedRequirement(t, s, testutil.Requirement("req-1", 2, 0, 0),
		testutil.Reservation("res-1", "req-1", model.Flow),
		testutil.Reservation("res-2", "req-1", model.Flow),
	)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.InTx(ctx, func(tx *Tx) error {
				n, err := tx.SetAuthCode(ctx, []string{"res-1", "res-2"}, "APS-"+string(rune('A'+i)))
				if err != nil {
					return err
				}
				if n != 2 {
					return errors.New("lost race")
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	got, err := s.ReservationsByIDs(ctx, []string{"res-1", "res-2"})
	require.NoError(t, err)
	assert.Equal(t, got["res-1"].AuthCode, got["res-2"].AuthCode)
}
