package store

import (
	"context"
	"fmt"
)

// Tx is a write transaction. It exposes the same statements as Store.
type Tx struct {
	queries
}

// InTx runs fn inside a single IMMEDIATE transaction and commits if fn
// returns nil. Any error, panic or cancellation of ctx before commit rolls
// the whole transaction back; nothing fn wrote is visible to other readers
// until commit succeeds.
//
// fn must only use the Tx it is given. Calling Store methods from inside fn
// blocks on the single pooled connection.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{queries: queries{q: sqlTx}}); err != nil {
		return err
	}

	// Last cancellation point. Once Commit starts the transaction either
	// lands whole or not at all.
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
