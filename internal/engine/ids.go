package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces surrogate ids for new records.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs
// (tests).
type IDGenerator interface {
	NewID(kind string) string
}

// Id kinds passed to IDGenerator.
const (
	KindRequirement = "req"
	KindReservation = "res"
)

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time. The kind argument is ignored.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) NewID(string) string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequencer hands out strictly increasing numbers. *store.Tx implements it.
type Sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// CodeGenerator produces authorization codes when the caller does not
// supply one. It runs inside the assigning transaction.
type CodeGenerator interface {
	NextCode(ctx context.Context, seq Sequencer) (string, error)
}

// SequenceCodes numbers codes from a durable counter: "APS-1", "APS-2", ...
type SequenceCodes struct {
	Prefix string
}

// DefaultCodePrefix is used when no prefix is configured.
const DefaultCodePrefix = "APS-"

// NextCode implements CodeGenerator.
func (g SequenceCodes) NextCode(ctx context.Context, seq Sequencer) (string, error) {
	n, err := seq.NextSequence(ctx, "auth_codes")
	if err != nil {
		return "", fmt.Errorf("next authorization code: %w", err)
	}
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	return fmt.Sprintf("%s%d", prefix, n), nil
}
