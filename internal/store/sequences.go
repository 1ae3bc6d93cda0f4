package store

import (
	"context"
	"fmt"
	"strings"
)

// NextSequence increments the named counter and returns its new value. The
// first call for a name returns 1.
func (q queries) NextSequence(ctx context.Context, name string) (int64, error) {
	var v int64
	err := q.q.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`, name).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return v, nil
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
