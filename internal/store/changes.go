package store

import (
	"context"
	"fmt"

	"github.com/roach88/caras/internal/model"
)

// AppendChange writes a change log row and returns its assigned seq.
func (q queries) AppendChange(ctx context.Context, c model.Change) (int64, error) {
	ids, err := marshalIDs(c.ReservationIDs)
	if err != nil {
		return 0, fmt.Errorf("append change: %w", err)
	}
	result, err := q.q.ExecContext(ctx, `
		INSERT INTO changes (campaign_id, requirement_id, kind, reservation_ids, code)
		VALUES (?, ?, ?, ?, ?)
	`, c.CampaignID, c.RequirementID, string(c.Kind), ids, c.Code)
	if err != nil {
		return 0, fmt.Errorf("append change: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append change: last insert id: %w", err)
	}
	return seq, nil
}

// Changes returns a campaign's change log entries with seq > since, oldest
// first, at most limit rows (limit <= 0 means no limit).
func (q queries) Changes(ctx context.Context, campaignID string, since int64, limit int) ([]model.Change, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT seq, campaign_id, requirement_id, kind, reservation_ids, code
		FROM changes
		WHERE campaign_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, campaignID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	out := []model.Change{}
	for rows.Next() {
		var (
			c    model.Change
			kind string
			ids  string
		)
		if err := rows.Scan(&c.Seq, &c.CampaignID, &c.RequirementID, &kind, &ids, &c.Code); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.Kind = model.ChangeKind(kind)
		if c.ReservationIDs, err = unmarshalIDs(ids); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return out, nil
}

// LastChangeSeq returns the highest change seq, or 0 for an empty log.
func (q queries) LastChangeSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := q.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last change seq: %w", err)
	}
	return seq, nil
}
