package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/caras/internal/model"
)

const requirementColumns = `
	id, campaign_id, article, start_number, start_year, end_number, end_year,
	flow_required, counter_flow_required, bonus_required,
	format, location_class, city, state, socioeconomic_level, public_rate`

// requirementSelect adds the version counter, which inserts leave at its
// default of 1.
const requirementSelect = requirementColumns + `, version`

// InsertRequirement stores a new requirement. Returns ErrDuplicate if the id
// is taken.
func (q queries) InsertRequirement(ctx context.Context, r model.FaceRequirement) error {
	seq, err := q.NextSequence(ctx, "requirements")
	if err != nil {
		return fmt.Errorf("insert requirement: %w", err)
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO requirements (seq,`+requirementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		r.ID, r.CampaignID, r.Article,
		r.StartPeriod.Number, r.StartPeriod.Year,
		r.EndPeriod.Number, r.EndPeriod.Year,
		r.FlowRequired, r.CounterFlowRequired, r.BonusRequired,
		r.Format, r.LocationClass, r.City, r.State, r.SocioeconomicLevel,
		marshalDecimal(r.PublicRate),
	)
	if err != nil {
		return fmt.Errorf("insert requirement: %w", translateError(err))
	}
	return nil
}

// UpdateRequirement overwrites every mutable field of an existing
// requirement and bumps its version. The campaign is not mutable. The row
// must still be at r.Version: returns ErrStale if it moved on and
// ErrNotFound if the id does not exist.
func (q queries) UpdateRequirement(ctx context.Context, r model.FaceRequirement) error {
	result, err := q.q.ExecContext(ctx, `
		UPDATE requirements SET
			article = ?, start_number = ?, start_year = ?, end_number = ?, end_year = ?,
			flow_required = ?, counter_flow_required = ?, bonus_required = ?,
			format = ?, location_class = ?, city = ?, state = ?, socioeconomic_level = ?,
			public_rate = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		r.Article,
		r.StartPeriod.Number, r.StartPeriod.Year,
		r.EndPeriod.Number, r.EndPeriod.Year,
		r.FlowRequired, r.CounterFlowRequired, r.BonusRequired,
		r.Format, r.LocationClass, r.City, r.State, r.SocioeconomicLevel,
		marshalDecimal(r.PublicRate),
		r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update requirement: %w", translateError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update requirement: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current int64
	err = q.q.QueryRowContext(ctx, `SELECT version FROM requirements WHERE id = ?`, r.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update requirement: %w", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update requirement: read version: %w", err)
	}
	return fmt.Errorf("update requirement %s at version %d, now %d: %w", r.ID, r.Version, current, ErrStale)
}

// DeleteRequirement removes a requirement. Returns ErrReferenced while any
// reservation still points at it and ErrNotFound if the id does not exist.
func (q queries) DeleteRequirement(ctx context.Context, id string) error {
	result, err := q.q.ExecContext(ctx, `DELETE FROM requirements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete requirement: %w", translateError(err))
	}
	return expectOne(result, "delete requirement")
}

// Requirement retrieves a single requirement by id.
// Returns ErrNotFound if it does not exist.
func (q queries) Requirement(ctx context.Context, id string) (model.FaceRequirement, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+requirementSelect+` FROM requirements WHERE id = ?`, id)
	r, err := scanRequirement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FaceRequirement{}, fmt.Errorf("requirement %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.FaceRequirement{}, fmt.Errorf("read requirement: %w", err)
	}
	return r, nil
}

// RequirementsByCampaign returns a campaign's requirements in creation order.
// Returns an empty slice (not nil) if there are none.
func (q queries) RequirementsByCampaign(ctx context.Context, campaignID string) ([]model.FaceRequirement, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+requirementSelect+`
		FROM requirements
		WHERE campaign_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()

	reqs := []model.FaceRequirement{}
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return reqs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row rowScanner) (model.FaceRequirement, error) {
	var (
		r    model.FaceRequirement
		rate string
	)
	err := row.Scan(
		&r.ID, &r.CampaignID, &r.Article,
		&r.StartPeriod.Number, &r.StartPeriod.Year,
		&r.EndPeriod.Number, &r.EndPeriod.Year,
		&r.FlowRequired, &r.CounterFlowRequired, &r.BonusRequired,
		&r.Format, &r.LocationClass, &r.City, &r.State, &r.SocioeconomicLevel,
		&rate, &r.Version,
	)
	if err != nil {
		return model.FaceRequirement{}, err
	}
	r.PublicRate, err = unmarshalDecimal(rate)
	if err != nil {
		return model.FaceRequirement{}, err
	}
	return r, nil
}

// expectOne turns a zero-row update or delete into ErrNotFound.
func expectOne(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
