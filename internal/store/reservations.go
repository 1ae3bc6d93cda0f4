package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/caras/internal/model"
)

const reservationColumns = `
	id, requirement_id, inventory_id, type, period_number, period_year,
	latitude, longitude, address, format, auth_code`

// InsertReservation stores a new reservation. Returns ErrDuplicate if the id
// is taken or the same unit is already reserved for the same requirement and
// period, and ErrReferenced if the requirement or unit does not exist.
func (q queries) InsertReservation(ctx context.Context, r model.Reservation) error {
	seq, err := q.NextSequence(ctx, "reservations")
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO reservations (seq,`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		r.ID, r.RequirementID, r.InventoryID, string(r.Type),
		r.Period.Number, r.Period.Year,
		r.Latitude, r.Longitude, r.Address, r.Format,
		nullString(r.AuthCode),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", translateError(err))
	}
	return nil
}

// Reservation retrieves a single reservation by id.
// Returns ErrNotFound if it does not exist.
func (q queries) Reservation(ctx context.Context, id string) (model.Reservation, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("read reservation: %w", err)
	}
	return r, nil
}

// ReservationsByIDs returns the reservations that exist among ids, keyed by
// id. Missing ids are simply absent from the map.
func (q queries) ReservationsByIDs(ctx context.Context, ids []string) (map[string]model.Reservation, error) {
	out := make(map[string]model.Reservation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.q.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id IN (`+placeholders(len(ids))+`)
	`, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

// ReservationsByRequirement returns a requirement's reservations in creation
// order. Returns an empty slice (not nil) if there are none.
func (q queries) ReservationsByRequirement(ctx context.Context, requirementID string) ([]model.Reservation, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE requirement_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	return collectReservations(rows)
}

// ReservationsByCampaign returns every reservation of a campaign grouped by
// requirement id, each group in creation order.
func (q queries) ReservationsByCampaign(ctx context.Context, campaignID string) (map[string][]model.Reservation, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+prefixed("r", reservationColumns)+`
		FROM reservations r
		JOIN requirements q ON q.id = r.requirement_id
		WHERE q.campaign_id = ?
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	all, err := collectReservations(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]model.Reservation)
	for _, r := range all {
		out[r.RequirementID] = append(out[r.RequirementID], r)
	}
	return out, nil
}

// DeleteReservations removes the given reservations and returns how many rows
// went away. Links of finished tasks go with them. Returns ErrReferenced, and
// deletes nothing, while a task that is neither done nor cancelled still
// links one of them.
func (q queries) DeleteReservations(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var held int
	args := append(stringArgs(ids), model.TaskStatusDone, model.TaskStatusCancelled)
	if err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM task_reservations l
		JOIN tasks t ON t.id = l.task_id
		WHERE l.reservation_id IN (`+placeholders(len(ids))+`)
		  AND t.status NOT IN (?, ?)
	`, args...).Scan(&held); err != nil {
		return 0, fmt.Errorf("count active task links: %w", err)
	}
	if held > 0 {
		return 0, fmt.Errorf("delete reservations: %d active task links: %w", held, ErrReferenced)
	}
	if _, err := q.q.ExecContext(ctx, `
		DELETE FROM task_reservations WHERE reservation_id IN (`+placeholders(len(ids))+`)
	`, stringArgs(ids)...); err != nil {
		return 0, fmt.Errorf("delete task links: %w", err)
	}
	result, err := q.q.ExecContext(ctx, `
		DELETE FROM reservations WHERE id IN (`+placeholders(len(ids))+`)
	`, stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("delete reservations: %w", translateError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete reservations: rows affected: %w", err)
	}
	return n, nil
}

// SetAuthCode stamps code onto every listed reservation that has none.
// Reservations that already carry a code are left untouched; callers compare
// the returned count with len(ids) to detect them.
func (q queries) SetAuthCode(ctx context.Context, ids []string, code string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{code}, stringArgs(ids)...)
	result, err := q.q.ExecContext(ctx, `
		UPDATE reservations
		SET auth_code = ?
		WHERE auth_code IS NULL AND id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("set auth code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set auth code: rows affected: %w", err)
	}
	return n, nil
}

// ClearAuthCode removes the code from every listed reservation that has
// one. Uncoded reservations are not touched.
func (q queries) ClearAuthCode(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := q.q.ExecContext(ctx, `
		UPDATE reservations
		SET auth_code = NULL
		WHERE auth_code IS NOT NULL AND id IN (`+placeholders(len(ids))+`)
	`, stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("clear auth code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear auth code: rows affected: %w", err)
	}
	return n, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()

	out := []model.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		r        model.Reservation
		typ      string
		authCode sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.RequirementID, &r.InventoryID, &typ,
		&r.Period.Number, &r.Period.Year,
		&r.Latitude, &r.Longitude, &r.Address, &r.Format,
		&authCode,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Type = model.FulfillmentType(typ)
	r.AuthCode = authCode.String
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
