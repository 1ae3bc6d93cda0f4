package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/caras/internal/catalog"
	"github.com/roach88/caras/internal/model"
)

const inventoryColumns = `id, code, address, city, state, format, location_class, latitude, longitude`

// UpsertInventory inserts a catalog unit or refreshes the one with the same
// id. Search keys are recomputed from the display fields.
func (q queries) UpsertInventory(ctx context.Context, u model.InventoryUnit) error {
	k := catalog.KeysOf(u)
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO inventory (`+inventoryColumns+`, city_key, state_key, format_key, class_key, search_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code, address = excluded.address, city = excluded.city,
			state = excluded.state, format = excluded.format,
			location_class = excluded.location_class,
			latitude = excluded.latitude, longitude = excluded.longitude,
			city_key = excluded.city_key, state_key = excluded.state_key,
			format_key = excluded.format_key, class_key = excluded.class_key,
			search_key = excluded.search_key
	`,
		u.ID, u.Code, u.Address, u.City, u.State, u.Format, u.LocationClass, u.Latitude, u.Longitude,
		k.City, k.State, k.Format, k.LocationClass, k.Search,
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", translateError(err))
	}
	return nil
}

// InventoryUnit retrieves one catalog unit. Returns ErrNotFound if it does
// not exist.
func (q queries) InventoryUnit(ctx context.Context, id string) (model.InventoryUnit, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`, id)
	u, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryUnit{}, fmt.Errorf("inventory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.InventoryUnit{}, fmt.Errorf("read inventory: %w", err)
	}
	return u, nil
}

// SearchInventory runs a read-only catalog query. Results are ordered by
// unit code. Returns an empty slice (not nil) when nothing matches.
func (q queries) SearchInventory(ctx context.Context, f catalog.Filter) ([]model.InventoryUnit, error) {
	var (
		where []string
		args  []any
	)
	eq := func(column, value string) {
		if v := catalog.Fold(value); v != "" {
			where = append(where, column+" = ?")
			args = append(args, v)
		}
	}
	eq("class_key", f.LocationClass)
	eq("format_key", f.Format)
	eq("city_key", f.City)
	eq("state_key", f.State)
	if text := catalog.Fold(f.Text); text != "" {
		where = append(where, "search_key LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(text)+"%")
	}
	if f.Period != nil {
		taken := `SELECT 1 FROM reservations r
			WHERE r.inventory_id = inventory.id AND r.period_number = ? AND r.period_year = ?`
		args = append(args, f.Period.Number, f.Period.Year)
		if f.RequirementID != "" {
			taken += ` AND r.requirement_id = ?`
			args = append(args, f.RequirementID)
		}
		where = append(where, `NOT EXISTS (`+taken+`)`)
	}

	query := `SELECT ` + inventoryColumns + ` FROM inventory`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY code COLLATE BINARY ASC LIMIT ?`
	args = append(args, f.EffectiveLimit())

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search inventory: %w", err)
	}
	defer rows.Close()

	units := []model.InventoryUnit{}
	for rows.Next() {
		u, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return units, nil
}

func scanInventory(row rowScanner) (model.InventoryUnit, error) {
	var u model.InventoryUnit
	err := row.Scan(&u.ID, &u.Code, &u.Address, &u.City, &u.State, &u.Format, &u.LocationClass, &u.Latitude, &u.Longitude)
	return u, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
