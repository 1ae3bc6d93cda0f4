package store

import (
	"context"
	"fmt"

	"github.com/roach88/caras/internal/model"
)

// UpsertTask inserts a task or overwrites the one with the same id.
func (q queries) UpsertTask(ctx context.Context, t model.Task) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO tasks (id, title, type, status, owner)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, type = excluded.type,
			status = excluded.status, owner = excluded.owner
	`, t.ID, t.Title, t.Type, t.Status, t.Owner)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

// SetTaskStatus changes a task's status. Returns ErrNotFound if the task
// does not exist.
func (q queries) SetTaskStatus(ctx context.Context, id, status string) error {
	result, err := q.q.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return expectOne(result, "set task status")
}

// LinkTask records that a task holds the given reservations. Existing links
// are kept.
func (q queries) LinkTask(ctx context.Context, taskID string, reservationIDs []string) error {
	for _, id := range reservationIDs {
		if _, err := q.q.ExecContext(ctx, `
			INSERT INTO task_reservations (task_id, reservation_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, taskID, id); err != nil {
			return fmt.Errorf("link task: %w", translateError(err))
		}
	}
	return nil
}

// ActiveTasksForReservations returns, per reservation id, the tasks that
// still hold it. Reservations without active tasks are absent from the map.
// Tasks are ordered by id within each reservation.
func (q queries) ActiveTasksForReservations(ctx context.Context, ids []string) (map[string][]model.Task, error) {
	out := make(map[string][]model.Task)
	if len(ids) == 0 {
		return out, nil
	}

	args := append(stringArgs(ids), model.TaskStatusDone, model.TaskStatusCancelled)
	rows, err := q.q.QueryContext(ctx, `
		SELECT l.reservation_id, t.id, t.title, t.type, t.status, t.owner
		FROM task_reservations l
		JOIN tasks t ON t.id = l.task_id
		WHERE l.reservation_id IN (`+placeholders(len(ids))+`)
		  AND t.status NOT IN (?, ?)
		ORDER BY l.reservation_id COLLATE BINARY ASC, t.id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query active tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resID string
			t     model.Task
		)
		if err := rows.Scan(&resID, &t.ID, &t.Title, &t.Type, &t.Status, &t.Owner); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out[resID] = append(out[resID], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}
