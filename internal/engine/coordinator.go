package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/store"
)

// AssignResult reports a committed code assignment.
type AssignResult struct {
	Code     string `json:"code"`
	Affected int    `json:"affected"`

	// RequirementIDs lists the requirements whose reservations were stamped.
	RequirementIDs []string `json:"requirement_ids"`
}

// AssignCode stamps one authorization code onto every reservation in ids,
// in a single transaction. An empty code is generated.
//
// Fails without stamping anything if an id is unknown or any reservation
// already carries a code. Revoke first to re-assign. Two concurrent calls
// over overlapping ids serialize: the second sees the first's codes and
// fails with ALREADY_CODED.
func (e *Engine) AssignCode(ctx context.Context, ids []string, code string) (AssignResult, error) {
	ids, err := requireBatch("assign code", ids)
	if err != nil {
		return AssignResult{}, e.logged(ctx, "assign code", err)
	}
	code = strings.TrimSpace(code)
	if code == "" && e.codes == nil {
		return AssignResult{}, e.logged(ctx, "assign code",
			validationError(CodeInvalidCode, "code", "authorization code is required"))
	}

	var result AssignResult
	_, err = e.write(ctx, func(tx *store.Tx) ([]model.Change, error) {
		found, err := tx.ReservationsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			return nil, unknownReservations(missing)
		}
		var coded []string
		for _, id := range ids {
			if found[id].Coded() {
				coded = append(coded, id)
			}
		}
		if len(coded) > 0 {
			return nil, alreadyCoded(coded, found)
		}

		if code == "" {
			if code, err = e.codes.NextCode(ctx, tx); err != nil {
				return nil, err
			}
		}
		n, err := tx.SetAuthCode(ctx, ids, code)
		if err != nil {
			return nil, err
		}
		if int(n) != len(ids) {
			// Another writer stamped part of the batch after we read it.
			// Rolling back discards the rows this statement did stamp.
			return nil, &Error{
				Kind:           KindConflict,
				Code:           CodeAlreadyCoded,
				Message:        fmt.Sprintf("%d of %d reservations were authorized concurrently", len(ids)-int(n), len(ids)),
				ReservationIDs: ids,
			}
		}

		changes, err := changesByRequirement(ctx, tx, found, ids, model.ChangeCodeAssigned, code)
		if err != nil {
			return nil, err
		}
		result = AssignResult{Code: code, Affected: len(ids)}
		for _, c := range changes {
			result.RequirementIDs = append(result.RequirementIDs, c.RequirementID)
		}
		return changes, nil
	})
	if err := e.logged(ctx, "assign code", err, "code", code, "reservations", ids); err != nil {
		return AssignResult{}, wrapf(err, "assign code")
	}
	return result, nil
}

func alreadyCoded(ids []string, found map[string]model.Reservation) *Error {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id + "=" + found[id].AuthCode
	}
	return &Error{
		Kind:           KindValidation,
		Code:           CodeAlreadyCoded,
		Message:        "already coded: " + strings.Join(parts, ", "),
		ReservationIDs: ids,
	}
}

// RevokeResult reports which reservations lost their code.
type RevokeResult struct {
	Revoked []string `json:"revoked"`

	// Skipped lists reservations that had no code; revoking them is a no-op.
	Skipped []string `json:"skipped"`
}

// RevokeCode clears the authorization code of every reservation in ids.
//
// Idempotent: uncoded reservations are skipped without error, and a batch
// with nothing to revoke commits nothing and publishes nothing. Unknown ids
// fail the whole batch. RevokeCode does not consult tasks; callers run
// CheckConflicts first.
func (e *Engine) RevokeCode(ctx context.Context, ids []string) (RevokeResult, error) {
	ids, err := requireBatch("revoke code", ids)
	if err != nil {
		return RevokeResult{}, e.logged(ctx, "revoke code", err)
	}

	result := RevokeResult{Revoked: []string{}, Skipped: []string{}}
	_, err = e.write(ctx, func(tx *store.Tx) ([]model.Change, error) {
		found, err := tx.ReservationsByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			nf := unknownReservations(missing)
			nf.Kind = KindNotFound
			return nil, nf
		}

		byCode := make(map[string][]string)
		for _, id := range ids {
			r := found[id]
			if !r.Coded() {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			result.Revoked = append(result.Revoked, id)
			byCode[r.AuthCode] = append(byCode[r.AuthCode], id)
		}
		if len(result.Revoked) == 0 {
			return nil, nil
		}
		if _, err := tx.ClearAuthCode(ctx, result.Revoked); err != nil {
			return nil, err
		}

		codes := make([]string, 0, len(byCode))
		for c := range byCode {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		var changes []model.Change
		for _, c := range codes {
			cs, err := changesByRequirement(ctx, tx, found, byCode[c], model.ChangeCodeRevoked, c)
			if err != nil {
				return nil, err
			}
			changes = append(changes, cs...)
		}
		return changes, nil
	})
	if err := e.logged(ctx, "revoke code", err, "reservations", ids); err != nil {
		return RevokeResult{}, wrapf(err, "revoke code")
	}
	return result, nil
}

// ConflictReport lists active downstream tasks holding reservations.
type ConflictReport struct {
	HasConflicts bool           `json:"has_conflicts"`
	Conflicts    []TaskConflict `json:"conflicts"`
}

// CheckConflicts asks the task collaborator which of ids are held by active
// work. It never mutates anything; callers run it before revoking or
// deleting and show the list to the operator.
func (e *Engine) CheckConflicts(ctx context.Context, ids []string) (ConflictReport, error) {
	ids, err := requireBatch("check conflicts", ids)
	if err != nil {
		return ConflictReport{}, err
	}
	active, err := e.tasks.ActiveTasksForReservations(ctx, ids)
	if err != nil {
		return ConflictReport{}, fmt.Errorf("check conflicts: %w", err)
	}
	conflicts := taskConflicts(ids, active)
	if conflicts == nil {
		conflicts = []TaskConflict{}
	}
	return ConflictReport{HasConflicts: len(conflicts) > 0, Conflicts: conflicts}, nil
}
