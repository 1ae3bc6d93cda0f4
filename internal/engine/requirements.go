package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/caras/internal/derive"
	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/store"
)

// CreateRequirement stores a new requirement at version 1. An empty ID is
// filled from the id generator.
func (e *Engine) CreateRequirement(ctx context.Context, req model.FaceRequirement) (model.FaceRequirement, error) {
	if req.ID == "" {
		req.ID = e.ids.NewID(KindRequirement)
	}
	req.Version = 1
	if err := validateRequirement(req); err != nil {
		return model.FaceRequirement{}, e.logged(ctx, "create requirement", err, "requirement", req.ID)
	}

	_, err := e.write(ctx, func(tx *store.Tx) ([]model.Change, error) {
		err := tx.InsertRequirement(ctx, req)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &Error{
				Kind:          KindConflict,
				Code:          CodeDuplicateRequirement,
				Message:       fmt.Sprintf("requirement %s already exists", req.ID),
				RequirementID: req.ID,
			}
		}
		if err != nil {
			return nil, err
		}
		return []model.Change{{
			CampaignID:    req.CampaignID,
			RequirementID: req.ID,
			Kind:          model.ChangeRequirementCreated,
		}}, nil
	})
	if err := e.logged(ctx, "create requirement", err,
		"campaign", req.CampaignID, "requirement", req.ID); err != nil {
		return model.FaceRequirement{}, wrapf(err, "create requirement %s", req.ID)
	}
	return req, nil
}

// UpdateRequirement replaces a requirement's fields. req.Version must be
// the version the caller read; an edit committed in between fails the call
// with STALE_REQUIREMENT.
//
// A FullyAuthorized requirement is immutable. A PartiallyAuthorized one may
// change, but no bucket may drop below its coded reservations and the period
// range must keep covering them. The campaign never changes.
func (e *Engine) UpdateRequirement(ctx context.Context, req model.FaceRequirement) (RequirementView, error) {
	if err := validateRequirement(req); err != nil {
		return RequirementView{}, e.logged(ctx, "update requirement", err, "requirement", req.ID)
	}

	var view RequirementView
	_, err := e.write(ctx, func(tx *store.Tx) ([]model.Change, error) {
		cur, res, err := loadRequirement(ctx, tx, req.ID)
		if err != nil {
			return nil, err
		}
		if req.CampaignID != cur.CampaignID {
			return nil, validationError(CodeInvalidRequirement, "campaign_id",
				"requirement %s belongs to campaign %s", cur.ID, cur.CampaignID)
		}
		if req.Version != cur.Version {
			return nil, staleError(cur, req.Version)
		}
		if err := e.checkEdit(cur, req, res); err != nil {
			return nil, err
		}
		err = tx.UpdateRequirement(ctx, req)
		if errors.Is(err, store.ErrStale) {
			return nil, staleError(cur, req.Version)
		}
		if err != nil {
			return nil, err
		}
		req.Version++
		view = NewView(req, res)
		return []model.Change{{
			CampaignID:    req.CampaignID,
			RequirementID: req.ID,
			Kind:          model.ChangeRequirementUpdated,
		}}, nil
	})
	if err := e.logged(ctx, "update requirement", err,
		"campaign", req.CampaignID, "requirement", req.ID); err != nil {
		return RequirementView{}, wrapf(err, "update requirement %s", req.ID)
	}
	return view, nil
}

func staleError(cur model.FaceRequirement, read int64) *Error {
	return conflictError(CodeStaleRequirement, cur.ID, nil,
		"requirement %s is at version %d, edit was made from version %d", cur.ID, cur.Version, read)
}

// checkEdit applies the lock rules to replacing cur with next.
func (e *Engine) checkEdit(cur, next model.FaceRequirement, res []model.Reservation) error {
	guards := derive.Evaluate(cur, res)
	if !guards.EditRequirement {
		return lockedError(CodeRequirementLocked, cur.ID, guards.LockedReservationIDs,
			"requirement %s is fully authorized", cur.ID)
	}

	coded := derive.CodedByType(res)
	reserved := derive.Completion(cur, res)
	for _, t := range model.FulfillmentTypes {
		want := next.Required(t)
		if n := coded[t]; want < n {
			return lockedError(CodeLockedQuantity, cur.ID, codedOfType(res, t),
				"%s cannot drop to %d: %d reservations are authorized", t, want, n)
		}
		if n := reserved.Reserved(t); e.overbooking == OverbookingReject && want < n {
			return validationError(CodeQuotaExceeded, string(t)+"_required",
				"%s cannot drop to %d: %d reservations exist", t, want, n)
		}
	}

	var lockedOut, outside []string
	for _, r := range res {
		if next.Covers(r.Period) {
			continue
		}
		if r.Coded() {
			lockedOut = append(lockedOut, r.ID)
		} else {
			outside = append(outside, r.ID)
		}
	}
	if len(lockedOut) > 0 {
		return lockedError(CodeReservationLocked, cur.ID, lockedOut,
			"authorized reservations fall outside %s..%s", next.StartPeriod, next.EndPeriod)
	}
	if len(outside) > 0 {
		err := validationError(CodePeriodOutOfRange, "start_period",
			"reservations fall outside %s..%s", next.StartPeriod, next.EndPeriod)
		err.RequirementID = cur.ID
		err.ReservationIDs = outside
		return err
	}
	return nil
}

func codedOfType(res []model.Reservation, t model.FulfillmentType) []string {
	var ids []string
	for _, r := range res {
		if r.Coded() && r.Type == t {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// DeleteRequirement removes a requirement that has no reservations left.
//
// Checks run in order: any authorized reservation locks the requirement,
// active tasks on its reservations conflict, and remaining uncoded
// reservations conflict. Reservations are never deleted implicitly.
func (e *Engine) DeleteRequirement(ctx context.Context, id string) error {
	_, before, err := loadRequirement(ctx, e.store, id)
	if err != nil {
		return e.logged(ctx, "delete requirement", err, "requirement", id)
	}
	external, err := e.externalTasks(ctx, reservationIDs(before))
	if err != nil {
		return fmt.Errorf("delete requirement %s: active tasks: %w", id, err)
	}

	var campaign string
	_, err = e.write(ctx, func(tx *store.Tx) ([]model.Change, error) {
		req, res, err := loadRequirement(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		campaign = req.CampaignID

		if state := derive.LockState(req, res); state != model.Unlocked {
			return nil, lockedError(CodeRequirementLocked, id, derive.Evaluate(req, res).LockedReservationIDs,
				"requirement %s is %s", id, strings.ReplaceAll(string(state), "_", " "))
		}
		active, err := activeTasks(ctx, tx, reservationIDs(res), external)
		if err != nil {
			return nil, err
		}
		if conflicts := taskConflicts(reservationIDs(res), active); len(conflicts) > 0 {
			err := conflictError(CodeActiveTasks, id, conflictIDs(conflicts),
				"%d active tasks hold reservations of requirement %s", len(conflicts), id)
			err.Conflicts = conflicts
			return nil, err
		}
		if len(res) > 0 {
			return nil, conflictError(CodeHasReservations, id, reservationIDs(res),
				"requirement %s still has %d reservations", id, len(res))
		}
		if err := tx.DeleteRequirement(ctx, id); err != nil {
			return nil, err
		}
		return []model.Change{{
			CampaignID:    req.CampaignID,
			RequirementID: id,
			Kind:          model.ChangeRequirementDeleted,
		}}, nil
	})
	return wrapf(e.logged(ctx, "delete requirement", err, "campaign", campaign, "requirement", id),
		"delete requirement %s", id)
}

// GetRequirement returns one requirement with its derived state.
func (e *Engine) GetRequirement(ctx context.Context, id string) (RequirementView, error) {
	req, res, err := loadRequirement(ctx, e.store, id)
	if err != nil {
		return RequirementView{}, wrapf(err, "get requirement %s", id)
	}
	return NewView(req, res), nil
}

// ListRequirements returns every requirement of a campaign in creation
// order, each with its derived state.
func (e *Engine) ListRequirements(ctx context.Context, campaignID string) ([]RequirementView, error) {
	reqs, err := e.store.RequirementsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	byReq, err := e.store.ReservationsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	views := make([]RequirementView, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, NewView(r, byReq[r.ID]))
	}
	return views, nil
}

func validateRequirement(req model.FaceRequirement) error {
	if req.ID == "" {
		return validationError(CodeInvalidRequirement, "id", "requirement id is required")
	}
	err := req.Validate()
	var fe *model.FieldError
	if errors.As(err, &fe) {
		ve := validationError(CodeInvalidRequirement, fe.Field, "%s %s", fe.Field, fe.Message)
		ve.RequirementID = req.ID
		return ve
	}
	return err
}

// externalTasks asks a TaskSource other than the local store. The local
// store is read by activeTasks inside the transaction instead.
func (e *Engine) externalTasks(ctx context.Context, ids []string) (map[string][]model.Task, error) {
	if s, ok := e.tasks.(*store.Store); ok && s == e.store {
		return nil, nil
	}
	return e.tasks.ActiveTasksForReservations(ctx, ids)
}

// activeTasks merges the local task links read in tx with the answer of an
// external TaskSource, one entry per task id.
func activeTasks(ctx context.Context, tx *store.Tx, ids []string, external map[string][]model.Task) (map[string][]model.Task, error) {
	local, err := tx.ActiveTasksForReservations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, tasks := range external {
		seen := make(map[string]bool, len(local[id]))
		for _, t := range local[id] {
			seen[t.ID] = true
		}
		for _, t := range tasks {
			if !seen[t.ID] {
				seen[t.ID] = true
				local[id] = append(local[id], t)
			}
		}
	}
	return local, nil
}

func reservationIDs(res []model.Reservation) []string {
	ids := make([]string, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids
}

// taskConflicts flattens the active tasks of ids, ordered by reservation
// then task id.
func taskConflicts(ids []string, active map[string][]model.Task) []TaskConflict {
	var out []TaskConflict
	for _, id := range ids {
		for _, t := range active[id] {
			out = append(out, TaskConflict{ReservationID: id, Task: t})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReservationID != out[j].ReservationID {
			return out[i].ReservationID < out[j].ReservationID
		}
		return out[i].Task.ID < out[j].Task.ID
	})
	return out
}

func conflictIDs(conflicts []TaskConflict) []string {
	var ids []string
	for _, c := range conflicts {
		if len(ids) == 0 || ids[len(ids)-1] != c.ReservationID {
			ids = append(ids, c.ReservationID)
		}
	}
	return ids
}
