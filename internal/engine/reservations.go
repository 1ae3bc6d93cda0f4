package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/caras/internal/catalog"
	"github.com/roach88/caras/internal/derive"
	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/store"
)

// ReservationRequest attaches one inventory unit to a requirement.
type ReservationRequest struct {
	// ID is optional; the id generator fills it when empty.
	ID            string
	RequirementID string
	InventoryID   string
	Type          model.FulfillmentType
	Period        model.Period
}

// CreateReservation attaches an inventory unit to a requirement.
//
// Rejected when the requirement is FullyAuthorized (LockedError), when the
// unit is already reserved for the same requirement and period
// (ConflictError), when the period lies outside the requirement's range, or
// when the bucket is full under OverbookingReject (ValidationError).
func (e *Engine) CreateReservation(ctx context.Context, in ReservationRequest) (model.Reservation, error) {
	if in.ID == "" {
		in.ID = e.ids.NewID(KindReservation)
	}
	attrs := []any{"requirement", in.RequirementID, "reservation", in.ID, "inventory", in.InventoryID}

	if !in.Type.Valid() {
		return model.Reservation{}, e.logged(ctx, "create reservation",
			validationError(CodeInvalidRequest, "type", "unknown fulfillment type %q", in.Type), attrs...)
	}
	if !in.Period.Valid() {
		return model.Reservation{}, e.logged(ctx, "create reservation",
			validationError(CodeInvalidRequest, "period", "invalid period %s", in.Period), attrs...)
	}

	unit, err := e.catalog.InventoryUnit(ctx, in.InventoryID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Reservation{}, e.logged(ctx, "create reservation",
			notFoundError(CodeInventoryNotFound, "inventory unit %s does not exist", in.InventoryID), attrs...)
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("create reservation: inventory %s: %w", in.InventoryID, err)
	}

	r := model.Reservation{
		ID:            in.ID,
		RequirementID: in.RequirementID,
		InventoryID:   unit.ID,
		Type:          in.Type,
		Period:        in.Period,
		Latitude:      unit.Latitude,
		Longitude:     unit.Longitude,
		Address:       unit.Address,
		Format:        unit.Format,
	}

	var campaign string
	_, err = e.write(ctx, func(tx *store.Tx) ([]model.Change, error) {
		req, res, err := loadRequirement(ctx, tx, in.RequirementID)
		if err != nil {
			return nil, err
		}
		campaign = req.CampaignID
		if err := e.checkAttach(req, res, r); err != nil {
			return nil, err
		}

		// Keep a local copy of the unit so the reservation row can
		// reference it even when the catalog lives elsewhere.
		if err := tx.UpsertInventory(ctx, unit); err != nil {
			return nil, err
		}
		err = tx.InsertReservation(ctx, r)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError(CodeDuplicateReservation, req.ID, []string{r.ID},
				"reservation %s already exists", r.ID)
		}
		if err != nil {
			return nil, err
		}
		return []model.Change{{
			CampaignID:     req.CampaignID,
			RequirementID:  req.ID,
			Kind:           model.ChangeReservationCreated,
			ReservationIDs: []string{r.ID},
		}}, nil
	})
	if err := e.logged(ctx, "create reservation", err, append(attrs, "campaign", campaign)...); err != nil {
		return model.Reservation{}, wrapf(err, "create reservation %s", r.ID)
	}
	return r, nil
}

// checkAttach applies the lock, period, duplicate and quota rules to adding
// r under req.
func (e *Engine) checkAttach(req model.FaceRequirement, res []model.Reservation, r model.Reservation) error {
	guards := derive.Evaluate(req, res)
	if !guards.AttachReservation {
		return lockedError(CodeRequirementLocked, req.ID, guards.LockedReservationIDs,
			"requirement %s is fully authorized", req.ID)
	}
	if !req.Covers(r.Period) {
		err := validationError(CodePeriodOutOfRange, "period",
			"period %s is outside %s..%s", r.Period, req.StartPeriod, req.EndPeriod)
		err.RequirementID = req.ID
		return err
	}
	for _, existing := range res {
		if existing.InventoryID == r.InventoryID && existing.Period == r.Period {
			return conflictError(CodeDuplicateReservation, req.ID, []string{existing.ID},
				"inventory %s is already reserved for %s as %s", r.InventoryID, r.Period, existing.ID)
		}
	}
	if e.overbooking == OverbookingReject && derive.Remaining(req, res, r.Type) <= 0 {
		err := validationError(CodeQuotaExceeded, "type",
			"%s quota of %d is already reserved", r.Type, req.Required(r.Type))
		err.RequirementID = req.ID
		return err
	}
	return nil
}

// DeleteReservations removes a batch of reservations, all or nothing.
//
// The whole batch is rejected if any id is unknown (NotFound), carries an
// authorization code (LockedError) or is held by an active task
// (ConflictError listing the tasks).
func (e *Engine) DeleteReservations(ctx context.Context, ids []string) (int, error) {
	ids, err := requireBatch("delete reservations", ids)
	if err != nil {
		return 0, e.logged(ctx, "delete reservations", err)
	}
	external, err := e.externalTasks(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete reservations: active tasks: %w", err)
	}

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
			return nil, lockedError(CodeReservationLocked, "", coded,
				"%d reservations carry an authorization code", len(coded))
		}
		active, err := activeTasks(ctx, tx, ids, external)
		if err != nil {
			return nil, err
		}
		if conflicts := taskConflicts(ids, active); len(conflicts) > 0 {
			err := conflictError(CodeActiveTasks, "", conflictIDs(conflicts),
				"%d active tasks hold reservations in the batch", len(conflicts))
			err.Conflicts = conflicts
			return nil, err
		}

		n, err := tx.DeleteReservations(ctx, ids)
		if err != nil {
			return nil, err
		}
		if int(n) != len(ids) {
			return nil, fmt.Errorf("deleted %d of %d reservations", n, len(ids))
		}
		return changesByRequirement(ctx, tx, found, ids, model.ChangeReservationsDeleted, "")
	})
	if err := e.logged(ctx, "delete reservations", err, "reservations", ids); err != nil {
		return 0, wrapf(err, "delete reservations")
	}
	return len(ids), nil
}

// GetReservation returns one reservation.
func (e *Engine) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	r, err := e.store.Reservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Reservation{}, notFoundError(CodeReservationNotFound, "reservation %s does not exist", id)
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return r, nil
}

// SearchInventory lists catalog units a requirement may reserve. f narrows
// the requirement's default filter; its non-empty fields win.
//
// Rejected with LockedError when the requirement is FullyAuthorized.
func (e *Engine) SearchInventory(ctx context.Context, requirementID string, f catalog.Filter) ([]model.InventoryUnit, error) {
	req, res, err := loadRequirement(ctx, e.store, requirementID)
	if err != nil {
		return nil, wrapf(err, "search inventory")
	}
	guards := derive.Evaluate(req, res)
	if !guards.AttachReservation {
		return nil, lockedError(CodeRequirementLocked, req.ID, guards.LockedReservationIDs,
			"requirement %s is fully authorized", req.ID)
	}
	if f.Period != nil && !req.Covers(*f.Period) {
		err := validationError(CodePeriodOutOfRange, "period",
			"period %s is outside %s..%s", *f.Period, req.StartPeriod, req.EndPeriod)
		err.RequirementID = req.ID
		return nil, err
	}

	units, err := e.catalog.SearchInventory(ctx, mergeFilter(catalog.ForRequirement(req), f))
	if err != nil {
		return nil, fmt.Errorf("search inventory: %w", err)
	}
	return units, nil
}

func mergeFilter(base, over catalog.Filter) catalog.Filter {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return catalog.Filter{
		RequirementID: base.RequirementID,
		LocationClass: pick(base.LocationClass, over.LocationClass),
		Format:        pick(base.Format, over.Format),
		City:          pick(base.City, over.City),
		State:         pick(base.State, over.State),
		Text:          over.Text,
		Period:        over.Period,
		Limit:         over.Limit,
	}
}

func missingIDs(ids []string, found map[string]model.Reservation) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func unknownReservations(ids []string) *Error {
	return &Error{
		Kind:           KindValidation,
		Code:           CodeUnknownReservation,
		Message:        fmt.Sprintf("%d reservations do not exist", len(ids)),
		ReservationIDs: ids,
	}
}

// changesByRequirement builds one change per requirement touched by ids.
func changesByRequirement(ctx context.Context, tx *store.Tx, found map[string]model.Reservation, ids []string, kind model.ChangeKind, code string) ([]model.Change, error) {
	byReq := make(map[string][]string)
	for _, id := range ids {
		rid := found[id].RequirementID
		byReq[rid] = append(byReq[rid], id)
	}
	reqIDs := make([]string, 0, len(byReq))
	for rid := range byReq {
		reqIDs = append(reqIDs, rid)
	}
	sort.Strings(reqIDs)

	changes := make([]model.Change, 0, len(reqIDs))
	for _, rid := range reqIDs {
		req, err := tx.Requirement(ctx, rid)
		if err != nil {
			return nil, err
		}
		changes = append(changes, model.Change{
			CampaignID:     req.CampaignID,
			RequirementID:  rid,
			Kind:           kind,
			ReservationIDs: byReq[rid],
			Code:           code,
		})
	}
	return changes, nil
}
