package derive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/caras/internal/model"
)

// LockState derives the lock level of req from its reservations.
//
//   - Unlocked: no reservation carries a code (including zero reservations).
//   - FullyAuthorized: at least one reservation, every reservation is coded,
//     and the coded reservations reach the requirement's total quota.
//   - PartiallyAuthorized: anything in between.
//
// Adding an uncoded reservation to a FullyAuthorized requirement always
// yields PartiallyAuthorized.
func LockState(req model.FaceRequirement, reservations []model.Reservation) model.LockState {
	coded := 0
	for _, r := range reservations {
		if r.Coded() {
			coded++
		}
	}
	switch {
	case coded == 0:
		return model.Unlocked
	case coded == len(reservations) && coded >= req.TotalRequired():
		return model.FullyAuthorized
	default:
		return model.PartiallyAuthorized
	}
}

// Guards lists what the lock state permits for one requirement.
type Guards struct {
	State model.LockState `json:"state"`

	// EditRequirement allows changing the requirement's own fields.
	EditRequirement bool `json:"edit_requirement"`

	// DeleteRequirement is false as soon as any reservation is coded.
	DeleteRequirement bool `json:"delete_requirement"`

	// AttachReservation allows opening inventory search and attaching new
	// reservations.
	AttachReservation bool `json:"attach_reservation"`

	// LockedReservationIDs are the reservations frozen by their code.
	LockedReservationIDs []string `json:"locked_reservation_ids,omitempty"`

	// Warning is a display-only notice for PartiallyAuthorized requirements.
	Warning string `json:"warning,omitempty"`
}

// Evaluate derives the Guards for req.
func Evaluate(req model.FaceRequirement, reservations []model.Reservation) Guards {
	state := LockState(req, reservations)
	g := Guards{
		State:             state,
		EditRequirement:   state != model.FullyAuthorized,
		DeleteRequirement: state == model.Unlocked,
		AttachReservation: state != model.FullyAuthorized,
	}
	for _, r := range reservations {
		if r.Coded() {
			g.LockedReservationIDs = append(g.LockedReservationIDs, r.ID)
		}
	}
	if state == model.PartiallyAuthorized {
		g.Warning = fmt.Sprintf("%d of %d reservations are authorized and cannot change: %s",
			len(g.LockedReservationIDs), len(reservations), strings.Join(g.LockedReservationIDs, ", "))
	}
	return g
}

// CodedByType counts coded reservations per bucket. Editing a requirement may
// not push a bucket's quota below this floor.
func CodedByType(reservations []model.Reservation) map[model.FulfillmentType]int {
	out := make(map[model.FulfillmentType]int, len(model.FulfillmentTypes))
	for _, r := range reservations {
		if r.Coded() {
			out[r.Type]++
		}
	}
	return out
}

// AuthorizationGroups buckets the coded reservations by code. Groups are
// returned in code order; ids keep their input order.
func AuthorizationGroups(reservations []model.Reservation) []model.AuthorizationGroup {
	index := make(map[string]int)
	var groups []model.AuthorizationGroup
	for _, r := range reservations {
		if !r.Coded() {
			continue
		}
		i, ok := index[r.AuthCode]
		if !ok {
			i = len(groups)
			index[r.AuthCode] = i
			groups = append(groups, model.AuthorizationGroup{Code: r.AuthCode})
		}
		groups[i].ReservationIDs = append(groups[i].ReservationIDs, r.ID)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Code < groups[j].Code })
	return groups
}
