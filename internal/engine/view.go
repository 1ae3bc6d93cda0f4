package engine

import (
	"github.com/roach88/caras/internal/derive"
	"github.com/roach88/caras/internal/model"
)

// RequirementView is a requirement with its derived state, computed from
// the reservations read in the same call.
type RequirementView struct {
	Requirement  model.FaceRequirement      `json:"requirement"`
	Reservations []model.Reservation        `json:"reservations"`
	LockState    model.LockState            `json:"lock_state"`
	Completion   model.Completion           `json:"completion"`
	Groups       []model.AuthorizationGroup `json:"authorization_groups"`
	Guards       derive.Guards              `json:"guards"`
}

// NewView derives the view of req over reservations.
func NewView(req model.FaceRequirement, reservations []model.Reservation) RequirementView {
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	guards := derive.Evaluate(req, reservations)
	return RequirementView{
		Requirement:  req,
		Reservations: reservations,
		LockState:    guards.State,
		Completion:   derive.Completion(req, reservations),
		Groups:       derive.AuthorizationGroups(reservations),
		Guards:       guards,
	}
}

// GroupViews buckets views by period or article.
func GroupViews(views []RequirementView, dim model.GroupDimension) []derive.Group[RequirementView] {
	return derive.GroupBy(views, dim, func(v RequirementView) model.FaceRequirement {
		return v.Requirement
	})
}
