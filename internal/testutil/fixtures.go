// Package testutil provides deterministic generators and record builders for
// tests across the module.
package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/caras/internal/model"
)

// DefaultPeriod is the catorcena fixtures use unless told otherwise.
var DefaultPeriod = model.Period{Number: 7, Year: 2026}

// Requirement builds a single-period requirement with the given quotas.
func Requirement(id string, flow, counterFlow, bonus int) model.FaceRequirement {
	return model.FaceRequirement{
		ID:                  id,
		CampaignID:          "camp-1",
		Article:             "ART-100",
		StartPeriod:         DefaultPeriod,
		EndPeriod:           DefaultPeriod,
		FlowRequired:        flow,
		CounterFlowRequired: counterFlow,
		BonusRequired:       bonus,
		Format:              "billboard",
		LocationClass:       "urban",
		City:                "Monterrey",
		State:               "Nuevo León",
		PublicRate:          decimal.RequireFromString("18500.00"),
	}
}

// Reservation builds an uncoded reservation of type t under requirementID.
func Reservation(id, requirementID string, t model.FulfillmentType) model.Reservation {
	return model.Reservation{
		ID:            id,
		RequirementID: requirementID,
		InventoryID:   "inv-" + id,
		Type:          t,
		Period:        DefaultPeriod,
	}
}

// Coded returns r with its authorization code set.
func Coded(r model.Reservation, code string) model.Reservation {
	r.AuthCode = code
	return r
}

// InventoryUnit builds a catalog unit at a fixed location.
func InventoryUnit(id, city, format string) model.InventoryUnit {
	return model.InventoryUnit{
		ID:            id,
		Code:          "MX-" + id,
		Address:       "Av. Constitución 100",
		City:          city,
		State:         "Nuevo León",
		Format:        format,
		LocationClass: "urban",
		Latitude:      25.6714,
		Longitude:     -100.3089,
	}
}
