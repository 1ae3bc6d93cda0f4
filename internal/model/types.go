package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FulfillmentType is the quota bucket a reservation counts toward.
type FulfillmentType string

const (
	Flow        FulfillmentType = "flow"
	CounterFlow FulfillmentType = "counter_flow"
	Bonus       FulfillmentType = "bonus"
)

// FulfillmentTypes lists every bucket in display order.
var FulfillmentTypes = []FulfillmentType{Flow, CounterFlow, Bonus}

// Valid reports whether t is one of the three known buckets.
func (t FulfillmentType) Valid() bool {
	switch t {
	case Flow, CounterFlow, Bonus:
		return true
	}
	return false
}

// ParseFulfillmentType accepts the canonical names plus the dashed form
// ("counter-flow") used on the command line.
func ParseFulfillmentType(s string) (FulfillmentType, error) {
	switch s {
	case "flow":
		return Flow, nil
	case "counter_flow", "counter-flow", "counterflow":
		return CounterFlow, nil
	case "bonus":
		return Bonus, nil
	}
	return "", fmt.Errorf("unknown fulfillment type %q: must be flow, counter_flow or bonus", s)
}

// FaceRequirement ("cara") states how many faces of each exposure type a
// campaign owes for one article over a range of fiscal periods.
type FaceRequirement struct {
	ID          string `json:"id"`
	CampaignID  string `json:"campaign_id"`
	Article     string `json:"article"`
	StartPeriod Period `json:"start_period"`
	EndPeriod   Period `json:"end_period"`

	FlowRequired        int `json:"flow_required"`
	CounterFlowRequired int `json:"counter_flow_required"`
	BonusRequired       int `json:"bonus_required"`

	// Display and search attributes. They carry no invariants.
	Format             string          `json:"format,omitempty"`
	LocationClass      string          `json:"location_class,omitempty"`
	City               string          `json:"city,omitempty"`
	State              string          `json:"state,omitempty"`
	SocioeconomicLevel string          `json:"socioeconomic_level,omitempty"`
	PublicRate         decimal.Decimal `json:"public_rate"`

	// Version counts committed edits, starting at 1. An update must carry
	// the version it was read at.
	Version int64 `json:"version"`
}

// TotalRequired is the sum of the three buckets.
func (r FaceRequirement) TotalRequired() int {
	return r.FlowRequired + r.CounterFlowRequired + r.BonusRequired
}

// Required returns the quota for a single bucket.
func (r FaceRequirement) Required(t FulfillmentType) int {
	switch t {
	case Flow:
		return r.FlowRequired
	case CounterFlow:
		return r.CounterFlowRequired
	case Bonus:
		return r.BonusRequired
	}
	return 0
}

// Covers reports whether p falls inside the requirement's period range.
func (r FaceRequirement) Covers(p Period) bool {
	return !p.Before(r.StartPeriod) && !r.EndPeriod.Before(p)
}

// FieldError describes one invalid field of a record.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the structural rules of a requirement. It does not look at
// lock state; that is the engine's job.
func (r FaceRequirement) Validate() error {
	if r.CampaignID == "" {
		return &FieldError{Field: "campaign_id", Message: "is required"}
	}
	if r.Article == "" {
		return &FieldError{Field: "article", Message: "is required"}
	}
	if !r.StartPeriod.Valid() {
		return &FieldError{Field: "start_period", Message: fmt.Sprintf("invalid period %s", r.StartPeriod)}
	}
	if !r.EndPeriod.Valid() {
		return &FieldError{Field: "end_period", Message: fmt.Sprintf("invalid period %s", r.EndPeriod)}
	}
	if r.EndPeriod.Before(r.StartPeriod) {
		return &FieldError{Field: "end_period", Message: "must not precede start_period"}
	}
	for _, q := range []struct {
		field string
		n     int
	}{
		{"flow_required", r.FlowRequired},
		{"counter_flow_required", r.CounterFlowRequired},
		{"bonus_required", r.BonusRequired},
	} {
		if q.n < 0 {
			return &FieldError{Field: q.field, Message: fmt.Sprintf("must be non-negative, got %d", q.n)}
		}
	}
	if r.PublicRate.IsNegative() {
		return &FieldError{Field: "public_rate", Message: "must be non-negative"}
	}
	return nil
}

// Reservation attaches one inventory unit to a FaceRequirement.
//
// The location and display fields are copied from the inventory unit when the
// reservation is created so reads never need the catalog.
type Reservation struct {
	ID            string          `json:"id"`
	RequirementID string          `json:"requirement_id"`
	InventoryID   string          `json:"inventory_id"`
	Type          FulfillmentType `json:"type"`
	Period        Period          `json:"period"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Format    string  `json:"format,omitempty"`

	AuthCode string `json:"auth_code,omitempty"`
}

// Coded reports whether the reservation carries an authorization code.
func (r Reservation) Coded() bool {
	return r.AuthCode != ""
}

// InventoryUnit is a physical advertising face owned by the catalog.
type InventoryUnit struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Format        string  `json:"format"`
	LocationClass string  `json:"location_class"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// Task statuses that end a task's claim on its reservations.
const (
	TaskStatusDone      = "done"
	TaskStatusCancelled = "cancelled"
)

// Task is downstream work (installation order, artwork, ...) that references
// reservations.
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Owner  string `json:"owner"`
}

// Active reports whether the task still holds its reservations.
func (t Task) Active() bool {
	return t.Status != TaskStatusDone && t.Status != TaskStatusCancelled
}
