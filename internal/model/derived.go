package model

import "fmt"

// LockState is the edit permission level of a FaceRequirement, derived from
// the authorization codes of its reservations. It is never stored.
type LockState string

const (
	Unlocked            LockState = "unlocked"
	PartiallyAuthorized LockState = "partially_authorized"
	FullyAuthorized     LockState = "fully_authorized"
)

// Completion is the fulfillment summary of one FaceRequirement.
//
// Counts are never clamped so overbooking stays visible; only Percentage is
// clamped to [0, 100].
type Completion struct {
	FlowReserved        int  `json:"flow_reserved"`
	CounterFlowReserved int  `json:"counter_flow_reserved"`
	BonusReserved       int  `json:"bonus_reserved"`
	TotalReserved       int  `json:"total_reserved"`
	TotalRequired       int  `json:"total_required"`
	Percentage          int  `json:"percentage"`
	IsComplete          bool `json:"is_complete"`
	Overbooked          bool `json:"overbooked"`
}

// Reserved returns the count for a single bucket.
func (c Completion) Reserved(t FulfillmentType) int {
	switch t {
	case Flow:
		return c.FlowReserved
	case CounterFlow:
		return c.CounterFlowReserved
	case Bonus:
		return c.BonusReserved
	}
	return 0
}

// AuthorizationGroup is the set of reservations under one requirement that
// share an authorization code.
type AuthorizationGroup struct {
	Code           string   `json:"code"`
	ReservationIDs []string `json:"reservation_ids"`
}

// GroupDimension enumerates the ways requirement views can be bucketed.
type GroupDimension int

const (
	GroupByPeriod GroupDimension = iota + 1
	GroupByArticle
)

// String returns the flag spelling of the dimension.
func (d GroupDimension) String() string {
	switch d {
	case GroupByPeriod:
		return "period"
	case GroupByArticle:
		return "article"
	}
	return fmt.Sprintf("GroupDimension(%d)", int(d))
}

// ParseGroupDimension maps a flag value onto a dimension.
func ParseGroupDimension(s string) (GroupDimension, error) {
	switch s {
	case "period":
		return GroupByPeriod, nil
	case "article":
		return GroupByArticle, nil
	}
	return 0, fmt.Errorf("unknown grouping %q: must be period or article", s)
}

// GroupKey identifies one bucket. Only the field matching Dimension is set.
type GroupKey struct {
	Dimension GroupDimension `json:"-"`
	Period    Period         `json:"period,omitzero"`
	Article   string         `json:"article,omitempty"`
}

// String renders the key for display.
func (k GroupKey) String() string {
	switch k.Dimension {
	case GroupByPeriod:
		return "period " + k.Period.String()
	case GroupByArticle:
		return "article " + k.Article
	}
	return "ungrouped"
}
