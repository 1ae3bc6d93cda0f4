package derive

import "github.com/roach88/caras/internal/model"

// Completion counts the reservations of req per bucket.
//
// Percentage is round(100 * totalReserved / totalRequired), 0 when nothing is
// required, and clamped to [0, 100]. The raw counts are not clamped.
// Reservations with an unknown type count toward no bucket.
func Completion(req model.FaceRequirement, reservations []model.Reservation) model.Completion {
	c := model.Completion{TotalRequired: req.TotalRequired()}
	for _, r := range reservations {
		switch r.Type {
		case model.Flow:
			c.FlowReserved++
		case model.CounterFlow:
			c.CounterFlowReserved++
		case model.Bonus:
			c.BonusReserved++
		}
	}
	c.TotalReserved = c.FlowReserved + c.CounterFlowReserved + c.BonusReserved
	c.Percentage = percentage(c.TotalReserved, c.TotalRequired)
	c.IsComplete = c.TotalRequired > 0 && c.TotalReserved >= c.TotalRequired
	for _, t := range model.FulfillmentTypes {
		if c.Reserved(t) > req.Required(t) {
			c.Overbooked = true
		}
	}
	return c
}

// percentage rounds half up using integer arithmetic.
func percentage(reserved, required int) int {
	if required <= 0 {
		return 0
	}
	p := (200*reserved + required) / (2 * required)
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// Remaining is how many more reservations of type t the requirement accepts
// before it is overbooked. It is never negative.
func Remaining(req model.FaceRequirement, reservations []model.Reservation, t model.FulfillmentType) int {
	n := 0
	for _, r := range reservations {
		if r.Type == t {
			n++
		}
	}
	if left := req.Required(t) - n; left > 0 {
		return left
	}
	return 0
}
