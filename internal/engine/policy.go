package engine

import "fmt"

// OverbookingPolicy decides whether reservations may exceed a bucket's
// required quantity.
type OverbookingPolicy string

const (
	// OverbookingReject refuses a reservation that would push its bucket past
	// the required quantity.
	OverbookingReject OverbookingPolicy = "reject"

	// OverbookingAllow accepts it. Counts keep growing and the displayed
	// percentage clamps at 100.
	OverbookingAllow OverbookingPolicy = "allow"
)

// ParseOverbookingPolicy validates a configured policy name.
func ParseOverbookingPolicy(s string) (OverbookingPolicy, error) {
	switch OverbookingPolicy(s) {
	case OverbookingReject, OverbookingAllow:
		return OverbookingPolicy(s), nil
	case "":
		return OverbookingReject, nil
	}
	return "", fmt.Errorf("invalid overbooking policy %q: must be reject or allow", s)
}
