// Package catalog describes read-only queries into the inventory catalog.
//
// The catalog is owned by another system; the engine only searches it and
// copies display fields onto reservations. Text matching is case and accent
// insensitive ("Querétaro" matches "queretaro").
package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/caras/internal/model"
)

// DefaultLimit caps search results when the filter does not set one.
const DefaultLimit = 200

// Filter selects inventory units. Empty fields match everything.
type Filter struct {
	LocationClass string `json:"location_class,omitempty"`
	Format        string `json:"format,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`

	// Text matches a substring of the unit's code, address or city.
	Text string `json:"text,omitempty"`

	// Period restricts the search to units with no reservation in that
	// catorcena. With RequirementID set, only that requirement's
	// reservations count, matching the one-unit-per-period rule it is
	// held to when reserving.
	Period *model.Period `json:"period,omitempty"`

	RequirementID string `json:"requirement_id,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// EffectiveLimit returns the limit to apply.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > DefaultLimit {
		return DefaultLimit
	}
	return f.Limit
}

// ForRequirement builds the default filter for a requirement's search
// screen: same format, location class and city, scoped to its own
// reservations.
func ForRequirement(r model.FaceRequirement) Filter {
	return Filter{
		RequirementID: r.ID,
		LocationClass: r.LocationClass,
		Format:        r.Format,
		City:          r.City,
	}
}

// Fold normalizes text for matching: decomposes, strips combining marks,
// case-folds and collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}

// Keys are the folded columns stored alongside a unit for searching.
type Keys struct {
	City          string
	State         string
	Format        string
	LocationClass string
	Search        string
}

// KeysOf computes the search keys of u.
func KeysOf(u model.InventoryUnit) Keys {
	return Keys{
		City:          Fold(u.City),
		State:         Fold(u.State),
		Format:        Fold(u.Format),
		LocationClass: Fold(u.LocationClass),
		Search:        Fold(strings.Join([]string{u.Code, u.Address, u.City}, " ")),
	}
}
