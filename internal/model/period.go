package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// PeriodDays is the length of a catorcena.
	PeriodDays = 14

	// PeriodsPerYear is the number of catorcenas in a fiscal year. The last
	// one absorbs the one or two days left after 26*14.
	PeriodsPerYear = 26
)

// Period identifies a fiscal catorcena by number (1..26) and year.
type Period struct {
	Number int `json:"number"`
	Year   int `json:"year"`
}

// PeriodOf returns the catorcena containing t (interpreted in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	n := (t.YearDay()-1)/PeriodDays + 1
	if n > PeriodsPerYear {
		n = PeriodsPerYear
	}
	return Period{Number: n, Year: t.Year()}
}

// Valid reports whether the period number is in range.
func (p Period) Valid() bool {
	return p.Number >= 1 && p.Number <= PeriodsPerYear && p.Year > 0
}

// Start is the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, PeriodDays*(p.Number-1))
}

// End is the last day of the period.
func (p Period) End() time.Time {
	if p.Number == PeriodsPerYear {
		return time.Date(p.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return p.Start().AddDate(0, 0, PeriodDays-1)
}

// Contains reports whether t falls on one of the period's days.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

// index orders periods across years.
func (p Period) index() int {
	return p.Year*PeriodsPerYear + p.Number - 1
}

// Before reports whether p comes strictly before q.
func (p Period) Before(q Period) bool {
	return p.index() < q.index()
}

// Next returns the following catorcena, rolling over the year.
func (p Period) Next() Period {
	if p.Number >= PeriodsPerYear {
		return Period{Number: 1, Year: p.Year + 1}
	}
	return Period{Number: p.Number + 1, Year: p.Year}
}

// Span lists every period from p to end inclusive. It returns nil when end
// precedes p.
func (p Period) Span(end Period) []Period {
	if end.Before(p) {
		return nil
	}
	out := make([]Period, 0, end.index()-p.index()+1)
	for cur := p; !end.Before(cur); cur = cur.Next() {
		out = append(out, cur)
	}
	return out
}

// String renders the period as "number/year", e.g. "7/2026".
func (p Period) String() string {
	return fmt.Sprintf("%d/%d", p.Number, p.Year)
}

// ParsePeriod parses the "number/year" form produced by String.
func ParsePeriod(s string) (Period, error) {
	num, year, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Period{}, fmt.Errorf("invalid period %q: expected number/year", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	p := Period{Number: n, Year: y}
	if !p.Valid() {
		return Period{}, fmt.Errorf("invalid period %q: number must be 1..%d", s, PeriodsPerYear)
	}
	return p, nil
}
