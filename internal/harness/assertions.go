package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/model"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext gives assertions read access to the final state.
type AssertionContext struct {
	Engine *engine.Engine
	Ctx    context.Context
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertLockState:
		return assertLockState(a, actx)
	case AssertCompletion:
		return assertCompletion(a, actx)
	case AssertReservationCode:
		return assertReservationCode(a, actx)
	case AssertReservationCount:
		return assertReservationCount(a, actx)
	case AssertChangeCount:
		return assertChangeCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertLockState(a Assertion, actx *AssertionContext) error {
	v, err := actx.Engine.GetRequirement(actx.Ctx, a.Requirement)
	if err != nil {
		return fmt.Errorf("lock_state: %w", err)
	}
	if string(v.LockState) != a.State {
		return &AssertionError{
			Type:     AssertLockState,
			Expected: fmt.Sprintf("%s is %s", a.Requirement, a.State),
			Actual:   string(v.LockState),
		}
	}
	return nil
}

func assertCompletion(a Assertion, actx *AssertionContext) error {
	v, err := actx.Engine.GetRequirement(actx.Ctx, a.Requirement)
	if err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	c := v.Completion
	if a.Percentage != nil && c.Percentage != *a.Percentage {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: fmt.Sprintf("%s at %d%%", a.Requirement, *a.Percentage),
			Actual:   fmt.Sprintf("%d%% (%d/%d reserved)", c.Percentage, c.TotalReserved, c.TotalRequired),
		}
	}
	if a.Complete != nil && c.IsComplete != *a.Complete {
		return &AssertionError{
			Type:     AssertCompletion,
			Expected: fmt.Sprintf("%s complete=%t", a.Requirement, *a.Complete),
			Actual:   fmt.Sprintf("complete=%t (%d/%d reserved)", c.IsComplete, c.TotalReserved, c.TotalRequired),
		}
	}
	return nil
}

func assertReservationCode(a Assertion, actx *AssertionContext) error {
	r, err := reservationByID(a.Reservation, actx)
	if err != nil {
		return err
	}
	if r.AuthCode != a.Code {
		return &AssertionError{
			Type:     AssertReservationCode,
			Expected: fmt.Sprintf("%s has code %q", a.Reservation, a.Code),
			Actual:   fmt.Sprintf("%q", r.AuthCode),
		}
	}
	return nil
}

func reservationByID(id string, actx *AssertionContext) (model.Reservation, error) {
	r, err := actx.Engine.GetReservation(actx.Ctx, id)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation_code: %w", err)
	}
	return r, nil
}

func assertReservationCount(a Assertion, actx *AssertionContext) error {
	v, err := actx.Engine.GetRequirement(actx.Ctx, a.Requirement)
	if err != nil {
		return fmt.Errorf("reservation_count: %w", err)
	}
	if len(v.Reservations) != *a.Count {
		return &AssertionError{
			Type:     AssertReservationCount,
			Expected: fmt.Sprintf("%s has %d reservations", a.Requirement, *a.Count),
			Actual:   fmt.Sprintf("%d", len(v.Reservations)),
		}
	}
	return nil
}

func assertChangeCount(result *Result, a Assertion) error {
	n := 0
	for _, c := range result.Changes {
		if string(c.Kind) == a.Kind {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertChangeCount,
			Expected: fmt.Sprintf("%d %s changes", *a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}
