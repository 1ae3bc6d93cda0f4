package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/caras/internal/model"
)

// Kind is the category of an engine error. Callers branch on it to decide
// how to surface the failure; none of them are retried automatically.
type Kind string

const (
	// KindValidation: the request is malformed or breaks a quantity rule.
	KindValidation Kind = "validation"

	// KindLocked: the target is frozen by an authorization code.
	KindLocked Kind = "locked"

	// KindConflict: the request collides with other state (a concurrent
	// authorization, a duplicate reservation, an active task).
	KindConflict Kind = "conflict"

	// KindNotFound: a referenced requirement, reservation or unit is missing.
	KindNotFound Kind = "not_found"
)

// Code is a machine-readable error identifier.
type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeInvalidRequirement   Code = "INVALID_REQUIREMENT"
	CodeInvalidCode          Code = "INVALID_CODE"
	CodePeriodOutOfRange     Code = "PERIOD_OUT_OF_RANGE"
	CodeQuotaExceeded        Code = "QUOTA_EXCEEDED"
	CodeAlreadyCoded         Code = "ALREADY_CODED"
	CodeUnknownReservation   Code = "UNKNOWN_RESERVATION"
	CodeRequirementLocked    Code = "REQUIREMENT_LOCKED"
	CodeLockedQuantity       Code = "LOCKED_QUANTITY"
	CodeReservationLocked    Code = "RESERVATION_LOCKED"
	CodeDuplicateReservation Code = "DUPLICATE_RESERVATION"
	CodeDuplicateRequirement Code = "DUPLICATE_REQUIREMENT"
	CodeActiveTasks          Code = "ACTIVE_TASKS"
	CodeHasReservations      Code = "HAS_RESERVATIONS"
	CodeStaleRequirement     Code = "STALE_REQUIREMENT"
	CodeRequirementNotFound  Code = "REQUIREMENT_NOT_FOUND"
	CodeReservationNotFound  Code = "RESERVATION_NOT_FOUND"
	CodeInventoryNotFound    Code = "INVENTORY_NOT_FOUND"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind and,
// for a few codes, of a second kind as well.
var (
	ErrValidation = errors.New("validation error")
	ErrLocked     = errors.New("locked")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// alsoMatches lists codes that belong to two kinds. A code stamped twice in
// one batch is both a rejected request and a lost race; an unknown id inside
// a batch is both malformed input and a missing record.
var alsoMatches = map[Code]Kind{
	CodeAlreadyCoded:       KindConflict,
	CodeUnknownReservation: KindNotFound,
}

// TaskConflict is one active downstream task holding a reservation.
type TaskConflict struct {
	ReservationID string     `json:"reservation_id"`
	Task          model.Task `json:"task"`
}

// Error is the single error type returned by engine operations.
//
// It carries enough structure for an operator to act: which
// reservations are locked or unknown, which tasks block a delete.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// RequirementID identifies the affected requirement, when there is one.
	RequirementID string `json:"requirement_id,omitempty"`

	// ReservationIDs lists the offending reservations.
	ReservationIDs []string `json:"reservation_ids,omitempty"`

	// Conflicts lists the active tasks behind an ACTIVE_TASKS error.
	Conflicts []TaskConflict `json:"conflicts,omitempty"`

	// Field names the invalid input field for validation errors.
	Field string `json:"field,omitempty"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	var ctx []string
	if e.RequirementID != "" {
		ctx = append(ctx, "requirement="+e.RequirementID)
	}
	if len(e.ReservationIDs) > 0 {
		ctx = append(ctx, "reservations="+strings.Join(e.ReservationIDs, ","))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	for _, k := range []Kind{e.Kind, alsoMatches[e.Code]} {
		if k != "" && target == sentinel(k) {
			return true
		}
	}
	return false
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindLocked:
		return ErrLocked
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	}
	return nil
}

// IsValidation returns true if err is (or wraps) a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsLocked returns true if err is (or wraps) a locked error.
func IsLocked(err error) bool { return errors.Is(err, ErrLocked) }

// IsConflict returns true if err is (or wraps) a conflict error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound returns true if err is (or wraps) a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func validationError(code Code, field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

func lockedError(code Code, requirementID string, reservationIDs []string, format string, args ...any) *Error {
	return &Error{
		Kind:           KindLocked,
		Code:           code,
		Message:        fmt.Sprintf(format, args...),
		RequirementID:  requirementID,
		ReservationIDs: reservationIDs,
	}
}

func conflictError(code Code, requirementID string, reservationIDs []string, format string, args ...any) *Error {
	return &Error{
		Kind:           KindConflict,
		Code:           code,
		Message:        fmt.Sprintf(format, args...),
		RequirementID:  requirementID,
		ReservationIDs: reservationIDs,
	}
}

func notFoundError(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}
