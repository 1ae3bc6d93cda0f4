package harness

import (
	"fmt"

	"github.com/roach88/caras/internal/model"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step int    `json:"step"`
	Op   string `json:"op"`

	// Outcome is "ok" or the engine error code.
	Outcome string `json:"outcome"`

	// Code is the authorization code an assign_code step stamped.
	Code string `json:"code,omitempty"`

	// IDs lists what the step produced: the created id, revoked ids,
	// matching inventory units.
	IDs []string `json:"ids,omitempty"`

	// Conflicts lists "reservation/task" pairs reported by the step.
	Conflicts []string `json:"conflicts,omitempty"`

	// Published lists the seqs of the changes subscribers received for the
	// step.
	Published []int64 `json:"published,omitempty"`

	// Locks is the lock state of every live requirement after the step.
	Locks map[string]model.LockState `json:"locks"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step outcome and assertion matched.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Changes is the full change log after the run.
	Changes []model.Change `json:"changes"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Changes: []model.Change{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
