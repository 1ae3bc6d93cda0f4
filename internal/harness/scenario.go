package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/caras/internal/seed"
)

// Scenario is one executable reservation scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Overbooking selects the engine policy ("reject" when empty).
	Overbooking string `yaml:"overbooking,omitempty"`

	// CodePrefix prefixes generated codes ("APS-" when empty).
	CodePrefix string `yaml:"code_prefix,omitempty"`

	// Seed is an inline seed document applied before the steps.
	Seed yaml.Node `yaml:"seed,omitempty"`

	// Steps run in order after the seed.
	Steps []Step `yaml:"steps"`

	// Assertions check the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op names the operation; see the Op constants.
	Op string `yaml:"op"`

	Requirement  string   `yaml:"requirement,omitempty"`
	Reservation  string   `yaml:"reservation,omitempty"`
	Inventory    string   `yaml:"inventory,omitempty"`
	Type         string   `yaml:"type,omitempty"`
	Period       string   `yaml:"period,omitempty"`
	Reservations []string `yaml:"reservations,omitempty"`
	Code         string   `yaml:"code,omitempty"`
	Task         string   `yaml:"task,omitempty"`

	// Fields is the full record for create_requirement.
	Fields *seed.Requirement `yaml:"fields,omitempty"`

	// Patch lists the fields update_requirement changes.
	Patch *Patch `yaml:"patch,omitempty"`

	// Expect is the expected outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Patch overrides requirement fields. Nil fields keep their value.
type Patch struct {
	Article     *string `yaml:"article,omitempty"`
	Start       *string `yaml:"start,omitempty"`
	End         *string `yaml:"end,omitempty"`
	Flow        *int    `yaml:"flow,omitempty"`
	CounterFlow *int    `yaml:"counter_flow,omitempty"`
	Bonus       *int    `yaml:"bonus,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Error is the expected engine error code.
	Error string `yaml:"error"`
}

// Operations a step may run.
const (
	OpCreateRequirement  = "create_requirement"
	OpUpdateRequirement  = "update_requirement"
	OpDeleteRequirement  = "delete_requirement"
	OpCreateReservation  = "create_reservation"
	OpDeleteReservations = "delete_reservations"
	OpAssignCode         = "assign_code"
	OpRevokeCode         = "revoke_code"
	OpCheckConflicts     = "check_conflicts"
	OpSearchInventory    = "search_inventory"
	OpLinkTask           = "link_task"
	OpCloseTask          = "close_task"
)

// Assertion checks final state.
type Assertion struct {
	// Type is lock_state, completion, reservation_code, reservation_count
	// or change_count.
	Type string `yaml:"type"`

	Requirement string `yaml:"requirement,omitempty"`
	Reservation string `yaml:"reservation,omitempty"`
	Kind        string `yaml:"kind,omitempty"`

	// State is the expected lock state (lock_state).
	State string `yaml:"state,omitempty"`

	// Percentage is the expected completion percentage (completion).
	Percentage *int `yaml:"percentage,omitempty"`

	// Complete is the expected IsComplete flag (completion).
	Complete *bool `yaml:"complete,omitempty"`

	// Code is the expected authorization code; empty means none
	// (reservation_code).
	Code string `yaml:"code,omitempty"`

	// Count is the expected number (reservation_count, change_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertLockState        = "lock_state"
	AssertCompletion       = "completion"
	AssertReservationCode  = "reservation_code"
	AssertReservationCount = "reservation_count"
	AssertChangeCount      = "change_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SeedDocument validates and decodes the inline seed block.
func (s *Scenario) SeedDocument() (*seed.Document, error) {
	if s.Seed.Kind == 0 {
		return &seed.Document{}, nil
	}
	data, err := yaml.Marshal(&s.Seed)
	if err != nil {
		return nil, fmt.Errorf("re-encode seed: %w", err)
	}
	return seed.Parse(data)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one step or assertion is required")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, s *Step) error {
	need := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("steps[%d]: %s is required for %s", i, what, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpCreateRequirement:
		return need(s.Fields != nil, "fields")
	case OpUpdateRequirement:
		if err := need(s.Requirement != "", "requirement"); err != nil {
			return err
		}
		return need(s.Patch != nil, "patch")
	case OpDeleteRequirement, OpSearchInventory:
		return need(s.Requirement != "", "requirement")
	case OpCreateReservation:
		if err := need(s.Requirement != "", "requirement"); err != nil {
			return err
		}
		if err := need(s.Inventory != "", "inventory"); err != nil {
			return err
		}
		if err := need(s.Type != "", "type"); err != nil {
			return err
		}
		return need(s.Period != "", "period")
	case OpDeleteReservations, OpAssignCode, OpRevokeCode, OpCheckConflicts:
		return need(len(s.Reservations) > 0, "reservations")
	case OpLinkTask:
		if err := need(s.Task != "", "task"); err != nil {
			return err
		}
		return need(len(s.Reservations) > 0, "reservations")
	case OpCloseTask:
		return need(s.Task != "", "task")
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, s.Op)
	}
}

func validateAssertion(i int, a *Assertion) error {
	switch a.Type {
	case AssertLockState:
		if a.Requirement == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: requirement and state are required for lock_state", i)
		}
	case AssertCompletion:
		if a.Requirement == "" {
			return fmt.Errorf("assertions[%d]: requirement is required for completion", i)
		}
		if a.Percentage == nil && a.Complete == nil {
			return fmt.Errorf("assertions[%d]: percentage or complete is required for completion", i)
		}
	case AssertReservationCode:
		if a.Reservation == "" {
			return fmt.Errorf("assertions[%d]: reservation is required for reservation_code", i)
		}
	case AssertReservationCount:
		if a.Requirement == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: requirement and count are required for reservation_count", i)
		}
	case AssertChangeCount:
		if a.Kind == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: kind and count are required for change_count", i)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
