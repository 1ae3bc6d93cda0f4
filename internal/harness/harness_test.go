package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/model"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		scenario, err := LoadScenario(file)
		require.NoError(t, err, file)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "authorize_in_batches.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
seed:
  inventory:
    - {id: a, code: MX-A}
  requirements:
    - {id: req, campaign: c1, article: A, start: 7/2026, end: 7/2026, flow: 1}
steps:
  - op: create_reservation
    reservation: r1
    requirement: req
    inventory: a
    type: flow
    period: 7/2026
  - op: create_reservation
    reservation: r2
    requirement: req
    inventory: a
    type: flow
    period: 8/2026
  - op: assign_code
    reservations: [r1]
    expect: {error: ALREADY_CODED}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected ok, got PERIOD_OUT_OF_RANGE")
	assert.Contains(t, result.Errors[1], "expected ALREADY_CODED, got ok")

	require.Len(t, result.Trace, 3)
	assert.Equal(t, "APS-1", result.Trace[2].Code)
	assert.Equal(t, model.FullyAuthorized, result.Trace[2].Locks["req"])
}

func TestRun_AllowOverbooking(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: overbook
overbooking: allow
code_prefix: "OT-"
seed:
  inventory:
    - {id: a, code: MX-A}
    - {id: b, code: MX-B}
  requirements:
    - {id: req, campaign: c1, article: A, start: 7/2026, end: 7/2026, flow: 1}
steps:
  - op: create_reservation
    requirement: req
    inventory: a
    type: flow
    period: 7/2026
  - op: create_reservation
    requirement: req
    inventory: b
    type: flow
    period: 7/2026
  - op: assign_code
    reservations: [res-1, res-2]
assertions:
  - type: lock_state
    requirement: req
    state: fully_authorized
  - type: reservation_code
    reservation: res-2
    code: OT-1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"res-1"}, result.Trace[0].IDs)
	assert.Equal(t, []string{"res-2"}, result.Trace[1].IDs)
}

func TestRun_PublishesEachCommittedChange(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: published
seed:
  inventory:
    - {id: a, code: MX-A}
steps:
  - op: create_requirement
    fields: {id: q, campaign: c2, article: A, start: 7/2026, end: 7/2026, flow: 1}
  - op: create_reservation
    reservation: r1
    requirement: q
    inventory: a
    type: flow
    period: 7/2026
  - op: delete_reservations
    reservations: [r9]
    expect: {error: UNKNOWN_RESERVATION}
  - op: delete_reservations
    reservations: [r1]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// The campaign first appears in a step; its subscription must already
	// be open when the requirement is created
	require.Len(t, result.Trace, 4)
	assert.Equal(t, []int64{1}, result.Trace[0].Published)
	assert.Equal(t, []int64{2}, result.Trace[1].Published)
	assert.Empty(t, result.Trace[2].Published, "rejected steps publish nothing")
	assert.Equal(t, []int64{3}, result.Trace[3].Published)
	require.Len(t, result.Changes, 3)
}

func TestCheckPublished_Mismatch(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{{Step: 0, Published: []int64{2}}}
	result.Changes = []model.Change{{Seq: 1}, {Seq: 2}, {Seq: 3}}

	checkPublished(result, 1)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "[2] do not match the change log [2 3]")
}

func TestRun_InvalidSeed(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_seed
seed:
  requirements:
    - {id: req, campaign: c1, article: A, start: 27/2026, end: 7/2026}
steps:
  - op: delete_requirement
    requirement: req
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid seed")
}

func TestRun_UnknownOverbookingPolicy(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_policy
overbooking: sometimes
steps:
  - op: delete_requirement
    requirement: req
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
}
