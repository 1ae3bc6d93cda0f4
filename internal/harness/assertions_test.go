package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assertionSeed = `
seed:
  inventory:
    - {id: a, code: MX-A}
    - {id: b, code: MX-B}
  requirements:
    - {id: req, campaign: c1, article: A, start: 7/2026, end: 7/2026, flow: 2}
  reservations:
    - {id: r1, requirement: req, inventory: a, type: flow, period: 7/2026, code: APS-5}
`

func TestEvaluateAssertions_Failures(t *testing.T) {
	scenario, err := ParseScenario([]byte("name: failing" + assertionSeed + `
assertions:
  - type: lock_state
    requirement: req
    state: fully_authorized
  - type: completion
    requirement: req
    percentage: 100
  - type: reservation_code
    reservation: r1
    code: APS-6
  - type: reservation_count
    requirement: req
    count: 2
  - type: change_count
    kind: code_assigned
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "Assertion failed: lock_state")
	assert.Contains(t, result.Errors[0], "Actual: partially_authorized")
	assert.Contains(t, result.Errors[1], "Actual: 50% (1/2 reserved)")
	assert.Contains(t, result.Errors[2], `Actual: "APS-5"`)
	assert.Contains(t, result.Errors[3], "Actual: 1")
	assert.Contains(t, result.Errors[4], "Actual: 1")
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	scenario, err := ParseScenario([]byte("name: passing" + assertionSeed + `
assertions:
  - type: lock_state
    requirement: req
    state: partially_authorized
  - type: completion
    requirement: req
    percentage: 50
    complete: false
  - type: reservation_code
    reservation: r1
    code: APS-5
  - type: reservation_count
    requirement: req
    count: 1
  - type: change_count
    kind: reservation_created
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestEvaluateAssertions_MissingRecord(t *testing.T) {
	scenario, err := ParseScenario([]byte("name: missing" + assertionSeed + `
assertions:
  - type: reservation_code
    reservation: nope
  - type: lock_state
    requirement: nope
    state: unlocked
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "RESERVATION_NOT_FOUND")
	assert.Contains(t, result.Errors[1], "REQUIREMENT_NOT_FOUND")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: "lock_state", Expected: "req is unlocked", Actual: "fully_authorized"}
	assert.Equal(t, "Assertion failed: lock_state\n  Expected: req is unlocked\n  Actual: fully_authorized", err.Error())
}
