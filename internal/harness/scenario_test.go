package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "task_conflicts_and_edits.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "task_conflicts_and_edits", s.Name)
	require.Len(t, s.Steps, 13)
	assert.Equal(t, OpDeleteReservations, s.Steps[0].Op)
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, "ACTIVE_TASKS", s.Steps[0].Expect.Error)

	patch := s.Steps[6].Patch
	require.NotNil(t, patch)
	require.NotNil(t, patch.End)
	assert.Equal(t, "7/2026", *patch.End)
	require.NotNil(t, patch.Bonus)
	assert.Equal(t, 2, *patch.Bonus)
	assert.Nil(t, patch.Flow)

	doc, err := s.SeedDocument()
	require.NoError(t, err)
	assert.Len(t, doc.Inventory, 3)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "open", doc.Tasks[0].Status)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\nsteps:\n  - op: close_task\n    task: t\n    colour: red\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "steps:\n  - op: close_task\n    task: t\n",
			want: "name is required",
		},
		{
			name: "empty",
			yaml: "name: x\n",
			want: "at least one step or assertion",
		},
		{
			name: "unknown op",
			yaml: "name: x\nsteps:\n  - op: teleport\n",
			want: `unknown op "teleport"`,
		},
		{
			name: "missing reservations",
			yaml: "name: x\nsteps:\n  - op: assign_code\n",
			want: "reservations is required for assign_code",
		},
		{
			name: "missing patch",
			yaml: "name: x\nsteps:\n  - op: update_requirement\n    requirement: r\n",
			want: "patch is required",
		},
		{
			name: "create_reservation without period",
			yaml: "name: x\nsteps:\n  - op: create_reservation\n    requirement: r\n    inventory: a\n    type: flow\n",
			want: "period is required",
		},
		{
			name: "bad assertion",
			yaml: "name: x\nassertions:\n  - type: completion\n    requirement: r\n",
			want: "percentage or complete is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\nassertions:\n  - type: vibes\n",
			want: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeedDocument_Empty(t *testing.T) {
	s, err := ParseScenario([]byte("name: x\nsteps:\n  - op: close_task\n    task: t\n"))
	require.NoError(t, err)
	doc, err := s.SeedDocument()
	require.NoError(t, err)
	assert.Empty(t, doc.Requirements)
}

func TestScenarioFiles_AreValid(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	for _, e := range entries {
		_, err := LoadScenario(filepath.Join("testdata", "scenarios", e.Name()))
		assert.NoError(t, err, e.Name())
	}
}
