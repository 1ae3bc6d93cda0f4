package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/model"
)

// caras runs the root command against db and returns stdout.
func caras(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// mustCaras runs the root command and fails the test on error.
func mustCaras(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := caras(t, db, args...)
	require.NoError(t, err, "caras %v: %s", args, out)
	return out
}

// decodeData unmarshals the data field of a JSON envelope.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func newTestDB(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"CARAS_DB", "CARAS_CODE_PREFIX", "CARAS_OVERBOOKING", "CARAS_LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	db := filepath.Join(t.TempDir(), "caras.db")
	mustCaras(t, db, "inventory", "add", "--id", "a", "--code", "MX-A", "--city", "Monterrey", "--face-format", "billboard")
	mustCaras(t, db, "inventory", "add", "--id", "b", "--code", "MX-B", "--city", "Monterrey", "--face-format", "billboard")
	mustCaras(t, db, "requirements", "add", "--id", "req-1", "--campaign", "camp-1", "--article", "ART-1",
		"--start", "7/2026", "--end", "7/2026", "--flow", "2", "--city", "monterrey", "--rate", "18500.00")
	mustCaras(t, db, "reservations", "add", "--id", "r1", "--requirement", "req-1", "--inventory", "a", "--type", "flow", "--period", "7/2026")
	mustCaras(t, db, "reservations", "add", "--id", "r2", "--requirement", "req-1", "--inventory", "b", "--type", "flow", "--period", "7/2026")
	return db
}

func TestAuthorizationFlow(t *testing.T) {
	db := newTestDB(t)

	out := mustCaras(t, db, "codes", "assign", "r1")
	assert.Equal(t, "Assigned APS-1 to 1 reservations (requirements: req-1)\n", out)

	out = mustCaras(t, db, "--format", "json", "requirements", "list", "--campaign", "camp-1")
	var views []engine.RequirementView
	decodeData(t, out, &views)
	require.Len(t, views, 1)
	assert.Equal(t, model.PartiallyAuthorized, views[0].LockState)
	assert.Equal(t, 100, views[0].Completion.Percentage)
	assert.Equal(t, "18500", views[0].Requirement.PublicRate.String())

	out, err := caras(t, db, "requirements", "delete", "req-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [REQUIREMENT_LOCKED]")

	out, err = caras(t, db, "codes", "assign", "r1", "r2")
	require.Error(t, err)
	assert.Contains(t, out, "Error [ALREADY_CODED]")
	assert.Contains(t, out, "r1=APS-1")

	mustCaras(t, db, "codes", "assign", "r2", "--code", "APS-77")
	out = mustCaras(t, db, "requirements", "show", "req-1")
	assert.Contains(t, out, "State:    fully_authorized")
	assert.Contains(t, out, "APS-77")

	out, err = caras(t, db, "reservations", "add", "--requirement", "req-1", "--inventory", "a", "--type", "bonus", "--period", "7/2026")
	require.Error(t, err)
	assert.Contains(t, out, "Error [REQUIREMENT_LOCKED]")

	out, err = caras(t, db, "requirements", "update", "req-1", "--flow", "3")
	require.Error(t, err)
	assert.Contains(t, out, "Error [REQUIREMENT_LOCKED]")
}

func TestRevokeRefusedByActiveTasks(t *testing.T) {
	db := newTestDB(t)
	mustCaras(t, db, "codes", "assign", "r1", "r2", "--code", "APS-9")
	mustCaras(t, db, "tasks", "add", "--id", "t1", "--title", "Install")
	mustCaras(t, db, "tasks", "link", "t1", "r2")

	out := mustCaras(t, db, "conflicts", "r1", "r2")
	assert.Contains(t, out, "r2 held by task t1 (Install, open)")

	out, err := caras(t, db, "codes", "revoke", "r1", "r2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [ACTIVE_TASKS]")
	assert.Contains(t, out, "r2 held by task t1")

	out = mustCaras(t, db, "codes", "revoke", "r1", "r2", "--force")
	assert.Equal(t, "Revoked 2 reservations\n", out)

	out = mustCaras(t, db, "codes", "revoke", "r1")
	assert.Equal(t, "Revoked 0 reservations (1 had no code: r1)\n", out)

	out, err = caras(t, db, "reservations", "delete", "r1", "r2")
	require.Error(t, err)
	assert.Contains(t, out, "Error [ACTIVE_TASKS]")

	mustCaras(t, db, "tasks", "close", "t1")
	out = mustCaras(t, db, "reservations", "delete", "r1", "r2")
	assert.Equal(t, "Deleted 2 reservations\n", out)

	out = mustCaras(t, db, "requirements", "delete", "req-1")
	assert.Contains(t, out, "req-1")
}

func TestInventorySearch(t *testing.T) {
	db := newTestDB(t)
	mustCaras(t, db, "inventory", "add", "--id", "c", "--code", "MX-C", "--city", "Querétaro", "--face-format", "billboard")

	out := mustCaras(t, db, "--format", "json", "inventory", "search", "--requirement", "req-1")
	var units []model.InventoryUnit
	decodeData(t, out, &units)
	require.Len(t, units, 2)
	assert.Equal(t, "a", units[0].ID)

	out = mustCaras(t, db, "--format", "json", "inventory", "search", "--requirement", "req-1", "--city", "queretaro")
	decodeData(t, out, &units)
	require.Len(t, units, 1)
	assert.Equal(t, "c", units[0].ID)

	out, err := caras(t, db, "inventory", "search", "--requirement", "req-1", "--period", "8/2026")
	require.Error(t, err)
	assert.Contains(t, out, "Error [PERIOD_OUT_OF_RANGE]")
}

func TestRequirementsUpdateAndGroup(t *testing.T) {
	db := newTestDB(t)
	mustCaras(t, db, "codes", "assign", "r1")

	out, err := caras(t, db, "requirements", "update", "req-1", "--flow", "0")
	require.Error(t, err)
	assert.Contains(t, out, "Error [LOCKED_QUANTITY]")

	out = mustCaras(t, db, "requirements", "update", "req-1", "--end", "8/2026", "--bonus", "1")
	assert.Contains(t, out, "Periods:  7/2026..8/2026")
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "Version:  2")

	// An edit made from the version before the last one is refused
	out, err = caras(t, db, "requirements", "update", "req-1", "--bonus", "2", "--if-version", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [STALE_REQUIREMENT]")

	mustCaras(t, db, "requirements", "add", "--id", "req-2", "--campaign", "camp-1", "--article", "ART-2",
		"--start", "8/2026", "--end", "8/2026", "--flow", "1")

	out = mustCaras(t, db, "--format", "json", "requirements", "list", "--campaign", "camp-1", "--group-by", "period")
	var groups []struct {
		Key   model.GroupKey          `json:"key"`
		Items []engine.RequirementView `json:"items"`
	}
	decodeData(t, out, &groups)
	require.Len(t, groups, 2)
	assert.Equal(t, model.Period{Number: 7, Year: 2026}, groups[0].Key.Period)
	assert.Len(t, groups[0].Items, 1)
	assert.Len(t, groups[1].Items, 2)

	_, err = caras(t, db, "requirements", "list", "--campaign", "camp-1", "--group-by", "city")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestChangesCommand(t *testing.T) {
	db := newTestDB(t)
	mustCaras(t, db, "codes", "assign", "r1", "r2")

	out := mustCaras(t, db, "--format", "json", "changes", "--campaign", "camp-1")
	var changes []model.Change
	decodeData(t, out, &changes)
	require.Len(t, changes, 4)
	assert.Equal(t, model.ChangeRequirementCreated, changes[0].Kind)
	assert.Equal(t, model.ChangeCodeAssigned, changes[3].Kind)
	assert.Equal(t, []string{"r1", "r2"}, changes[3].ReservationIDs)

	out = mustCaras(t, db, "changes", "--campaign", "camp-1", "--since", "3")
	assert.Equal(t, "4\tcode_assigned\treq-1\tr1,r2\tcode=APS-1\n", out)
}

func TestFollowChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sinces []int64
	read := func(_ context.Context, since int64) ([]model.Change, error) {
		sinces = append(sinces, since)
		switch len(sinces) {
		case 1:
			return []model.Change{{Seq: 5, Kind: model.ChangeCodeAssigned, RequirementID: "req-1", Code: "APS-1"}}, nil
		default:
			cancel()
			return nil, nil
		}
	}

	buf := &bytes.Buffer{}
	opts := &ChangesOptions{RootOptions: &RootOptions{Format: "json"}, Since: 2, Interval: time.Millisecond}
	require.NoError(t, followChanges(ctx, opts, buf, read))

	require.GreaterOrEqual(t, len(sinces), 2)
	assert.Equal(t, []int64{2, 5}, sinces[:2])
	assert.JSONEq(t, `{"seq":5,"campaign_id":"","requirement_id":"req-1","kind":"code_assigned","code":"APS-1"}`, buf.String())
}

func TestSeedCommand(t *testing.T) {
	for _, k := range []string{"CARAS_DB", "CARAS_CODE_PREFIX", "CARAS_OVERBOOKING", "CARAS_LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	db := filepath.Join(t.TempDir(), "caras.db")

	out := mustCaras(t, db, "seed", filepath.Join("..", "seed", "testdata", "campaign.yaml"))
	assert.Equal(t, "Seeded 3 units, 1 requirements, 3 reservations, 1 codes, 1 tasks\n", out)

	out = mustCaras(t, db, "requirements", "list", "--campaign", "camp-1")
	assert.Contains(t, out, "partially_authorized")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("requirements:\n  - {id: x, campaign: c, article: a, start: 0/2026, end: 1/2026}\n"), 0644))
	_, err := caras(t, db, "seed", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid seed file")
}

func TestOverbookingFromEnvironment(t *testing.T) {
	db := newTestDB(t)
	mustCaras(t, db, "inventory", "add", "--id", "c", "--code", "MX-C")

	out, err := caras(t, db, "reservations", "add", "--requirement", "req-1", "--inventory", "c", "--type", "flow", "--period", "7/2026")
	require.Error(t, err)
	assert.Contains(t, out, "Error [QUOTA_EXCEEDED]")

	t.Setenv("CARAS_OVERBOOKING", "allow")
	mustCaras(t, db, "reservations", "add", "--requirement", "req-1", "--inventory", "c", "--type", "flow", "--period", "7/2026")

	out = mustCaras(t, db, "requirements", "show", "req-1")
	assert.Contains(t, out, "Reserved: 3 of 2 (100%) overbooked")
}

func TestCodePrefixFromEnvironment(t *testing.T) {
	db := newTestDB(t)
	t.Setenv("CARAS_CODE_PREFIX", "MTY-")

	out := mustCaras(t, db, "codes", "assign", "r1")
	assert.Contains(t, out, "Assigned MTY-1")
}
