package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/caras/internal/catalog"
	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/model"
	"github.com/roach88/caras/internal/seed"
	"github.com/roach88/caras/internal/store"
	"github.com/roach88/caras/internal/testutil"
)

// Harness executes one scenario against its own store and engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger

	// requirements are the ids whose lock state is traced, in first-seen
	// order.
	requirements []string

	// subs holds one broker subscription per campaign seen.
	subs map[string]*engine.Subscription
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential ids and
// codes. Execution flow:
//  1. Validate and apply the seed block
//  2. Run each step, comparing its outcome with expect and recording the
//     changes its subscribers received
//  3. Check the published changes against the durable log
//  4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	doc, err := scenario.SeedDocument()
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	policy, err := engine.ParseOverbookingPolicy(scenario.Overbooking)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	opts := []engine.Option{
		engine.WithIDGenerator(testutil.NewSequentialIDs()),
		engine.WithOverbooking(policy),
		engine.WithLogger(logger),
	}
	if scenario.CodePrefix != "" {
		opts = append(opts, engine.WithCodePrefix(scenario.CodePrefix))
	}

	broker := engine.NewBroker()
	defer broker.Close()
	opts = append(opts, engine.WithBroker(broker))

	h := &Harness{
		store:  st,
		engine: engine.New(st, opts...),
		logger: logger,
		subs:   make(map[string]*engine.Subscription),
	}

	for _, r := range doc.Requirements {
		h.track(r.ID, r.Campaign)
	}
	if _, err := seed.Apply(ctx, h.engine, st, doc); err != nil {
		return nil, fmt.Errorf("failed to apply seed: %w", err)
	}
	seeded := len(h.published())

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		if ev.Locks, err = h.locks(ctx); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		ev.Published = h.published()
		result.Trace = append(result.Trace, ev)

		want := "ok"
		if step.Expect != nil && step.Expect.Error != "" {
			want = step.Expect.Error
		}
		if ev.Outcome != want {
			result.AddError("step %d (%s): expected %s, got %s", i, step.Op, want, ev.Outcome)
		}
	}

	if result.Changes, err = h.changes(ctx); err != nil {
		return nil, err
	}
	checkPublished(result, seeded)

	actx := &AssertionContext{Engine: h.engine, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError("%s", msg)
	}
	return result, nil
}

// execute runs one step. Engine rule rejections become the event outcome;
// any other failure aborts the scenario.
func (h *Harness) execute(ctx context.Context, i int, step Step) (TraceEvent, error) {
	ev := TraceEvent{Step: i, Op: step.Op}
	var opErr error

	switch step.Op {
	case OpCreateRequirement:
		req, err := step.Fields.Model()
		if err != nil {
			return ev, err
		}
		h.watch(req.CampaignID)
		req, opErr = h.engine.CreateRequirement(ctx, req)
		if opErr == nil {
			h.track(req.ID, req.CampaignID)
			ev.IDs = []string{req.ID}
		}

	case OpUpdateRequirement:
		v, err := h.engine.GetRequirement(ctx, step.Requirement)
		if err != nil {
			opErr = err
			break
		}
		req, err := step.Patch.apply(v.Requirement)
		if err != nil {
			return ev, err
		}
		_, opErr = h.engine.UpdateRequirement(ctx, req)

	case OpDeleteRequirement:
		opErr = h.engine.DeleteRequirement(ctx, step.Requirement)

	case OpCreateReservation:
		p, err := model.ParsePeriod(step.Period)
		if err != nil {
			return ev, err
		}
		var r model.Reservation
		r, opErr = h.engine.CreateReservation(ctx, engine.ReservationRequest{
			ID:            step.Reservation,
			RequirementID: step.Requirement,
			InventoryID:   step.Inventory,
			Type:          model.FulfillmentType(step.Type),
			Period:        p,
		})
		if opErr == nil {
			ev.IDs = []string{r.ID}
		}

	case OpDeleteReservations:
		_, opErr = h.engine.DeleteReservations(ctx, step.Reservations)

	case OpAssignCode:
		var res engine.AssignResult
		res, opErr = h.engine.AssignCode(ctx, step.Reservations, step.Code)
		ev.Code = res.Code

	case OpRevokeCode:
		var res engine.RevokeResult
		res, opErr = h.engine.RevokeCode(ctx, step.Reservations)
		ev.IDs = res.Revoked

	case OpCheckConflicts:
		var report engine.ConflictReport
		report, opErr = h.engine.CheckConflicts(ctx, step.Reservations)
		ev.Conflicts = conflictPairs(report.Conflicts)

	case OpSearchInventory:
		f := catalog.Filter{}
		if step.Period != "" {
			p, err := model.ParsePeriod(step.Period)
			if err != nil {
				return ev, err
			}
			f.Period = &p
		}
		var units []model.InventoryUnit
		units, opErr = h.engine.SearchInventory(ctx, step.Requirement, f)
		for _, u := range units {
			ev.IDs = append(ev.IDs, u.ID)
		}

	case OpLinkTask:
		if err := h.store.UpsertTask(ctx, model.Task{ID: step.Task, Title: step.Task, Status: "open"}); err != nil {
			return ev, err
		}
		if err := h.store.LinkTask(ctx, step.Task, step.Reservations); err != nil {
			return ev, err
		}

	case OpCloseTask:
		if err := h.store.SetTaskStatus(ctx, step.Task, model.TaskStatusDone); err != nil {
			return ev, err
		}

	default:
		return ev, fmt.Errorf("unknown op %q", step.Op)
	}

	ev.Outcome = "ok"
	if opErr != nil {
		ee, ok := engine.AsError(opErr)
		if !ok {
			return ev, opErr
		}
		ev.Outcome = string(ee.Code)
		if len(ee.Conflicts) > 0 {
			ev.Conflicts = conflictPairs(ee.Conflicts)
		}
		h.logger.Debug("step rejected", "step", i, "op", step.Op, "code", ee.Code)
	}
	return ev, nil
}

func (h *Harness) track(requirementID, campaignID string) {
	h.watch(campaignID)
	for _, id := range h.requirements {
		if id == requirementID {
			return
		}
	}
	h.requirements = append(h.requirements, requirementID)
}

// watch subscribes to a campaign before anything is written to it.
func (h *Harness) watch(campaignID string) {
	if _, ok := h.subs[campaignID]; !ok {
		h.subs[campaignID] = h.engine.Subscribe(campaignID)
	}
}

// published drains every subscription and returns the seqs received, in
// order.
func (h *Harness) published() []int64 {
	var seqs []int64
	for _, sub := range h.subs {
		for {
			c, ok := sub.TryNext()
			if !ok {
				break
			}
			seqs = append(seqs, c.Seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}

// checkPublished fails the result unless subscribers received exactly the
// logged changes after the first seeded ones, each once.
func checkPublished(result *Result, seeded int) {
	var got []int64
	for _, ev := range result.Trace {
		got = append(got, ev.Published...)
	}
	var want []int64
	for i, c := range result.Changes {
		if i >= seeded {
			want = append(want, c.Seq)
		}
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		result.AddError("published changes %v do not match the change log %v", got, want)
	}
}

// locks reads the lock state of every tracked requirement that still exists.
func (h *Harness) locks(ctx context.Context) (map[string]model.LockState, error) {
	out := make(map[string]model.LockState, len(h.requirements))
	for _, id := range h.requirements {
		v, err := h.engine.GetRequirement(ctx, id)
		if engine.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = v.LockState
	}
	return out, nil
}

// changes reads the change log of every campaign seen, ordered by seq.
func (h *Harness) changes(ctx context.Context) ([]model.Change, error) {
	all := []model.Change{}
	for c := range h.subs {
		cs, err := h.engine.Changes(ctx, c, 0, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, cs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all, nil
}

func conflictPairs(conflicts []engine.TaskConflict) []string {
	var out []string
	for _, c := range conflicts {
		out = append(out, c.ReservationID+"/"+c.Task.ID)
	}
	return out
}

func (p *Patch) apply(req model.FaceRequirement) (model.FaceRequirement, error) {
	if p.Article != nil {
		req.Article = *p.Article
	}
	if p.Start != nil {
		start, err := model.ParsePeriod(*p.Start)
		if err != nil {
			return req, fmt.Errorf("patch start: %w", err)
		}
		req.StartPeriod = start
	}
	if p.End != nil {
		end, err := model.ParsePeriod(*p.End)
		if err != nil {
			return req, fmt.Errorf("patch end: %w", err)
		}
		req.EndPeriod = end
	}
	if p.Flow != nil {
		req.FlowRequired = *p.Flow
	}
	if p.CounterFlow != nil {
		req.CounterFlowRequired = *p.CounterFlow
	}
	if p.Bonus != nil {
		req.BonusRequired = *p.Bonus
	}
	return req, nil
}
