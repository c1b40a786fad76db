package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/calcsync/internal/compiler"
	"github.com/roach88/calcsync/internal/engine"
	"github.com/roach88/calcsync/internal/ir"
	"github.com/roach88/calcsync/internal/remote"
	"github.com/roach88/calcsync/internal/store"
	"github.com/roach88/calcsync/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs one scenario against a private catalog with sequential IDs.
type Harness struct {
	store  *store.Store
	faults *testutil.FaultyService
	rec    *remote.Recorder
	calc   *engine.Calculation
	clock  *engine.Clock
	logger *slog.Logger

	// setup holds the refs of the items created by the scenario's setup.
	setup []remote.ItemRef
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger passed to the store wrapper and the
// calculation. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the template and seed the catalog
// 2. Create setup items
// 3. Execute steps, checking each step's expectations
// 4. Evaluate assertions against the trace and the database
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		clock:  engine.NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}

	tmpl, err := loadTemplate(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialGenerator("id")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	ctx := context.Background()

	catalog, err := store.ReadCatalogFile(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if _, err := st.LoadCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if err := h.executeSetup(ctx, tmpl.Category(), scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	h.faults = testutil.NewFaultyService(st)
	h.rec = remote.NewRecorder(h.faults, h.logger)
	h.calc = tmpl.Begin(h.rec,
		engine.WithLogger(h.logger),
		engine.WithItemName(scenario.ItemName),
	)

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}
	result.Final = h.calc.Snapshot()

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// loadTemplate compiles the scenario's template file.
func loadTemplate(s *Scenario) (*engine.Template, error) {
	loaded, errs := compiler.Load(s.Template, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load template: %w", errors.Join(errs...))
	}

	var spec ir.TemplateSpec
	switch {
	case s.TemplateName != "":
		var ok bool
		if spec, ok = loaded.Template(s.TemplateName); !ok {
			return nil, fmt.Errorf("template %q not found in %s", s.TemplateName, s.Template)
		}
	case len(loaded.Templates) == 1:
		spec = loaded.Templates[0]
	default:
		return nil, fmt.Errorf("%s declares %d templates, set template_name", s.Template, len(loaded.Templates))
	}

	tmpl, err := engine.FromSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build template %q: %w", spec.Name, err)
	}
	return tmpl, nil
}

// executeSetup creates the setup items directly in the store, in one
// container.
func (h *Harness) executeSetup(ctx context.Context, category string, setup []SetupItem) error {
	if len(setup) == 0 {
		return nil
	}
	containerID, err := h.store.GetOrCreateContainer(ctx)
	if err != nil {
		return err
	}
	for i, item := range setup {
		pairs, err := item.Pairs()
		if err != nil {
			return fmt.Errorf("setup item %d: %w", i, err)
		}
		id, err := h.store.CreateItem(ctx, containerID, category, pairs, item.Values,
			remote.ItemOptions{Name: item.Name, Metadata: item.Metadata})
		if err != nil {
			return fmt.Errorf("setup item %d: %w", i, err)
		}
		h.setup = append(h.setup, remote.ItemRef{ContainerID: containerID, ID: id})
		h.logger.Info("setup item created", "index", i, "item", id)
	}
	return nil
}

// executeStep runs one step, traces it with the remote calls it made and
// checks its expectations.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	before := h.rec.Len()
	accepted, err := h.perform(ctx, step)
	calls := h.rec.Since(before)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error: " + err.Error()
	case step.Action == ActionTryChoose && !accepted:
		outcome = "rejected"
	}
	result.AddStepTrace(step.Action, stepArgs(step), outcome, h.calc.Fields().ValueMap(), h.clock.Next())
	for _, c := range calls {
		result.AddCallTrace(c.Op, c.Args, c.Error, h.clock.Next())
	}

	h.logger.Info("step completed", "step", index, "action", step.Action, "outcome", outcome, "calls", len(calls))

	for _, msg := range h.checkExpect(ctx, step, accepted, err, calls) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", index, step.Action, msg))
	}
}

func (h *Harness) perform(ctx context.Context, step Step) (bool, error) {
	switch step.Action {
	case ActionChoose:
		return true, h.calc.Choose(ctx, engine.Selection(step.Values))
	case ActionTryChoose:
		return h.calc.TryChoose(ctx, engine.Selection(step.Values))
	case ActionValidate:
		return true, h.calc.Validate(ctx)
	case ActionCalculate:
		return true, h.calc.Calculate(ctx)
	case ActionReset:
		h.calc.Reset()
		return true, nil
	case ActionDelete:
		return true, h.calc.Delete(ctx)
	case ActionBind:
		ref := h.setup[step.Item]
		return true, h.calc.Apply(engine.Selection{
			engine.KeyContainerID: ref.ContainerID,
			engine.KeyItemID:      ref.ID,
		})
	case ActionFail:
		fault := remote.Unavailablef("injected %s fault", step.Op)
		if step.Times > 0 {
			h.faults.FailTimes(step.Op, step.Times, fault)
		} else {
			h.faults.Fail(step.Op, fault)
		}
		return true, nil
	case ActionHeal:
		h.faults.Heal()
		return true, nil
	}
	return false, fmt.Errorf("unknown action %q", step.Action)
}

// stepArgs returns the traced arguments of a step.
func stepArgs(step Step) map[string]any {
	switch step.Action {
	case ActionChoose, ActionTryChoose:
		return map[string]any{"values": step.Values}
	case ActionBind:
		return map[string]any{"item": step.Item}
	case ActionFail:
		return map[string]any{"op": step.Op, "times": step.Times}
	}
	return nil
}

// checkExpect compares the calculation with the step's expectations and
// returns one message per mismatch.
func (h *Harness) checkExpect(ctx context.Context, step Step, accepted bool, stepErr error, calls []remote.Call) []string {
	var msgs []string
	exp := step.Expect
	if exp == nil {
		if stepErr != nil {
			msgs = append(msgs, fmt.Sprintf("unexpected error: %v", stepErr))
		}
		return msgs
	}

	switch {
	case exp.Error == "" && stepErr != nil:
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", stepErr))
	case exp.Error != "" && stepErr == nil:
		msgs = append(msgs, fmt.Sprintf("expected error containing %q, got none", exp.Error))
	case exp.Error != "" && !strings.Contains(stepErr.Error(), exp.Error):
		msgs = append(msgs, fmt.Sprintf("expected error containing %q, got %q", exp.Error, stepErr.Error()))
	}

	if exp.Accepted != nil && *exp.Accepted != accepted {
		msgs = append(msgs, fmt.Sprintf("accepted = %t, want %t", accepted, *exp.Accepted))
	}
	if exp.State != "" && h.calc.State().String() != exp.State {
		msgs = append(msgs, fmt.Sprintf("state = %s, want %s", h.calc.State(), exp.State))
	}
	if exp.Bound != nil && h.calc.Bound() != *exp.Bound {
		msgs = append(msgs, fmt.Sprintf("bound = %t, want %t", h.calc.Bound(), *exp.Bound))
	}

	for _, label := range slices.Sorted(maps.Keys(exp.Values)) {
		want := exp.Values[label]
		if h.calc.Field(label) == nil {
			msgs = append(msgs, fmt.Sprintf("no field %q", label))
			continue
		}
		if got := h.calc.Value(label); !valuesMatch(got, want) {
			msgs = append(msgs, fmt.Sprintf("%s = %q, want %q", label, got, want))
		}
	}

	invalid := h.calc.Invalidity()
	for _, label := range slices.Sorted(maps.Keys(exp.Invalid)) {
		if got, ok := invalid[label]; !ok || !strings.Contains(got, exp.Invalid[label]) {
			msgs = append(msgs, fmt.Sprintf("%s invalidity = %q, want it to contain %q", label, got, exp.Invalid[label]))
		}
	}

	for _, op := range slices.Sorted(maps.Keys(exp.Calls)) {
		n := 0
		for _, c := range calls {
			if c.Op == op {
				n++
			}
		}
		if n != exp.Calls[op] {
			msgs = append(msgs, fmt.Sprintf("%d %s calls, want %d", n, op, exp.Calls[op]))
		}
	}

	// Checked last: Satisfied consults the catalog and its calls are not
	// part of the step.
	if exp.Satisfied != nil {
		ok, err := h.calc.Satisfied(ctx)
		switch {
		case err != nil:
			msgs = append(msgs, fmt.Sprintf("satisfied: %v", err))
		case ok != *exp.Satisfied:
			msgs = append(msgs, fmt.Sprintf("satisfied = %t, want %t", ok, *exp.Satisfied))
		}
	}
	return msgs
}
