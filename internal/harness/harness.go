package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/engine"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/router"
	"github.com/roach88/mnemo/internal/store"
	"github.com/roach88/mnemo/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a real engine with a fixed clock and
// sequential request ids, so two runs of a scenario produce the same trace.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *clock.Fixed
	seq    *testutil.Sequence
	logger *zap.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. Default: a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and seed the default rules
// 2. Import the scenario's rules file, if any
// 3. Execute setup steps (any failure aborts the run)
// 4. Execute flow steps and check expect clauses
// 5. Evaluate assertions and return the result with trace and errors
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	now := scenario.Now
	if now == "" {
		now = DefaultNow
	}
	start, err := time.Parse(time.RFC3339, now)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario clock: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  clock.NewFixed(start),
		seq:    testutil.NewSequence(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.New(st,
		engine.WithClock(h.clock),
		engine.WithRequestIDs(ingest.NewSequenceGenerator("req")),
		engine.WithLogger(h.logger),
	)

	ctx := context.Background()

	if _, err := h.engine.SeedDefaultRules(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed rules: %w", err)
	}
	if scenario.Rules != "" {
		rules, err := router.LoadRulesFile(scenario.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		if _, err := h.engine.ImportRules(ctx, rules); err != nil {
			return nil, fmt.Errorf("failed to import rules: %w", err)
		}
	}

	// Execute setup steps
	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	// Execute flow steps
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	// Evaluate assertions against the result
	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// call runs one action and records its invocation and completion.
func (h *Harness) call(ctx context.Context, action string, args map[string]interface{}, result *Result) (string, interface{}, error) {
	fn, ok := actions[action]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", action)
	}

	result.AddInvocationTrace(action, args, h.seq.Next())

	out, callErr := fn(ctx, h, args)
	outputCase := CaseOK
	var value interface{}
	if callErr != nil {
		outputCase = string(model.CodeOf(callErr))
		if outputCase == "" {
			return "", nil, callErr
		}
		value = map[string]interface{}{"message": callErr.Error()}
	} else {
		var err error
		if value, err = toJSONValue(out); err != nil {
			return "", nil, fmt.Errorf("encode %s result: %w", action, err)
		}
	}

	result.AddCompletionTrace(action, outputCase, value, h.seq.Next())
	h.logger.Debug("action completed",
		zap.String("action", action),
		zap.String("output_case", outputCase),
	)
	return outputCase, value, callErr
}

// executeSetup runs all setup steps. Setup steps must succeed.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		outputCase, _, err := h.call(ctx, step.Action, step.Args, result)
		if outputCase == "" {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		if outputCase != CaseOK {
			return fmt.Errorf("setup step %d (%s): completed with %s: %w", i, step.Action, outputCase, err)
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
// Coded engine errors are outcomes, not harness failures.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		outputCase, value, err := h.call(ctx, step.Invoke, step.Args, result)
		if err != nil && outputCase == "" {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}

		if step.Expect == nil {
			continue
		}
		if outputCase != step.Expect.Case {
			msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, step.Expect.Case, outputCase)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
			continue
		}
		if step.Expect.Result == nil {
			continue
		}
		expected, convErr := toJSONValue(step.Expect.Result)
		if convErr != nil {
			return fmt.Errorf("flow step %d (%s): encode expected result: %w", i, step.Invoke, convErr)
		}
		if path, ok := subsetMatch(value, expected, "result"); !ok {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s does not match expected value", i, step.Invoke, path))
		}
	}

	return nil
}
