package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/engine"
	"github.com/roach88/fable/internal/store"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh in-memory journal with a fixed session id.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	program *compiler.Program
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's world definition
//  2. Create fresh in-memory database
//  3. Fire each flow trigger through the engine, checking expect clauses
//  4. Replay the journal and require the same turns
//  5. Evaluate assertions against the trace and final world
//
// A returned error means the scenario could not run; a failing scenario
// returns a Result with Pass false.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	program, err := LoadProgram(scenario)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(program.Rules); len(errs) > 0 {
		return nil, fmt.Errorf("invalid rules: %w", errs[0])
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	session := scenario.Session
	if session == "" {
		session = DefaultSession
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	eng, err := engine.New(program.World, program.Rules,
		engine.WithJournal(st),
		engine.WithSessionID(session),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{store: st, engine: eng, program: program, logger: logger}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	if err := h.checkReplay(ctx, session); err != nil {
		result.AddError(err.Error())
	}

	final := eng.World()
	result.World = final.Records()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, final) {
		result.AddError(msg)
	}

	return result, nil
}

// LoadProgram compiles the scenario's world definition from Specs or Source.
func LoadProgram(scenario *Scenario) (*compiler.Program, error) {
	if scenario.Source != "" {
		p, err := compiler.CompileString(scenario.Source, scenario.Name+".cue")
		if err != nil {
			return nil, fmt.Errorf("failed to compile source: %w", err)
		}
		return p, nil
	}

	p, errs := compiler.LoadDir(scenario.Specs, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load specs: %w", errs[0])
	}
	return p, nil
}

// executeFlow fires each trigger in order and checks its expect clause.
// Engine errors abort the run; expectation mismatches are recorded.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		turn, err := h.engine.Step(ctx, compiler.NormalizeName(step.Trigger))
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Trigger, err)
		}
		result.AddTurn(turn)

		for _, msg := range checkExpect(step.Expect, turn) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Trigger, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"trigger", step.Trigger,
			"rule", turn.RuleID,
			"seq", turn.Seq,
		)
	}
	return nil
}

func checkExpect(e *ExpectClause, turn engine.Turn) []string {
	if e == nil {
		return nil
	}
	var errs []string
	if e.Rule != "" && (!turn.Matched || turn.RuleID != e.Rule) {
		got := turn.RuleID
		if !turn.Matched {
			got = "no rule"
		}
		errs = append(errs, fmt.Sprintf("expected rule %s, got %s", e.Rule, got))
	}
	if e.Matched != nil && turn.Matched != *e.Matched {
		errs = append(errs, fmt.Sprintf("expected matched=%t, got %t", *e.Matched, turn.Matched))
	}
	if e.Text != "" && turn.Text != e.Text {
		errs = append(errs, fmt.Sprintf("expected text %q, got %q", e.Text, turn.Text))
	}
	return errs
}

// checkReplay re-runs the journaled session and requires identical turns.
func (h *Harness) checkReplay(ctx context.Context, session string) error {
	sess, err := h.store.ReadSession(ctx, session)
	if err != nil {
		return fmt.Errorf("replay: read session: %w", err)
	}
	turns, err := h.store.ReadTurns(ctx, session)
	if err != nil {
		return fmt.Errorf("replay: read turns: %w", err)
	}
	if _, err := engine.Replay(ctx, sess, turns, h.program.Rules, h.logger); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}
