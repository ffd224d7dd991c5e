package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/world"
)

// TraceSnapshot captures the turns and final world of a scenario run.
// Digests are left out so golden files stay readable and hand-editable.
type TraceSnapshot struct {
	ScenarioName string
	Session      string
	Trace        []TraceEvent
	World        []world.Record
}

// NewSnapshot captures result as run from scenario.
func NewSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	session := scenario.Session
	if session == "" {
		session = DefaultSession
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Session:      session,
		Trace:        result.Trace,
		World:        result.World,
	}
}

// toCanonicalMap converts a TraceSnapshot to canonical values.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = map[string]any{
			"seq":     event.Seq,
			"trigger": event.Trigger,
			"rule":    event.RuleID,
			"matched": event.Matched,
			"weight":  event.Weight,
			"text":    event.Text,
		}
	}

	records := make([]any, len(s.World))
	for i, r := range s.World {
		records[i] = digest.RecordValue(r)
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"session":  s.Session,
		"trace":    trace,
		"world":    records,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return digest.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshot(scenario, result)
	if err := assertSnapshot(t, snapshot); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	return assertSnapshot(t, TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      DefaultSession,
		Trace:        result.Trace,
		World:        result.World,
	})
}

func assertSnapshot(t *testing.T, snapshot TraceSnapshot) error {
	t.Helper()

	traceJSON, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, snapshot.ScenarioName, traceJSON)
	return nil
}
