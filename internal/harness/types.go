package harness

import (
	"github.com/roach88/fable/internal/engine"
	"github.com/roach88/fable/internal/world"
)

// TraceEvent is one turn as recorded by the harness.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Trigger string `json:"trigger"`
	RuleID  string `json:"rule"`
	Matched bool   `json:"matched"`
	Weight  int    `json:"weight"`
	Text    string `json:"text"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every turn in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// World is the final world after the last trigger.
	World []world.Record `json:"world"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTurn appends a turn to the trace.
func (r *Result) AddTurn(t engine.Turn) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     t.Seq,
		Trigger: t.Trigger,
		RuleID:  t.RuleID,
		Matched: t.Matched,
		Weight:  t.Weight,
		Text:    t.Text,
	})
}
