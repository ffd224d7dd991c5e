package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/harness"
	"github.com/roach88/fable/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Rule     string // optional - filter to turns fired by this rule
}

// TraceStats holds summary statistics for a session.
type TraceStats struct {
	Turns     int            `json:"turns"`
	Matched   int            `json:"matched"`
	Fallbacks int            `json:"fallbacks"`
	RuleFires map[string]int `json:"rule_fires"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID   string               `json:"session_id"`
	RulesDigest string               `json:"rules_digest"`
	Timeline    []harness.TraceEvent `json:"timeline"`
	Stats       TraceStats           `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled turns of a session",
		Long: `Show the turn timeline of a journaled session: every trigger, the rule it
fired (or fallback) and the narration.

Without --session, lists every session in the database.

Examples:
  fable trace --db ./fable.db
  fable trace --db ./fable.db --session 0190...
  fable trace --db ./fable.db --session 0190... --rule unlock`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $FABLE_DB)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only show turns fired by this rule")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(formatter, opts.dbPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Session == "" {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return commandError(formatter, ErrCodeStore, "failed to list sessions", err)
		}
		return outputSessions(formatter, sessions)
	}

	sess, err := st.ReadSession(ctx, opts.Session)
	if errors.Is(err, sql.ErrNoRows) {
		return commandError(formatter, compiler.ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.Session), nil)
	}
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to read session", err)
	}

	turns, err := st.ReadTurns(ctx, opts.Session)
	if err != nil {
		return commandError(formatter, ErrCodeStore, "failed to read turns", err)
	}

	result := TraceResult{
		SessionID:   sess.ID,
		RulesDigest: sess.RulesDigest,
		Timeline:    buildTimeline(turns, opts.Rule),
		Stats:       traceStats(turns),
	}

	if formatter.JSON() {
		return outputTraceJSON(formatter.Writer, result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// buildTimeline converts journaled turns to trace events, keeping only
// turns fired by ruleFilter when it is set.
func buildTimeline(turns []store.TurnRecord, ruleFilter string) []harness.TraceEvent {
	timeline := []harness.TraceEvent{}
	for _, t := range turns {
		if ruleFilter != "" && t.RuleID != ruleFilter {
			continue
		}
		timeline = append(timeline, harness.TraceEvent{
			Seq:     t.Seq,
			Trigger: t.Trigger,
			RuleID:  t.RuleID,
			Matched: t.Matched,
			Weight:  t.Weight,
			Text:    t.Text,
		})
	}
	return timeline
}

func traceStats(turns []store.TurnRecord) TraceStats {
	stats := TraceStats{Turns: len(turns), RuleFires: map[string]int{}}
	for _, t := range turns {
		if !t.Matched {
			stats.Fallbacks++
			continue
		}
		stats.Matched++
		stats.RuleFires[t.RuleID]++
	}
	return stats
}

func outputTraceJSON(w io.Writer, result TraceResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result, SessionID: result.SessionID})
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	if verbose {
		fmt.Fprintf(w, "Rules digest: %s\n", result.RulesDigest)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no turns)")
	}
	for _, e := range result.Timeline {
		ruleID := "(fallback)"
		if e.Matched {
			ruleID = fmt.Sprintf("%s [%d]", e.RuleID, e.Weight)
		}
		fmt.Fprintf(w, "  [%d] %s -> %s\n", e.Seq, e.Trigger, ruleID)
		if verbose {
			fmt.Fprintf(w, "       %s\n", e.Text)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Turns:     %d\n", result.Stats.Turns)
	fmt.Fprintf(w, "  Matched:   %d\n", result.Stats.Matched)
	fmt.Fprintf(w, "  Fallbacks: %d\n", result.Stats.Fallbacks)
	ids := make([]string, 0, len(result.Stats.RuleFires))
	for id := range result.Stats.RuleFires {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "    %s: %d\n", id, result.Stats.RuleFires[id])
	}
	return nil
}

func outputSessions(formatter *OutputFormatter, sessions []store.SessionSummary) error {
	if formatter.JSON() {
		return formatter.Success(sessions)
	}
	w := formatter.Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return nil
	}
	fmt.Fprintln(w, "Sessions:")
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s: %d turn(s), seq %d..%d\n", s.ID, s.Turns, s.CreatedSeq, s.LastSeq)
	}
	return nil
}
