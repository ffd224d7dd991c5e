package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/engine"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult is the replay outcome of one session.
type ReplaySessionResult struct {
	SessionID     string `json:"session_id"`
	Turns         int    `json:"turns"`
	RulesChanged  bool   `json:"rules_changed"`
	Deterministic bool   `json:"deterministic"`
	FinalDigest   string `json:"final_digest,omitempty"`
	Divergence    string `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Re-run journaled sessions from their starting worlds against the rules in
specs-dir and check that every turn picks the same rule and produces the
same world digest as the journal.

Exit codes:
  0 - All sessions replayed identically
  1 - A session diverged
  2 - Command error (database not found, etc.)

Examples:
  fable replay ./world --db ./fable.db
  fable replay ./world --db ./fable.db --session 0190...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $FABLE_DB)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	prog, err := mustLoad(formatter, specsDir)
	if err != nil {
		return err
	}

	st, err := openStore(formatter, opts.dbPath(opts.Database))
	if err != nil {
		return err
	}
	defer st.Close()

	var ids []string
	if opts.Session != "" {
		ids = []string{opts.Session}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return commandError(formatter, ErrCodeStore, "failed to list sessions", err)
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	result := ReplayResult{Sessions: []ReplaySessionResult{}, AllDeterministic: true}
	for _, id := range ids {
		sr, err := replaySession(ctx, opts, st, id, prog.Rules)
		if errors.Is(err, sql.ErrNoRows) {
			return commandError(formatter, compiler.ErrCodeNotFound, fmt.Sprintf("session not found: %s", id), nil)
		}
		if err != nil {
			return commandError(formatter, ErrCodeStore, "failed to replay session", err)
		}
		result.Sessions = append(result.Sessions, sr)
		if !sr.Deterministic {
			result.AllDeterministic = false
		}
	}
	result.TotalSessions = len(result.Sessions)

	if err := outputReplay(formatter, result); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from the journal")
	}
	return nil
}

// replaySession replays one session. A divergence is reported in the
// result; any other failure is returned.
func replaySession(ctx context.Context, opts *ReplayOptions, st *store.Store, id string, rules []rule.Rule) (ReplaySessionResult, error) {
	sess, err := st.ReadSession(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	turns, err := st.ReadTurns(ctx, id)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	sr := ReplaySessionResult{SessionID: id, Turns: len(turns)}
	if rd, err := digest.Rules(rules); err == nil && rd != sess.RulesDigest {
		sr.RulesChanged = true
	}

	res, err := engine.Replay(ctx, sess, turns, rules, opts.logger())
	switch {
	case engine.IsReplayError(err):
		sr.Divergence = err.Error()
		return sr, nil
	case err != nil:
		return ReplaySessionResult{}, err
	}

	sr.Deterministic = true
	sr.FinalDigest = res.FinalDigest
	return sr, nil
}

func outputReplay(formatter *OutputFormatter, result ReplayResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions to replay")
		return nil
	}

	for _, s := range result.Sessions {
		mark := "✓"
		if !s.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d turn(s)\n", mark, s.SessionID, s.Turns)
		if s.RulesChanged {
			fmt.Fprintln(w, "  warning: rules changed since the session began")
		}
		if s.Divergence != "" {
			fmt.Fprintf(w, "  %s\n", s.Divergence)
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "All %d session(s) replayed deterministically\n", result.TotalSessions)
	} else {
		fmt.Fprintln(w, "Replay diverged from the journal")
	}
	return nil
}
