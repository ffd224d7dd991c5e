package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/engine"
	"github.com/roach88/fable/internal/harness"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Database string
	Session  string
	MaxTurns int

	// SessionGenerator overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionIDGenerator
}

// PlayResult is the JSON payload of play.
type PlayResult struct {
	SessionID   string               `json:"session_id"`
	Turns       []harness.TraceEvent `json:"turns"`
	WorldDigest string               `json:"world_digest"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <specs-dir> [trigger...]",
		Short: "Run triggers against a world",
		Long: `Run triggers through the engine, one turn each, and print every turn's text.

Triggers come from the arguments or, when none are given, one per line from
standard input. Blank lines and lines starting with # are skipped.

With --db every turn is journaled. Passing --session with an existing
session resumes it from its latest world.

Examples:
  fable play ./world door1 door1 look
  fable play ./world --db ./fable.db < triggers.txt
  fable play ./world --db ./fable.db --session 0190... door1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal turns to this SQLite database (default $FABLE_DB)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to create or resume")
	cmd.Flags().IntVar(&opts.MaxTurns, "max-turns", -1, "turn limit for this run, 0 for none (default $FABLE_MAX_TURNS)")

	return cmd
}

func runPlay(opts *PlayOptions, specsDir string, triggers []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	prog, err := mustLoad(formatter, specsDir)
	if err != nil {
		return err
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	maxTurns := opts.MaxTurns
	if maxTurns < 0 {
		maxTurns = opts.Config.MaxTurns
	}

	result := harness.NewResult()
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxTurns(maxTurns),
		engine.WithTurnHandler(func(t engine.Turn) {
			result.AddTurn(t)
			if !formatter.JSON() {
				printTurn(formatter, t)
			}
		}),
	}

	w := prog.World
	if db := opts.dbPath(opts.Database); db != "" {
		st, err := openStore(formatter, db)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engOpts = append(engOpts, engine.WithJournal(st))

		if opts.Session != "" {
			sess, err := st.ReadSession(ctx, opts.Session)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				logger.Info("starting new session", "session", opts.Session)
			case err != nil:
				return commandError(formatter, ErrCodeStore, "failed to read session", err)
			default:
				latest, seq, err := st.LatestWorld(ctx, sess.ID)
				if err != nil {
					return commandError(formatter, ErrCodeStore, "failed to read session", err)
				}
				w = latest
				engOpts = append(engOpts, engine.WithClock(engine.NewClockAt(seq)))
				if want, _ := digest.Rules(prog.Rules); want != sess.RulesDigest {
					logger.Warn("rules changed since the session began", "session", sess.ID)
				}
				logger.Info("resuming session", "session", sess.ID, "seq", seq)
			}
		}
	}

	switch {
	case opts.Session != "":
		engOpts = append(engOpts, engine.WithSessionID(opts.Session))
	case opts.SessionGenerator != nil:
		engOpts = append(engOpts, engine.WithSessionIDGenerator(opts.SessionGenerator))
	default:
		engOpts = append(engOpts, engine.WithSessionIDGenerator(engine.UUIDv7Generator{}))
	}

	eng, err := engine.New(w, prog.Rules, engOpts...)
	if err != nil {
		return commandError(formatter, compiler.ErrCodeGeneric, "failed to start engine", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if len(triggers) > 0 {
		for _, t := range triggers {
			eng.Enqueue(compiler.NormalizeName(t))
		}
		eng.Stop()
	} else {
		go feedTriggers(cmd.InOrStdin(), eng)
	}

	logger.Debug("engine starting", "session", eng.SessionID(), "specs_dir", specsDir)
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	finalDigest, err := digest.World(eng.World())
	if err != nil {
		return commandError(formatter, compiler.ErrCodeGeneric, "hashing world", err)
	}

	if formatter.JSON() {
		return formatter.SuccessWithSession(PlayResult{
			SessionID:   eng.SessionID(),
			Turns:       result.Trace,
			WorldDigest: finalDigest,
		}, eng.SessionID())
	}

	formatter.VerboseLog("Session %s: %d turn(s), world %s", eng.SessionID(), len(result.Trace), finalDigest)
	return nil
}

// feedTriggers enqueues one trigger per input line, then stops the engine.
func feedTriggers(r io.Reader, eng *engine.Engine) {
	defer eng.Stop()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !eng.Enqueue(compiler.NormalizeName(line)) {
			return
		}
	}
}

func printTurn(formatter *OutputFormatter, t engine.Turn) {
	fmt.Fprintf(formatter.Writer, "> %s\n%s\n", t.Trigger, t.Text)
	if t.Matched {
		formatter.VerboseLog("[%d] %s (weight %d)", t.Seq, t.RuleID, t.Weight)
	} else {
		formatter.VerboseLog("[%d] no rule", t.Seq)
	}
}
