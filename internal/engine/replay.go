package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/store"
)

// ReplayResult summarizes a replay that matched the journal.
type ReplayResult struct {
	SessionID   string
	Turns       int
	FinalDigest string
}

// Replay re-runs a journaled session from its starting world against rules
// and checks every turn against the journal.
//
// Turns are pure functions of (world, rules, trigger), so the same inputs
// must reproduce the same rule choice, weight, text and world digest at
// every seq. The first difference is returned as a REPLAY_DIVERGED RuntimeError
// naming the seq and field. Nothing is written.
func Replay(ctx context.Context, sess store.Session, turns []store.TurnRecord, rules []rule.Rule, logger *slog.Logger) (ReplayResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e, err := New(sess.World, rules,
		WithSessionID(sess.ID),
		WithClock(NewClockAt(sess.CreatedSeq)),
		WithMaxTurns(0),
		WithLogger(logger),
	)
	if err != nil {
		return ReplayResult{}, err
	}

	if e.RulesDigest() != sess.RulesDigest {
		logger.Warn("replaying with a different rule set",
			"session", sess.ID,
			"stored_rules_digest", sess.RulesDigest,
			"rules_digest", e.RulesDigest(),
		)
	}

	for _, want := range turns {
		got, err := e.Step(ctx, want.Trigger)
		if err != nil {
			return ReplayResult{}, err
		}

		gotDigest, err := digest.World(got.World)
		if err != nil {
			return ReplayResult{}, err
		}

		switch {
		case got.Seq != want.Seq:
			return ReplayResult{}, divergence(sess.ID, want, "seq", fmt.Sprint(want.Seq), fmt.Sprint(got.Seq))
		case got.Matched != want.Matched:
			return ReplayResult{}, divergence(sess.ID, want, "matched", fmt.Sprint(want.Matched), fmt.Sprint(got.Matched))
		case got.RuleID != want.RuleID:
			return ReplayResult{}, divergence(sess.ID, want, "rule_id", want.RuleID, got.RuleID)
		case got.Weight != want.Weight:
			return ReplayResult{}, divergence(sess.ID, want, "weight", fmt.Sprint(want.Weight), fmt.Sprint(got.Weight))
		case got.Text != want.Text:
			return ReplayResult{}, divergence(sess.ID, want, "text", want.Text, got.Text)
		case gotDigest != want.WorldDigest:
			return ReplayResult{}, divergence(sess.ID, want, "world_digest", want.WorldDigest, gotDigest)
		}
	}

	final, err := digest.World(e.World())
	if err != nil {
		return ReplayResult{}, err
	}

	logger.Info("replay matched journal", "session", sess.ID, "turns", len(turns))
	return ReplayResult{SessionID: sess.ID, Turns: len(turns), FinalDigest: final}, nil
}

func divergence(sessionID string, t store.TurnRecord, field, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeReplayDiverged,
		Message:   fmt.Sprintf("turn %d: %s differs", t.Seq, field),
		SessionID: sessionID,
		Trigger:   t.Trigger,
		Details: map[string]string{
			"seq":   fmt.Sprint(t.Seq),
			"field": field,
			"want":  want,
			"got":   got,
		},
	}
}
