package store

import (
	"context"
	"fmt"
)

// BeginSession records a session header and returns the stored header.
// If the session already exists the existing header is returned unchanged,
// which is how a resumed session finds its original rules digest.
func (s *Store) BeginSession(ctx context.Context, sess Session) (Session, error) {
	worldJSON, worldDigest, err := marshalWorld(sess.World)
	if err != nil {
		return Session{}, fmt.Errorf("begin session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, rules_digest, created_seq, world, world_digest)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.RulesDigest,
		sess.CreatedSeq,
		worldJSON,
		worldDigest,
	)
	if err != nil {
		return Session{}, fmt.Errorf("begin session: %w", err)
	}

	return s.ReadSession(ctx, sess.ID)
}

// WriteTurn appends a turn to its session.
// Uses ON CONFLICT DO NOTHING so rewriting the same (session, seq) is a
// no-op. The session must exist (foreign key constraint).
func (s *Store) WriteTurn(ctx context.Context, t TurnRecord) error {
	worldJSON, worldDigest, err := marshalWorld(t.World)
	if err != nil {
		return fmt.Errorf("write turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns
		(session_id, seq, trigger_id, rule_id, matched, weight, text, world, world_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		t.SessionID,
		t.Seq,
		t.Trigger,
		t.RuleID,
		boolToInt(t.Matched),
		t.Weight,
		t.Text,
		worldJSON,
		worldDigest,
	)
	if err != nil {
		return fmt.Errorf("write turn: %w", err)
	}

	return nil
}
