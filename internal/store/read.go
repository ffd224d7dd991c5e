package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fable/internal/world"
)

// ReadSession retrieves a session header by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var (
		sess      Session
		worldJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, rules_digest, created_seq, world, world_digest
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.RulesDigest, &sess.CreatedSeq, &worldJSON, &sess.WorldDigest)
	if err != nil {
		return Session{}, err
	}

	w, err := unmarshalWorld(worldJSON)
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", id, err)
	}
	sess.World = w
	return sess, nil
}

// ReadTurns returns every turn of a session ordered by seq.
// Returns an empty slice (not nil) if the session has no turns.
func (s *Store) ReadTurns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, trigger_id, rule_id, matched, weight, text, world, world_digest
		FROM turns
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := []TurnRecord{}
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}

// LatestWorld returns the most recent world of a session and the seq it
// was recorded at. A session without turns yields its starting world and
// created seq. Returns sql.ErrNoRows if the session does not exist.
func (s *Store) LatestWorld(ctx context.Context, sessionID string) (world.Store, int64, error) {
	var (
		seq       int64
		worldJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, world
		FROM turns
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, sessionID).Scan(&seq, &worldJSON)

	if errors.Is(err, sql.ErrNoRows) {
		sess, err := s.ReadSession(ctx, sessionID)
		if err != nil {
			return world.Store{}, 0, err
		}
		return sess.World, sess.CreatedSeq, nil
	}
	if err != nil {
		return world.Store{}, 0, fmt.Errorf("query latest turn: %w", err)
	}

	w, err := unmarshalWorld(worldJSON)
	if err != nil {
		return world.Store{}, 0, fmt.Errorf("latest world %s: %w", sessionID, err)
	}
	return w, seq, nil
}

// ListSessions returns every session with its turn count, ordered by
// created seq then id.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.rules_digest, s.created_seq,
		       COUNT(t.seq), COALESCE(MAX(t.seq), s.created_seq)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_seq ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.RulesDigest, &sum.CreatedSeq, &sum.Turns, &sum.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// scanTurn scans a row into a TurnRecord.
func scanTurn(rows *sql.Rows) (TurnRecord, error) {
	var (
		t         TurnRecord
		matched   int
		worldJSON string
	)
	if err := rows.Scan(
		&t.SessionID, &t.Seq, &t.Trigger, &t.RuleID, &matched,
		&t.Weight, &t.Text, &worldJSON, &t.WorldDigest,
	); err != nil {
		return TurnRecord{}, fmt.Errorf("scan turn: %w", err)
	}

	w, err := unmarshalWorld(worldJSON)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("turn %d: %w", t.Seq, err)
	}
	t.Matched = matched == 1
	t.World = w
	return t, nil
}
