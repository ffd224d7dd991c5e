package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/fable/internal/world"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testWorld returns a two-entity world with a dangling link.
func testWorld() world.Store {
	return world.FromEntities(map[string]world.Entity{
		"door1": {
			Tags:  world.NewTagSet("door", "locked"),
			Stats: map[string]int64{"hp": 3},
			Links: map[string]string{"room": "hall", "key": "brass-key"},
		},
		"hall": {Tags: world.NewTagSet("room")},
	})
}

// beginTestSession writes a session header or fails the test.
func beginTestSession(t *testing.T, s *Store, id string, createdSeq int64) Session {
	t.Helper()
	sess, err := s.BeginSession(context.Background(), Session{
		ID:          id,
		RulesDigest: "rules-" + id,
		CreatedSeq:  createdSeq,
		World:       testWorld(),
	})
	if err != nil {
		t.Fatalf("BeginSession(%s) failed: %v", id, err)
	}
	return sess
}

// createTestTurn builds a matched turn whose world is the test world with
// the door unlocked.
func createTestTurn(sessionID string, seq int64, trigger, ruleID string) TurnRecord {
	w := testWorld().Update("door1", func(e world.Entity) world.Entity {
		return e.WithoutTag("locked").WithStat("turn", seq)
	})
	return TurnRecord{
		SessionID: sessionID,
		Seq:       seq,
		Trigger:   trigger,
		RuleID:    ruleID,
		Matched:   ruleID != "",
		Weight:    100,
		Text:      "The door swings open.",
		World:     w,
	}
}
