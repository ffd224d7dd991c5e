package store

import "github.com/roach88/fable/internal/world"

// Session is the header of one journaled play-through.
type Session struct {
	ID          string
	RulesDigest string
	CreatedSeq  int64
	World       world.Store // world the session started from
	WorldDigest string      // filled in on write and read
}

// TurnRecord is one journaled turn.
// RuleID is empty and Matched false for a fallback turn.
type TurnRecord struct {
	SessionID   string
	Seq         int64
	Trigger     string
	RuleID      string
	Matched     bool
	Weight      int
	Text        string
	World       world.Store
	WorldDigest string
}

// SessionSummary is a row of ListSessions.
type SessionSummary struct {
	ID          string `json:"id"`
	RulesDigest string `json:"rules_digest"`
	CreatedSeq  int64  `json:"created_seq"`
	Turns       int    `json:"turns"`
	LastSeq     int64  `json:"last_seq"`
}
