package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a failure of the host loop around a turn.
//
// Rule evaluation itself never fails; missing data is simply false. What
// can fail is the plumbing: writing the journal, the turn quota, replay
// verification.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session.
	SessionID string

	// Trigger is the trigger id of the failed turn, if any.
	Trigger string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeJournalWrite means the journal rejected a turn or session.
	ErrCodeJournalWrite RuntimeErrorCode = "JOURNAL_WRITE_FAILED"

	// ErrCodeQuotaExceeded means the session ran out of turns.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeReplayDiverged means a replayed turn differs from the journal.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SessionID != "" && e.Trigger != "" {
		msg = fmt.Sprintf("%s (session=%s, trigger=%s)", msg, e.SessionID, e.Trigger)
	} else if e.SessionID != "" {
		msg = fmt.Sprintf("%s (session=%s)", msg, e.SessionID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsJournalError returns true if the error is a journal write failure.
// Uses errors.As to handle wrapped errors.
func IsJournalError(err error) bool {
	return hasCode(err, ErrCodeJournalWrite)
}

// IsQuotaError returns true if the error is a turn quota failure.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsReplayError returns true if replay found a divergence.
func IsReplayError(err error) bool {
	return hasCode(err, ErrCodeReplayDiverged)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewJournalError creates a RuntimeError for a failed journal write.
func NewJournalError(sessionID, trigger string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeJournalWrite,
		Message:   "journal rejected the turn; world not advanced",
		SessionID: sessionID,
		Trigger:   trigger,
		Err:       err,
	}
}

// NewQuotaError creates a RuntimeError for an exhausted turn quota.
func NewQuotaError(sessionID string, turns, maxTurns int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("session reached max turns (%d >= %d)", turns, maxTurns),
		SessionID: sessionID,
		Details: map[string]string{
			"turns":     fmt.Sprintf("%d", turns),
			"max_turns": fmt.Sprintf("%d", maxTurns),
		},
	}
}
