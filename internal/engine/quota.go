package engine

// DefaultMaxTurns bounds a single engine's session. It stops scripted or
// piped input from running forever; interactive play never gets close.
const DefaultMaxTurns = 10000

// QuotaEnforcer counts completed turns against a limit.
// A limit of 0 or less disables the check.
type QuotaEnforcer struct {
	maxTurns int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxTurns int) *QuotaEnforcer {
	return &QuotaEnforcer{maxTurns: maxTurns}
}

// Check reports whether another turn may run. It does not count the turn;
// call Record once the turn has completed.
func (q *QuotaEnforcer) Check(sessionID string) error {
	if q.maxTurns > 0 && q.current >= q.maxTurns {
		return NewQuotaError(sessionID, q.current, q.maxTurns)
	}
	return nil
}

// Record counts one completed turn.
func (q *QuotaEnforcer) Record() {
	q.current++
}

// Current returns the number of completed turns.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxTurns returns the limit.
func (q *QuotaEnforcer) MaxTurns() int {
	return q.maxTurns
}
