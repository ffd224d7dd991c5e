package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps turns.
//
// Safe for concurrent use, though only the goroutine running turns
// advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0. The first turn is seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, so the next turn is
// start+1. Used to resume a journaled session.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the seq of the last turn without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
