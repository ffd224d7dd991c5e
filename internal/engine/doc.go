// Package engine is the host loop that drives a fable world.
//
// One turn is: a trigger id arrives, the rule selector picks the best
// rule against the current world, the change applier produces the next
// world, and the turn is journaled. When no rule applies the turn is a
// fallback turn: the world is unchanged and the trigger id itself is the
// narration.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Turns never interleave. Step runs one turn to completion. Enqueue and
// Run offer the same guarantee for concurrent producers: triggers are
// queued FIFO and drained by exactly one goroutine.
//
// Turn Atomicity:
// The world only advances after the journal accepted the turn. A journal
// failure leaves the engine on the previous world and the previous seq.
//
// Logical Clock:
// Turns are stamped with a monotonic seq from Clock, never wall time.
// A resumed session continues from the seq of its last journaled turn.
//
// Determinism:
// Given the same starting world, rules and triggers, a session always
// produces the same turns. Replay checks this against a journal.
package engine
