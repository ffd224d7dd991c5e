// Package store provides the SQLite session journal.
//
// A session is one play-through: the rule set it was started with
// (by digest), the world it started from, and an append-only list of
// turns. Each turn records the trigger, the rule that fired (if any) and
// the world that resulted.
//
// Worlds are stored in their tuple form, a canonical JSON array of
// (id, tags, stats, links) records, next to a content digest. Reading a
// world back rebuilds a world.Store that answers every query the same way
// as the one that was written.
//
// Ordering always uses seq, the engine's logical turn clock:
//
//	ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: a turn cannot reference a missing session
package store
