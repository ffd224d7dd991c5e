// Package world provides the entity store that rules read and mutate.
//
// A Store maps entity ids to Entity records. Each Entity carries a set of
// tags, integer stats and named single-valued links to other entities.
// Identity lives in the Store key only; an Entity never knows its own id.
//
// The Store is a value with copy-on-write semantics. Insert, Update and
// Remove return a new Store and leave the receiver untouched, so every turn
// of the simulation observes an immutable snapshot. Callers thread the
// Store explicitly; there is no package-level state.
//
// Missing data is falsy throughout:
//   - an absent stat reads as 0
//   - Update on an absent id is a no-op
//   - ResolveLink filters links whose target no longer exists
package world
