// Package change applies a rule's effects to a world.Store.
//
// A rule's effect list is a sequence of EntityUpdate values folded left to
// right: each update sees the Store produced by the one before it. Within
// an update each Change is applied in order to the targeted entity.
//
// Nothing here fails. An update aimed at a missing entity, or a link lookup
// through a missing entity or key, is a no-op.
package change

import "github.com/roach88/fable/internal/query"

// Change is a single mutation of one entity.
//
// Variants: AddTag, RemoveTag, SetStat, IncStat, DecStat, SetLink.
type Change interface {
	changeNode()
}

// AddTag adds Tag. Adding a tag already present is a no-op.
type AddTag struct {
	Tag string
}

// RemoveTag removes Tag. Removing an absent tag is a no-op.
type RemoveTag struct {
	Tag string
}

// SetStat overwrites the stat at Key.
type SetStat struct {
	Key   string
	Value int64
}

// IncStat adds By to the stat at Key, reading a missing stat as 0.
type IncStat struct {
	Key string
	By  int64
}

// DecStat subtracts By from the stat at Key, reading a missing stat as 0.
type DecStat struct {
	Key string
	By  int64
}

// SetLink points the link at Key to Target. The target is not checked
// for existence.
type SetLink struct {
	Key    string
	Target LinkTarget
}

func (AddTag) changeNode()    {}
func (RemoveTag) changeNode() {}
func (SetStat) changeNode()   {}
func (IncStat) changeNode()   {}
func (DecStat) changeNode()   {}
func (SetLink) changeNode()   {}

// LinkTarget is where a SetLink points.
//
// Variants: LinkTo, LinkLookup.
type LinkTarget interface {
	linkTarget()
}

// LinkTo is a literal target id. Self resolves to the trigger.
type LinkTo struct {
	ID query.Ref
}

// LinkLookup copies From's link at Key, read from the Store as it is when
// the change runs.
type LinkLookup struct {
	From query.Ref
	Key  string
}

func (LinkTo) linkTarget()     {}
func (LinkLookup) linkTarget() {}

// EntityUpdate selects entities and applies a change list to them.
//
// Variants: Update, UpdateAll, Spawn, Despawn.
type EntityUpdate interface {
	updateNode()
}

// Update applies Changes to the single entity Target.
type Update struct {
	Target  query.Ref
	Changes []Change
}

// UpdateAll applies Changes to every entity matching Queries. The match set
// is computed once before any of its changes run.
type UpdateAll struct {
	Queries []query.Query
	Changes []Change
}

// Spawn creates an empty entity at ID when none exists, then applies
// Changes to it. An existing entity is left as is.
type Spawn struct {
	ID      query.Ref
	Changes []Change
}

// Despawn removes Target. Links pointing at it are left dangling.
type Despawn struct {
	Target query.Ref
}

func (Update) updateNode()    {}
func (UpdateAll) updateNode() {}
func (Spawn) updateNode()     {}
func (Despawn) updateNode()   {}
