package change

import (
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/world"
)

// Apply folds updates over s for the given trigger and returns the result.
// s itself is never modified.
func Apply(updates []EntityUpdate, trigger string, s world.Store) world.Store {
	for _, u := range updates {
		s = applyUpdate(u, trigger, s)
	}
	return s
}

func applyUpdate(u EntityUpdate, trigger string, s world.Store) world.Store {
	switch u := u.(type) {
	case Update:
		return applyChanges(u.Target.Bind(trigger).ID(), u.Changes, trigger, s)

	case UpdateAll:
		// Snapshot the match set against s before touching anything.
		matches := query.Evaluate(query.General{Queries: query.BindQueries(u.Queries, trigger)}, s)
		for _, m := range matches {
			s = applyChanges(m.ID, u.Changes, trigger, s)
		}
		return s

	case Spawn:
		id := u.ID.Bind(trigger).ID()
		if !s.Has(id) {
			s = s.Insert(id, world.NewEntity())
		}
		return applyChanges(id, u.Changes, trigger, s)

	case Despawn:
		return s.Remove(u.Target.Bind(trigger).ID())

	default:
		return s
	}
}

// applyChanges folds changes over the entity at id. Each change sees the
// Store left by the previous one, so a lookup can observe an earlier link.
func applyChanges(id string, changes []Change, trigger string, s world.Store) world.Store {
	if !s.Has(id) {
		return s
	}
	for _, c := range changes {
		s = applyChange(id, c, trigger, s)
	}
	return s
}

func applyChange(id string, c Change, trigger string, s world.Store) world.Store {
	switch c := c.(type) {
	case AddTag:
		return s.Update(id, func(e world.Entity) world.Entity { return e.WithTag(c.Tag) })
	case RemoveTag:
		return s.Update(id, func(e world.Entity) world.Entity { return e.WithoutTag(c.Tag) })
	case SetStat:
		return s.Update(id, func(e world.Entity) world.Entity { return e.WithStat(c.Key, c.Value) })
	case IncStat:
		return s.Update(id, func(e world.Entity) world.Entity { return e.WithStat(c.Key, e.Stat(c.Key)+c.By) })
	case DecStat:
		return s.Update(id, func(e world.Entity) world.Entity { return e.WithStat(c.Key, e.Stat(c.Key)-c.By) })
	case SetLink:
		target, ok := resolveTarget(c.Target, trigger, s)
		if !ok {
			return s
		}
		return s.Update(id, func(e world.Entity) world.Entity { return e.WithLink(c.Key, target) })
	default:
		return s
	}
}

// resolveTarget returns the id a SetLink should write. A lookup reads the
// raw link value, so a dangling link is copied as is.
func resolveTarget(t LinkTarget, trigger string, s world.Store) (string, bool) {
	switch t := t.(type) {
	case LinkTo:
		return t.ID.Bind(trigger).ID(), true
	case LinkLookup:
		other, ok := s.Get(t.From.Bind(trigger).ID())
		if !ok {
			return "", false
		}
		return other.Link(t.Key)
	default:
		return "", false
	}
}
