package query

import "github.com/roach88/fable/internal/world"

// Match is one entity selected by a Matcher.
type Match struct {
	ID     string
	Entity world.Entity
}

// Eval reports whether q holds for entity e in store s.
func Eval(q Query, s world.Store, e world.Entity) bool {
	switch q := q.(type) {
	case HasTag:
		return e.HasTag(q.Tag)
	case HasStat:
		return evalStat(q, s, e)
	case HasLink:
		return evalLink(q, s, e)
	case Not:
		return !Eval(q.Query, s, e)
	default:
		return false
	}
}

// All reports whether every query in qs holds for e. An empty list holds.
func All(qs []Query, s world.Store, e world.Entity) bool {
	for _, q := range qs {
		if !Eval(q, s, e) {
			return false
		}
	}
	return true
}

// Evaluate returns the entities selected by m, in id order.
func Evaluate(m Matcher, s world.Store) []Match {
	switch m := m.(type) {
	case Specific:
		id := m.ID.ID()
		e, ok := s.Get(id)
		if !ok || !All(m.Queries, s, e) {
			return nil
		}
		return []Match{{ID: id, Entity: e}}
	case General:
		var matches []Match
		for _, id := range s.IDs() {
			e, _ := s.Get(id)
			if All(m.Queries, s, e) {
				matches = append(matches, Match{ID: id, Entity: e})
			}
		}
		return matches
	default:
		return nil
	}
}

// Matches reports whether m selects at least one entity.
func Matches(m Matcher, s world.Store) bool {
	switch m := m.(type) {
	case Specific:
		e, ok := s.Get(m.ID.ID())
		return ok && All(m.Queries, s, e)
	case General:
		for _, id := range s.IDs() {
			e, _ := s.Get(id)
			if All(m.Queries, s, e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalStat(q HasStat, s world.Store, e world.Entity) bool {
	left := e.Stat(q.Key)
	switch v := q.Value.(type) {
	case StatValue:
		return q.Cmp.Compare(left, int64(v))
	case StatRef:
		other, ok := s.Get(v.Entity.ID())
		if !ok {
			return false
		}
		return q.Cmp.Compare(left, other.Stat(v.Key))
	default:
		return false
	}
}

func evalLink(q HasLink, s world.Store, e world.Entity) bool {
	target, ok := e.Link(q.Key)
	if !ok {
		return false
	}

	switch spec := q.Target.(type) {
	case LinkMatch:
		switch sub := spec.Matcher.(type) {
		case Specific:
			if target != sub.ID.ID() {
				return false
			}
			return targetSatisfies(target, sub.Queries, s)
		case General:
			return targetSatisfies(target, sub.Queries, s)
		default:
			return false
		}
	case LinkRef:
		other, ok := s.Get(spec.Entity.ID())
		if !ok {
			return false
		}
		otherTarget, ok := other.Link(spec.Key)
		return ok && otherTarget == target
	default:
		return false
	}
}

// targetSatisfies looks the link target up fresh; a dangling target fails.
func targetSatisfies(target string, qs []Query, s world.Store) bool {
	te, ok := s.Get(target)
	if !ok {
		return false
	}
	return All(qs, s, te)
}
