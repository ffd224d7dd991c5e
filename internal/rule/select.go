package rule

import (
	"cmp"
	"slices"

	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/world"
)

// Candidate is a rule that survived filtering, with its weight.
type Candidate struct {
	Rule   Rule
	Weight int
}

// TriggerMatches reports whether r's trigger accepts trigger in s.
func TriggerMatches(r Rule, trigger string, s world.Store) bool {
	switch t := r.Trigger.(type) {
	case SpecificTrigger:
		return t.ID == trigger
	case EntityTrigger:
		switch m := t.Matcher.(type) {
		case query.Specific:
			if m.ID.IsSelf() || m.ID.ID() != trigger {
				return false
			}
			e, ok := s.Get(trigger)
			return ok && query.All(m.Queries, s, e)
		case query.General:
			return query.Matches(query.Specific{ID: query.Literal(trigger), Queries: m.Queries}, s)
		}
	}
	return false
}

// ConditionsHold reports whether every condition of r, bound to trigger,
// selects at least one entity in s.
func ConditionsHold(r Rule, trigger string, s world.Store) bool {
	for _, c := range r.Conditions {
		if !query.Matches(query.Bind(c, trigger), s) {
			return false
		}
	}
	return true
}

// Candidates returns every rule applicable to trigger, best first.
func Candidates(trigger string, rules []Rule, s world.Store) []Candidate {
	var out []Candidate
	for _, r := range rules {
		if !TriggerMatches(r, trigger, s) || !ConditionsHold(r, trigger, s) {
			continue
		}
		out = append(out, Candidate{Rule: r, Weight: Weight(r)})
	}
	slices.SortFunc(out, compareCandidates)
	return out
}

// FindMatchingRule returns the winning rule for trigger, or false when no
// rule applies.
func FindMatchingRule(trigger string, rules []Rule, s world.Store) (Rule, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, r := range rules {
		if !TriggerMatches(r, trigger, s) || !ConditionsHold(r, trigger, s) {
			continue
		}
		c := Candidate{Rule: r, Weight: Weight(r)}
		if !found || compareCandidates(c, best) < 0 {
			best, found = c, true
		}
	}
	return best.Rule, found
}

// compareCandidates orders heavier rules first, then greater ids first.
func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
		return c
	}
	return cmp.Compare(b.Rule.ID, a.Rule.ID)
}
