// Package rule selects the single best rule for a trigger.
//
// A rule survives when its trigger accepts the trigger id and every
// condition, bound to that id, selects at least one entity. Survivors are
// scored by specificity and the heaviest one wins.
//
// WEIGHT:
//
//	SpecificTrigger            0
//	EntityTrigger Specific     100 + len(queries)
//	EntityTrigger General      len(queries)
//	each Specific condition    10 + len(queries)
//	each General condition     len(queries)
//
// On equal weight the rule with the lexicographically greatest id wins.
// Finding no rule is a normal outcome, not an error.
package rule

import (
	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
)

// Trigger decides which trigger ids a rule responds to.
//
// Variants: SpecificTrigger, EntityTrigger.
type Trigger interface {
	triggerNode()
}

// SpecificTrigger matches exactly the trigger id ID. The id need not name
// an entity.
type SpecificTrigger struct {
	ID string
}

// EntityTrigger matches when the triggering entity satisfies Matcher.
// The matcher is not bound, so "$" inside it never matches.
type EntityTrigger struct {
	Matcher query.Matcher
}

func (SpecificTrigger) triggerNode() {}
func (EntityTrigger) triggerNode()   {}

// Rule is one authored response to a trigger.
type Rule struct {
	ID         string
	Trigger    Trigger
	Conditions []query.Matcher
	Changes    []change.EntityUpdate

	// Text is the narrative shown when the rule fires. The selector
	// does not read it.
	Text string
}

const (
	specificTriggerBase   = 100
	specificConditionBase = 10
)

// Weight returns the specificity score of r.
func Weight(r Rule) int {
	w := 0
	if et, ok := r.Trigger.(EntityTrigger); ok {
		w += matcherWeight(et.Matcher, specificTriggerBase)
	}
	for _, c := range r.Conditions {
		w += matcherWeight(c, specificConditionBase)
	}
	return w
}

func matcherWeight(m query.Matcher, specificBase int) int {
	n := len(query.QueriesOf(m))
	if query.IsSpecific(m) {
		return specificBase + n
	}
	return n
}
