package digest

import (
	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/world"
)

// WorldValue returns the tuple form of s as canonical values, in id order.
func WorldValue(s world.Store) []any {
	records := s.Records()
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = RecordValue(r)
	}
	return out
}

// RecordValue returns one entity tuple as a canonical object.
func RecordValue(r world.Record) map[string]any {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	stats := r.Stats
	if stats == nil {
		stats = map[string]int64{}
	}
	links := r.Links
	if links == nil {
		links = map[string]string{}
	}
	return map[string]any{
		"id":    r.ID,
		"tags":  tags,
		"stats": stats,
		"links": links,
	}
}

// RuleValue returns r in the same shape the world definitions use, so the
// output can be read back by a person familiar with the source files.
func RuleValue(r rule.Rule) map[string]any {
	conditions := make([]any, len(r.Conditions))
	for i, c := range r.Conditions {
		conditions[i] = matcherValue(c)
	}
	changes := make([]any, len(r.Changes))
	for i, u := range r.Changes {
		changes[i] = updateValue(u)
	}
	return map[string]any{
		"id":         r.ID,
		"trigger":    triggerValue(r.Trigger),
		"conditions": conditions,
		"changes":    changes,
		"text":       r.Text,
	}
}

// RulesValue encodes rules in the given order.
func RulesValue(rules []rule.Rule) []any {
	out := make([]any, len(rules))
	for i, r := range rules {
		out[i] = RuleValue(r)
	}
	return out
}

func triggerValue(t rule.Trigger) any {
	switch t := t.(type) {
	case rule.SpecificTrigger:
		return t.ID
	case rule.EntityTrigger:
		return matcherValue(t.Matcher)
	default:
		return map[string]any{}
	}
}

func matcherValue(m query.Matcher) map[string]any {
	out := map[string]any{"where": queriesValue(query.QueriesOf(m))}
	if s, ok := m.(query.Specific); ok {
		out["entity"] = s.ID.ID()
	}
	return out
}

func queriesValue(qs []query.Query) []any {
	out := make([]any, len(qs))
	for i, q := range qs {
		out[i] = queryValue(q)
	}
	return out
}

func queryValue(q query.Query) map[string]any {
	switch q := q.(type) {
	case query.HasTag:
		return map[string]any{"tag": q.Tag}
	case query.HasStat:
		out := map[string]any{"stat": q.Key}
		var rhs any
		switch v := q.Value.(type) {
		case query.StatValue:
			rhs = int64(v)
		case query.StatRef:
			rhs = map[string]any{"entity": v.Entity.ID(), "stat": v.Key}
		}
		out[comparatorKey(q.Cmp)] = rhs
		return out
	case query.HasLink:
		out := map[string]any{"link": q.Key}
		switch spec := q.Target.(type) {
		case query.LinkMatch:
			out["to"] = matcherValue(spec.Matcher)
		case query.LinkRef:
			out["same_as"] = map[string]any{"entity": spec.Entity.ID(), "link": spec.Key}
		}
		return out
	case query.Not:
		return map[string]any{"not": queryValue(q.Query)}
	default:
		return map[string]any{}
	}
}

func comparatorKey(c query.Comparator) string {
	switch c {
	case query.LT:
		return "lt"
	case query.GT:
		return "gt"
	default:
		return "eq"
	}
}

func updateValue(u change.EntityUpdate) map[string]any {
	switch u := u.(type) {
	case change.Update:
		return map[string]any{"update": u.Target.ID(), "do": changesValue(u.Changes)}
	case change.UpdateAll:
		return map[string]any{"update_all": queriesValue(u.Queries), "do": changesValue(u.Changes)}
	case change.Spawn:
		return map[string]any{"spawn": u.ID.ID(), "do": changesValue(u.Changes)}
	case change.Despawn:
		return map[string]any{"despawn": u.Target.ID()}
	default:
		return map[string]any{}
	}
}

func changesValue(cs []change.Change) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		out[i] = changeValue(c)
	}
	return out
}

func changeValue(c change.Change) map[string]any {
	switch c := c.(type) {
	case change.AddTag:
		return map[string]any{"add_tag": c.Tag}
	case change.RemoveTag:
		return map[string]any{"remove_tag": c.Tag}
	case change.SetStat:
		return map[string]any{"set": c.Key, "to": c.Value}
	case change.IncStat:
		return map[string]any{"inc": c.Key, "by": c.By}
	case change.DecStat:
		return map[string]any{"dec": c.Key, "by": c.By}
	case change.SetLink:
		switch t := c.Target.(type) {
		case change.LinkTo:
			return map[string]any{"link": c.Key, "to": t.ID.ID()}
		case change.LinkLookup:
			return map[string]any{"link": c.Key, "from": map[string]any{"entity": t.From.ID(), "link": t.Key}}
		}
	}
	return map[string]any{}
}
