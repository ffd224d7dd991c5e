package query

import (
	"strconv"
	"strings"
)

// Format renders q in the compact form used by explain and trace output:
//
//	locked            HasTag
//	gold>10           HasStat, literal
//	gold>merchant.gold
//	room->hall[lit]   HasLink, Specific submatcher
//	room->*[lit]      HasLink, General submatcher
//	owner=$.owner     HasLink, reference
//	!locked           Not
func Format(q Query) string {
	switch q := q.(type) {
	case HasTag:
		return q.Tag
	case HasStat:
		return q.Key + q.Cmp.String() + formatStatSpec(q.Value)
	case HasLink:
		switch spec := q.Target.(type) {
		case LinkMatch:
			return q.Key + "->" + FormatMatcher(spec.Matcher)
		case LinkRef:
			return q.Key + "=" + spec.Entity.ID() + "." + spec.Key
		}
		return q.Key + "->?"
	case Not:
		return "!" + Format(q.Query)
	default:
		return "?"
	}
}

// FormatMatcher renders m as id[q1, q2] or *[q1, q2]. An empty query list
// renders without brackets.
func FormatMatcher(m Matcher) string {
	head := "*"
	if s, ok := m.(Specific); ok {
		head = s.ID.ID()
	}
	qs := QueriesOf(m)
	if len(qs) == 0 {
		return head
	}
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = Format(q)
	}
	return head + "[" + strings.Join(parts, ", ") + "]"
}

func formatStatSpec(v StatSpec) string {
	switch v := v.(type) {
	case StatValue:
		return strconv.FormatInt(int64(v), 10)
	case StatRef:
		return v.Entity.ID() + "." + v.Key
	default:
		return "?"
	}
}
