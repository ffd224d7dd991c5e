package query

// Bind returns a copy of m with every Self reference replaced by trigger.
//
// The result contains only literal refs, so binding it again is the
// identity. Callers bind a rule's conditions once per evaluation and pass
// the bound matcher down.
func Bind(m Matcher, trigger string) Matcher {
	switch m := m.(type) {
	case Specific:
		return Specific{ID: m.ID.Bind(trigger), Queries: BindQueries(m.Queries, trigger)}
	case General:
		return General{Queries: BindQueries(m.Queries, trigger)}
	default:
		return m
	}
}

// BindQueries binds each query in qs. A nil slice stays nil.
func BindQueries(qs []Query, trigger string) []Query {
	if qs == nil {
		return nil
	}
	out := make([]Query, len(qs))
	for i, q := range qs {
		out[i] = bindQuery(q, trigger)
	}
	return out
}

func bindQuery(q Query, trigger string) Query {
	switch q := q.(type) {
	case HasStat:
		if ref, ok := q.Value.(StatRef); ok {
			q.Value = StatRef{Entity: ref.Entity.Bind(trigger), Key: ref.Key}
		}
		return q
	case HasLink:
		switch spec := q.Target.(type) {
		case LinkMatch:
			q.Target = LinkMatch{Matcher: Bind(spec.Matcher, trigger)}
		case LinkRef:
			q.Target = LinkRef{Entity: spec.Entity.Bind(trigger), Key: spec.Key}
		}
		return q
	case Not:
		return Not{Query: bindQuery(q.Query, trigger)}
	default:
		return q
	}
}

// UsesSelf reports whether m contains an unbound Self reference anywhere.
func UsesSelf(m Matcher) bool {
	if s, ok := m.(Specific); ok && s.ID.IsSelf() {
		return true
	}
	return QueriesUseSelf(QueriesOf(m))
}

// QueriesUseSelf reports whether any query in qs refers to Self.
func QueriesUseSelf(qs []Query) bool {
	for _, q := range qs {
		if queryUsesSelf(q) {
			return true
		}
	}
	return false
}

func queryUsesSelf(q Query) bool {
	switch q := q.(type) {
	case HasStat:
		ref, ok := q.Value.(StatRef)
		return ok && ref.Entity.IsSelf()
	case HasLink:
		switch spec := q.Target.(type) {
		case LinkMatch:
			return UsesSelf(spec.Matcher)
		case LinkRef:
			return spec.Entity.IsSelf()
		}
		return false
	case Not:
		return queryUsesSelf(q.Query)
	default:
		return false
	}
}

// Refs returns every entity id referenced by m in the order encountered,
// including the Specific id itself. Self refs are reported as SelfID.
func Refs(m Matcher) []string {
	var out []string
	if s, ok := m.(Specific); ok {
		out = append(out, s.ID.ID())
	}
	return append(out, QueryRefs(QueriesOf(m))...)
}

// QueryRefs returns every entity id referenced inside qs.
func QueryRefs(qs []Query) []string {
	var out []string
	for _, q := range qs {
		out = appendQueryRefs(out, q)
	}
	return out
}

func appendQueryRefs(out []string, q Query) []string {
	switch q := q.(type) {
	case HasStat:
		if ref, ok := q.Value.(StatRef); ok {
			out = append(out, ref.Entity.ID())
		}
	case HasLink:
		switch spec := q.Target.(type) {
		case LinkMatch:
			out = append(out, Refs(spec.Matcher)...)
		case LinkRef:
			out = append(out, spec.Entity.ID())
		}
	case Not:
		out = appendQueryRefs(out, q.Query)
	}
	return out
}
