package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/fable/internal/query"
)

// compileMatcher decodes {entity?, where?}. With entity it is Specific,
// without it General.
func compileMatcher(v cue.Value, path string) (query.Matcher, error) {
	if err := checkFields(v, path, "entity", "where"); err != nil {
		return nil, err
	}

	var qs []query.Query
	if wv := lookup(v, "where"); wv.Exists() {
		var err error
		qs, err = compileQueries(wv, joinPath(path, "where"))
		if err != nil {
			return nil, err
		}
	}

	if ev := lookup(v, "entity"); ev.Exists() {
		id, err := requiredString(v, "entity", path)
		if err != nil {
			return nil, err
		}
		return query.Specific{ID: query.ParseRef(id), Queries: qs}, nil
	}
	return query.General{Queries: qs}, nil
}

func compileQueries(v cue.Value, path string) ([]query.Query, error) {
	elems, err := listValues(v, path)
	if err != nil {
		return nil, err
	}
	qs := make([]query.Query, 0, len(elems))
	for i, ev := range elems {
		q, err := compileQuery(ev, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func compileQuery(v cue.Value, path string) (query.Query, error) {
	kind, err := form(v, path, "tag", "not", "stat", "link")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "tag":
		if err := checkFields(v, path, "tag"); err != nil {
			return nil, err
		}
		tag, err := requiredString(v, "tag", path)
		if err != nil {
			return nil, err
		}
		return query.HasTag{Tag: tag}, nil

	case "not":
		if err := checkFields(v, path, "not"); err != nil {
			return nil, err
		}
		inner, err := compileQuery(lookup(v, "not"), joinPath(path, "not"))
		if err != nil {
			return nil, err
		}
		return query.Not{Query: inner}, nil

	case "stat":
		return compileStatQuery(v, path)

	default:
		return compileLinkQuery(v, path)
	}
}

var comparators = map[string]query.Comparator{
	"lt": query.LT,
	"eq": query.EQ,
	"gt": query.GT,
}

// compileStatQuery decodes {stat, lt|eq|gt: int | {entity, stat}}.
func compileStatQuery(v cue.Value, path string) (query.Query, error) {
	if err := checkFields(v, path, "stat", "lt", "eq", "gt"); err != nil {
		return nil, err
	}
	key, err := requiredString(v, "stat", path)
	if err != nil {
		return nil, err
	}
	op, err := form(v, path, "lt", "eq", "gt")
	if err != nil {
		return nil, err
	}

	opPath := joinPath(path, op)
	ov := lookup(v, op)
	var spec query.StatSpec
	if ov.Kind() == cue.StructKind {
		if err := checkFields(ov, opPath, "entity", "stat"); err != nil {
			return nil, err
		}
		id, err := requiredString(ov, "entity", opPath)
		if err != nil {
			return nil, err
		}
		refKey, err := requiredString(ov, "stat", opPath)
		if err != nil {
			return nil, err
		}
		spec = query.StatRef{Entity: query.ParseRef(id), Key: refKey}
	} else {
		n, err := intValue(ov, opPath)
		if err != nil {
			return nil, err
		}
		spec = query.StatValue(n)
	}

	return query.HasStat{Key: key, Cmp: comparators[op], Value: spec}, nil
}

// compileLinkQuery decodes {link, to: matcher} and {link, same_as: {entity, link}}.
func compileLinkQuery(v cue.Value, path string) (query.Query, error) {
	if err := checkFields(v, path, "link", "to", "same_as"); err != nil {
		return nil, err
	}
	key, err := requiredString(v, "link", path)
	if err != nil {
		return nil, err
	}
	target, err := form(v, path, "to", "same_as")
	if err != nil {
		return nil, err
	}

	tpath := joinPath(path, target)
	tv := lookup(v, target)
	if target == "to" {
		m, err := compileMatcher(tv, tpath)
		if err != nil {
			return nil, err
		}
		return query.HasLink{Key: key, Target: query.LinkMatch{Matcher: m}}, nil
	}

	if err := checkFields(tv, tpath, "entity", "link"); err != nil {
		return nil, err
	}
	id, err := requiredString(tv, "entity", tpath)
	if err != nil {
		return nil, err
	}
	refKey, err := requiredString(tv, "link", tpath)
	if err != nil {
		return nil, err
	}
	return query.HasLink{Key: key, Target: query.LinkRef{Entity: query.ParseRef(id), Key: refKey}}, nil
}

// CompileMatcher decodes a single matcher value. It is exported for callers
// that embed matchers in their own documents, such as scenario files.
func CompileMatcher(v cue.Value) (query.Matcher, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, "matcher")
	}
	m, err := compileMatcher(v, "matcher")
	if err != nil {
		return nil, fmt.Errorf("compile matcher: %w", err)
	}
	return m, nil
}
