package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
)

// CompileRule parses a CUE value into a Rule.
//
// The CUE value should be the rule struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: "open-door": { ... }`)
//	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."open-door"`)))
//
// The rule id is the struct label.
func CompileRule(v cue.Value) (rule.Rule, error) {
	var r rule.Rule

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		r.ID = NormalizeName(strings.Trim(labels[len(labels)-1].String(), `"`))
	}
	path := joinPath("rule", r.ID)

	if err := v.Err(); err != nil {
		return r, formatCUEError(err, path)
	}
	if err := checkFields(v, path, "trigger", "conditions", "changes", "text"); err != nil {
		return r, err
	}

	// trigger (required)
	tv := lookup(v, "trigger")
	if !tv.Exists() {
		return r, &CompileError{Field: joinPath(path, "trigger"), Message: "trigger is required", Pos: v.Pos()}
	}
	trig, err := compileTrigger(tv, joinPath(path, "trigger"))
	if err != nil {
		return r, err
	}
	r.Trigger = trig

	// conditions (optional)
	if cv := lookup(v, "conditions"); cv.Exists() {
		cpath := joinPath(path, "conditions")
		elems, err := listValues(cv, cpath)
		if err != nil {
			return r, err
		}
		for i, ev := range elems {
			m, err := compileMatcher(ev, indexPath(cpath, i))
			if err != nil {
				return r, err
			}
			r.Conditions = append(r.Conditions, m)
		}
	}

	// changes (optional)
	if chv := lookup(v, "changes"); chv.Exists() {
		r.Changes, err = compileUpdates(chv, joinPath(path, "changes"))
		if err != nil {
			return r, err
		}
	}

	// text (optional)
	if xv := lookup(v, "text"); xv.Exists() {
		r.Text, err = stringValue(xv, joinPath(path, "text"))
		if err != nil {
			return r, err
		}
	}

	return r, nil
}

// compileTrigger decodes a bare string as a SpecificTrigger and a struct
// as an EntityTrigger.
func compileTrigger(v cue.Value, path string) (rule.Trigger, error) {
	if v.Kind() == cue.StringKind {
		id, err := stringValue(v, path)
		if err != nil {
			return nil, err
		}
		if id == "" {
			return nil, &CompileError{Field: path, Message: "must not be empty", Pos: v.Pos()}
		}
		return rule.SpecificTrigger{ID: id}, nil
	}
	m, err := compileMatcher(v, path)
	if err != nil {
		return nil, err
	}
	return rule.EntityTrigger{Matcher: m}, nil
}

func compileUpdates(v cue.Value, path string) ([]change.EntityUpdate, error) {
	elems, err := listValues(v, path)
	if err != nil {
		return nil, err
	}
	updates := make([]change.EntityUpdate, 0, len(elems))
	for i, ev := range elems {
		u, err := compileUpdate(ev, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

func compileUpdate(v cue.Value, path string) (change.EntityUpdate, error) {
	kind, err := form(v, path, "update", "update_all", "spawn", "despawn")
	if err != nil {
		return nil, err
	}

	if kind == "despawn" {
		if err := checkFields(v, path, "despawn"); err != nil {
			return nil, err
		}
		id, err := requiredString(v, "despawn", path)
		if err != nil {
			return nil, err
		}
		return change.Despawn{Target: query.ParseRef(id)}, nil
	}

	if err := checkFields(v, path, kind, "do"); err != nil {
		return nil, err
	}
	var changes []change.Change
	if dv := lookup(v, "do"); dv.Exists() {
		changes, err = compileChanges(dv, joinPath(path, "do"))
		if err != nil {
			return nil, err
		}
	} else if kind != "spawn" {
		return nil, &CompileError{Field: joinPath(path, "do"), Message: "do is required", Pos: v.Pos()}
	}

	switch kind {
	case "update":
		id, err := requiredString(v, "update", path)
		if err != nil {
			return nil, err
		}
		return change.Update{Target: query.ParseRef(id), Changes: changes}, nil
	case "spawn":
		id, err := requiredString(v, "spawn", path)
		if err != nil {
			return nil, err
		}
		return change.Spawn{ID: query.ParseRef(id), Changes: changes}, nil
	default:
		qs, err := compileQueries(lookup(v, "update_all"), joinPath(path, "update_all"))
		if err != nil {
			return nil, err
		}
		return change.UpdateAll{Queries: qs, Changes: changes}, nil
	}
}

func compileChanges(v cue.Value, path string) ([]change.Change, error) {
	elems, err := listValues(v, path)
	if err != nil {
		return nil, err
	}
	changes := make([]change.Change, 0, len(elems))
	for i, ev := range elems {
		c, err := compileChange(ev, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func compileChange(v cue.Value, path string) (change.Change, error) {
	kind, err := form(v, path, "add_tag", "remove_tag", "set", "inc", "dec", "link")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "add_tag", "remove_tag":
		if err := checkFields(v, path, kind); err != nil {
			return nil, err
		}
		tag, err := requiredString(v, kind, path)
		if err != nil {
			return nil, err
		}
		if kind == "add_tag" {
			return change.AddTag{Tag: tag}, nil
		}
		return change.RemoveTag{Tag: tag}, nil

	case "set":
		if err := checkFields(v, path, "set", "to"); err != nil {
			return nil, err
		}
		key, err := requiredString(v, "set", path)
		if err != nil {
			return nil, err
		}
		n, err := requiredInt(v, "to", path)
		if err != nil {
			return nil, err
		}
		return change.SetStat{Key: key, Value: n}, nil

	case "inc", "dec":
		if err := checkFields(v, path, kind, "by"); err != nil {
			return nil, err
		}
		key, err := requiredString(v, kind, path)
		if err != nil {
			return nil, err
		}
		n, err := requiredInt(v, "by", path)
		if err != nil {
			return nil, err
		}
		if kind == "inc" {
			return change.IncStat{Key: key, By: n}, nil
		}
		return change.DecStat{Key: key, By: n}, nil

	default:
		return compileSetLink(v, path)
	}
}

// compileSetLink decodes {link, to: id} and {link, from: {entity, link}}.
func compileSetLink(v cue.Value, path string) (change.Change, error) {
	if err := checkFields(v, path, "link", "to", "from"); err != nil {
		return nil, err
	}
	key, err := requiredString(v, "link", path)
	if err != nil {
		return nil, err
	}
	target, err := form(v, path, "to", "from")
	if err != nil {
		return nil, err
	}

	if target == "to" {
		id, err := requiredString(v, "to", path)
		if err != nil {
			return nil, err
		}
		return change.SetLink{Key: key, Target: change.LinkTo{ID: query.ParseRef(id)}}, nil
	}

	fpath := joinPath(path, "from")
	fv := lookup(v, "from")
	if err := checkFields(fv, fpath, "entity", "link"); err != nil {
		return nil, err
	}
	id, err := requiredString(fv, "entity", fpath)
	if err != nil {
		return nil, err
	}
	fromKey, err := requiredString(fv, "link", fpath)
	if err != nil {
		return nil, err
	}
	return change.SetLink{Key: key, Target: change.LinkLookup{From: query.ParseRef(id), Key: fromKey}}, nil
}
