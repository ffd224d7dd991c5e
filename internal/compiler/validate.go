package compiler

import (
	"fmt"

	"github.com/roach88/fable/internal/change"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/world"
)

// Validation error codes (E100-E199)
const (
	ErrRuleIDEmpty     = "E101" // rule id is required
	ErrDuplicateRuleID = "E102" // two rules share an id
	ErrMissingTrigger  = "E103" // rule has no trigger
	ErrSelfTriggerID   = "E104" // SpecificTrigger names "$"
	ErrEmptyKey        = "E105" // empty tag, stat or link key
	ErrMissingNode     = "E106" // nil matcher, query, update or change
)

// Lint warning codes (W200-W299)
const (
	WarnUnknownEntity = "W201" // referenced entity is never defined or spawned
	WarnUnknownLink   = "W202" // link set to an entity that is never defined or spawned
	WarnSelfInTrigger = "W203" // trigger matcher uses "$" and can never match
)

// ValidationError is a schema validation error or lint warning.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks rules built in code or compiled from CUE.
// Returns all errors found (does not fail-fast).
func Validate(rules []rule.Rule) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(rules))

	for i, r := range rules {
		path := fmt.Sprintf("rules[%d]", i)
		if r.ID == "" {
			errs = append(errs, ValidationError{Field: path + ".id", Message: "rule id is required", Code: ErrRuleIDEmpty})
		} else {
			if seen[r.ID] {
				errs = append(errs, ValidationError{
					Field:   path + ".id",
					Message: fmt.Sprintf("duplicate rule id: %q", r.ID),
					Code:    ErrDuplicateRuleID,
				})
			}
			seen[r.ID] = true
			path = "rule." + r.ID
		}

		switch t := r.Trigger.(type) {
		case nil:
			errs = append(errs, ValidationError{Field: path + ".trigger", Message: "trigger is required", Code: ErrMissingTrigger})
		case rule.SpecificTrigger:
			if t.ID == query.SelfID {
				errs = append(errs, ValidationError{
					Field:   path + ".trigger",
					Message: fmt.Sprintf("%q is reserved for self references", query.SelfID),
					Code:    ErrSelfTriggerID,
				})
			}
		case rule.EntityTrigger:
			errs = append(errs, validateMatcher(t.Matcher, path+".trigger")...)
		}

		for j, c := range r.Conditions {
			errs = append(errs, validateMatcher(c, fmt.Sprintf("%s.conditions[%d]", path, j))...)
		}
		for j, u := range r.Changes {
			errs = append(errs, validateUpdate(u, fmt.Sprintf("%s.changes[%d]", path, j))...)
		}
	}

	return errs
}

func missing(path, what string) ValidationError {
	return ValidationError{Field: path, Message: what + " is nil", Code: ErrMissingNode}
}

func emptyKey(path, what string) ValidationError {
	return ValidationError{Field: path, Message: what + " must not be empty", Code: ErrEmptyKey}
}

func validateMatcher(m query.Matcher, path string) []ValidationError {
	if m == nil {
		return []ValidationError{missing(path, "matcher")}
	}
	var errs []ValidationError
	if s, ok := m.(query.Specific); ok && !s.ID.IsSelf() && s.ID.ID() == "" {
		errs = append(errs, emptyKey(path+".entity", "entity id"))
	}
	for i, q := range query.QueriesOf(m) {
		errs = append(errs, validateQuery(q, fmt.Sprintf("%s.where[%d]", path, i))...)
	}
	return errs
}

func validateQuery(q query.Query, path string) []ValidationError {
	switch q := q.(type) {
	case query.HasTag:
		if q.Tag == "" {
			return []ValidationError{emptyKey(path+".tag", "tag")}
		}
	case query.HasStat:
		if q.Key == "" {
			return []ValidationError{emptyKey(path+".stat", "stat key")}
		}
		if q.Value == nil {
			return []ValidationError{missing(path, "stat value")}
		}
	case query.HasLink:
		if q.Key == "" {
			return []ValidationError{emptyKey(path+".link", "link key")}
		}
		switch t := q.Target.(type) {
		case nil:
			return []ValidationError{missing(path, "link target")}
		case query.LinkMatch:
			return validateMatcher(t.Matcher, path+".to")
		}
	case query.Not:
		return validateQuery(q.Query, path+".not")
	case nil:
		return []ValidationError{missing(path, "query")}
	}
	return nil
}

func validateUpdate(u change.EntityUpdate, path string) []ValidationError {
	var changes []change.Change
	var errs []ValidationError
	switch u := u.(type) {
	case change.Update:
		changes = u.Changes
	case change.UpdateAll:
		for i, q := range u.Queries {
			errs = append(errs, validateQuery(q, fmt.Sprintf("%s.update_all[%d]", path, i))...)
		}
		changes = u.Changes
	case change.Spawn:
		changes = u.Changes
	case change.Despawn:
		return nil
	case nil:
		return []ValidationError{missing(path, "update")}
	}

	for i, c := range changes {
		cpath := fmt.Sprintf("%s.do[%d]", path, i)
		key := ""
		switch c := c.(type) {
		case nil:
			errs = append(errs, missing(cpath, "change"))
			continue
		case change.AddTag:
			key = c.Tag
		case change.RemoveTag:
			key = c.Tag
		case change.SetStat:
			key = c.Key
		case change.IncStat:
			key = c.Key
		case change.DecStat:
			key = c.Key
		case change.SetLink:
			key = c.Key
			if c.Target == nil {
				errs = append(errs, missing(cpath, "link target"))
			}
		}
		if key == "" {
			errs = append(errs, emptyKey(cpath, "key"))
		}
	}
	return errs
}

// Lint reports references that compile but can never resolve against w:
// entities that are neither defined nor spawned by any rule, and trigger
// matchers that use "$". These are warnings; the program still runs.
func Lint(w world.Store, rules []rule.Rule) []ValidationError {
	known := make(map[string]bool)
	for _, id := range w.IDs() {
		known[id] = true
	}
	for _, r := range rules {
		for _, u := range r.Changes {
			if sp, ok := u.(change.Spawn); ok && !sp.ID.IsSelf() {
				known[sp.ID.ID()] = true
			}
		}
	}

	var warns []ValidationError
	unknown := func(path, id string) {
		if id == query.SelfID || known[id] {
			return
		}
		warns = append(warns, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("entity %q is never defined or spawned", id),
			Code:    WarnUnknownEntity,
		})
	}

	for _, r := range rules {
		path := "rule." + r.ID

		if et, ok := r.Trigger.(rule.EntityTrigger); ok && et.Matcher != nil {
			if query.UsesSelf(et.Matcher) {
				warns = append(warns, ValidationError{
					Field:   path + ".trigger",
					Message: fmt.Sprintf("trigger matchers are not bound, so %q never matches", query.SelfID),
					Code:    WarnSelfInTrigger,
				})
			}
			for _, id := range query.Refs(et.Matcher) {
				unknown(path+".trigger", id)
			}
		}

		for i, c := range r.Conditions {
			if c == nil {
				continue
			}
			for _, id := range query.Refs(c) {
				unknown(fmt.Sprintf("%s.conditions[%d]", path, i), id)
			}
		}

		for i, u := range r.Changes {
			upath := fmt.Sprintf("%s.changes[%d]", path, i)
			var changes []change.Change
			switch u := u.(type) {
			case change.Update:
				unknown(upath, u.Target.ID())
				changes = u.Changes
			case change.UpdateAll:
				for _, id := range query.QueryRefs(u.Queries) {
					unknown(upath, id)
				}
				changes = u.Changes
			case change.Spawn:
				changes = u.Changes
			case change.Despawn:
				unknown(upath, u.Target.ID())
			}

			for j, c := range changes {
				sl, ok := c.(change.SetLink)
				if !ok {
					continue
				}
				cpath := fmt.Sprintf("%s.do[%d]", upath, j)
				switch t := sl.Target.(type) {
				case change.LinkTo:
					if id := t.ID.ID(); id != query.SelfID && !known[id] {
						warns = append(warns, ValidationError{
							Field:   cpath,
							Message: fmt.Sprintf("link %q points at %q, which is never defined or spawned", sl.Key, id),
							Code:    WarnUnknownLink,
						})
					}
				case change.LinkLookup:
					unknown(cpath, t.From.ID())
				}
			}
		}
	}

	return warns
}
