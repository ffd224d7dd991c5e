package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"golang.org/x/text/unicode/norm"
)

// lookup returns the field name of v. A missing field does not Exist.
func lookup(v cue.Value, name string) cue.Value {
	return v.LookupPath(cue.MakePath(cue.Str(name)))
}

// label returns the unquoted label of the current field.
func label(iter *cue.Iterator) string {
	return strings.Trim(iter.Label(), `"`)
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// NormalizeName returns s in Unicode NFC. Every name read from a world
// definition goes through it, so composed and decomposed spellings of an id
// name the same entity. Hosts apply it to triggers typed by a player.
func NormalizeName(s string) string {
	return norm.NFC.String(s)
}

func stringValue(v cue.Value, path string) (string, error) {
	if v.Kind() != cue.StringKind {
		return "", &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected string, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	s, err := v.String()
	if err != nil {
		return "", formatCUEError(err, path)
	}
	return NormalizeName(s), nil
}

// requiredString returns the string field name of v.
// Empty strings are rejected: tags, keys and ids are never blank.
func requiredString(v cue.Value, name, path string) (string, error) {
	fv := lookup(v, name)
	fpath := joinPath(path, name)
	if !fv.Exists() {
		return "", &CompileError{
			Field:   fpath,
			Message: fmt.Sprintf("%s is required", name),
			Pos:     v.Pos(),
		}
	}
	s, err := stringValue(fv, fpath)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &CompileError{Field: fpath, Message: "must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

// intValue decodes an integer. Floats are forbidden: stats are whole numbers.
func intValue(v cue.Value, path string) (int64, error) {
	switch v.Kind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   path,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected int, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err, path)
	}
	return n, nil
}

func requiredInt(v cue.Value, name, path string) (int64, error) {
	fv := lookup(v, name)
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   joinPath(path, name),
			Message: fmt.Sprintf("%s is required", name),
			Pos:     v.Pos(),
		}
	}
	return intValue(fv, joinPath(path, name))
}

// fieldNames lists the regular fields of a struct in declaration order.
func fieldNames(v cue.Value, path string) ([]string, error) {
	if v.Kind() != cue.StructKind {
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err, path)
	}
	var names []string
	for iter.Next() {
		names = append(names, label(iter))
	}
	return names, nil
}

// checkFields rejects any field of v not in allowed.
func checkFields(v cue.Value, path string, allowed ...string) error {
	names, err := fieldNames(v, path)
	if err != nil {
		return err
	}
	for _, n := range names {
		if !slices.Contains(allowed, n) {
			return &CompileError{
				Field:   joinPath(path, n),
				Message: fmt.Sprintf("unknown field %q", n),
				Pos:     lookup(v, n).Pos(),
			}
		}
	}
	return nil
}

// form returns the one field of v that names its variant.
func form(v cue.Value, path string, forms ...string) (string, error) {
	names, err := fieldNames(v, path)
	if err != nil {
		return "", err
	}
	var found []string
	for _, n := range names {
		if slices.Contains(forms, n) {
			found = append(found, n)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return "", &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected one of %s", strings.Join(forms, ", ")),
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   path,
			Message: fmt.Sprintf("ambiguous: has both %q and %q", found[0], found[1]),
			Pos:     v.Pos(),
		}
	}
}

// listValues returns the elements of a list value.
func listValues(v cue.Value, path string) ([]cue.Value, error) {
	if v.Kind() != cue.ListKind {
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("expected list, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err, path)
	}
	var out []cue.Value
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out, nil
}
