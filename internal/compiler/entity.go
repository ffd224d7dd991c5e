package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/fable/internal/world"
)

// CompileEntity parses a CUE value into an entity and its id.
//
// The CUE value should be the entity struct itself, e.g.:
//
//	v := ctx.CompileString(`entity: door1: { tags: ["door"], stats: hp: 3 }`)
//	id, e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.door1")))
func CompileEntity(v cue.Value) (string, world.Entity, error) {
	e := world.NewEntity()

	var id string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		id = NormalizeName(strings.Trim(labels[len(labels)-1].String(), `"`))
	}
	path := joinPath("entity", id)

	if err := v.Err(); err != nil {
		return id, e, formatCUEError(err, path)
	}
	if err := checkFields(v, path, "tags", "stats", "links"); err != nil {
		return id, e, err
	}

	if tv := lookup(v, "tags"); tv.Exists() {
		tpath := joinPath(path, "tags")
		elems, err := listValues(tv, tpath)
		if err != nil {
			return id, e, err
		}
		for i, ev := range elems {
			tag, err := stringValue(ev, indexPath(tpath, i))
			if err != nil {
				return id, e, err
			}
			e = e.WithTag(tag)
		}
	}

	if sv := lookup(v, "stats"); sv.Exists() {
		spath := joinPath(path, "stats")
		keys, err := fieldNames(sv, spath)
		if err != nil {
			return id, e, err
		}
		for _, k := range keys {
			n, err := intValue(lookup(sv, k), joinPath(spath, k))
			if err != nil {
				return id, e, err
			}
			e = e.WithStat(NormalizeName(k), n)
		}
	}

	if lv := lookup(v, "links"); lv.Exists() {
		lpath := joinPath(path, "links")
		keys, err := fieldNames(lv, lpath)
		if err != nil {
			return id, e, err
		}
		for _, k := range keys {
			target, err := stringValue(lookup(lv, k), joinPath(lpath, k))
			if err != nil {
				return id, e, err
			}
			e = e.WithLink(NormalizeName(k), target)
		}
	}

	return id, e, nil
}
