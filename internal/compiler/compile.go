// Package compiler turns CUE world definitions into a starting world and
// a rule list.
//
// A definition has two top-level structs:
//
//	entity: door1: { tags: ["door", "locked"], links: room: "hall" }
//	rule: "open-door": {
//		trigger: { entity: "door1", where: [{ tag: "locked" }] }
//		changes: [{ update: "$", do: [{ remove_tag: "locked" }] }]
//		text: "The door swings open."
//	}
//
// Compilation is strict: unknown fields, floats, empty keys and ambiguous
// forms are errors. Validate and Lint then check the compiled program.
package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/world"
)

// Program is a compiled definition: the starting world and its rules in
// declaration order.
type Program struct {
	World     world.Store
	Rules     []rule.Rule
	FileCount int
}

// LoadMode controls how errors are handled during compilation.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeScanError   = "E002" // directory scan error
	ErrCodeNoFiles     = "E003" // no CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeEmpty       = "E007" // no entities or rules defined
)

// LoadError is an error that occurred before any entity or rule compiled.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Compile compiles an already built CUE value, stopping at the first error.
func Compile(v cue.Value) (*Program, error) {
	p, errs := compileValue(v, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return p, nil
}

// CompileString compiles CUE source held in memory. filename only labels
// error positions.
func CompileString(src, filename string) (*Program, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, filename)
	}
	return Compile(v)
}

// LoadDir loads and compiles every CUE file in dir as one instance.
func LoadDir(dir string, mode LoadMode) (*Program, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	p, errs := compileValue(value, mode)
	if p != nil {
		p.FileCount = len(files)
	}
	return p, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func compileValue(v cue.Value, mode LoadMode) (*Program, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err, "cue")}
	}

	var errs []error
	p := &Program{World: world.New()}

	// Extract entities
	if ev := lookup(v, "entity"); ev.Exists() {
		iter, err := ev.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err, "entity"))
			if mode == LoadModeFailFast {
				return p, errs
			}
		} else {
			for iter.Next() {
				id, e, err := CompileEntity(iter.Value())
				if err != nil {
					errs = append(errs, err)
					if mode == LoadModeFailFast {
						return p, errs
					}
					continue
				}
				if p.World.Has(id) {
					errs = append(errs, duplicateName("entity", id, iter.Value()))
					if mode == LoadModeFailFast {
						return p, errs
					}
					continue
				}
				p.World = p.World.Insert(id, e)
			}
		}
	}

	// Extract rules
	if rv := lookup(v, "rule"); rv.Exists() {
		iter, err := rv.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err, "rule"))
			if mode == LoadModeFailFast {
				return p, errs
			}
		} else {
			for iter.Next() {
				r, err := CompileRule(iter.Value())
				if err != nil {
					errs = append(errs, err)
					if mode == LoadModeFailFast {
						return p, errs
					}
					continue
				}
				if slices.ContainsFunc(p.Rules, func(x rule.Rule) bool { return x.ID == r.ID }) {
					errs = append(errs, duplicateName("rule", r.ID, iter.Value()))
					if mode == LoadModeFailFast {
						return p, errs
					}
					continue
				}
				p.Rules = append(p.Rules, r)
			}
		}
	}

	if p.World.Len() == 0 && len(p.Rules) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeEmpty, Message: "no entities or rules found in specs"})
	}

	return p, errs
}

// duplicateName reports two labels that normalize to the same name.
func duplicateName(kind, name string, v cue.Value) error {
	return &CompileError{
		Field:   joinPath(kind, name),
		Message: fmt.Sprintf("duplicate %s id %q (labels differ only in Unicode normalization)", kind, name),
		Pos:     v.Pos(),
	}
}

// IsLoadError reports whether err failed before compilation began.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
