package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/store"
	"github.com/roach88/fable/internal/world"
)

// Compile error codes reported by the CLI. Load failures keep the
// compiler's E001-E007 codes and validation keeps E101-E106.
const (
	ErrCodeWriteFailed  = "E008" // output file could not be written
	ErrCodeStore        = "E009" // journal database error
	ErrCodeInvalidType  = "E107" // float where an int is required
	ErrCodeBadTrigger   = "E110" // invalid rule trigger
	ErrCodeBadCondition = "E111" // invalid rule condition
	ErrCodeBadChange    = "E112" // invalid rule change
	ErrCodeBadRule      = "E113" // invalid rule field
	ErrCodeBadEntity    = "E120" // invalid entity definition
	ErrCodeBadMatcher   = "E121" // invalid matcher argument
)

// loadProgram compiles every CUE file in dir.
func loadProgram(dir string, mode compiler.LoadMode) (*compiler.Program, []error) {
	return compiler.LoadDir(dir, mode)
}

// MapFieldToErrorCode maps a compiler error field path to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case strings.HasPrefix(field, "entity."):
		return ErrCodeBadEntity
	case strings.HasPrefix(field, "matcher"):
		return ErrCodeBadMatcher
	case strings.Contains(field, ".trigger"):
		return ErrCodeBadTrigger
	case strings.Contains(field, ".conditions"):
		return ErrCodeBadCondition
	case strings.Contains(field, ".changes"):
		return ErrCodeBadChange
	case strings.HasPrefix(field, "rule."):
		return ErrCodeBadRule
	default:
		return compiler.ErrCodeGeneric
	}
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := MapFieldToErrorCode(compileErr.Field)
		if strings.Contains(compileErr.Message, "float") {
			code = ErrCodeInvalidType
		}
		return code, compileErr.Field + ": " + compileErr.Message
	}
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var valErr compiler.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Code, valErr.Field + ": " + valErr.Message
	}
	return compiler.ErrCodeGeneric, err.Error()
}

// outputCompileErrors prints every compile error and returns an
// ExitCommandError.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		code, message := parseCompileError(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
	}

	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for i, err := range errs {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(),
				compileErr.Pos.Line(),
				compileErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", cliErrors[i].Code, cliErrors[i].Message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// mustLoad compiles dir fail-fast and prints any failure.
func mustLoad(formatter *OutputFormatter, dir string) (*compiler.Program, error) {
	prog, errs := loadProgram(dir, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, outputCompileErrors(formatter, errs)
	}
	formatter.VerboseLog("Loaded %d entities and %d rules from %d file(s) in %s",
		prog.World.Len(), len(prog.Rules), prog.FileCount, dir)
	return prog, nil
}

// openStore opens the journal database at path.
func openStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, commandError(formatter, compiler.ErrCodeNotFound, "no database: pass --db or set FABLE_DB", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, commandError(formatter, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

// journaledWorld returns the latest world of a journaled session.
func journaledWorld(ctx context.Context, formatter *OutputFormatter, st *store.Store, sessionID string) (world.Store, int64, error) {
	w, seq, err := st.LatestWorld(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return world.Store{}, 0, commandError(formatter, compiler.ErrCodeNotFound, fmt.Sprintf("session not found: %s", sessionID), nil)
	}
	if err != nil {
		return world.Store{}, 0, commandError(formatter, ErrCodeStore, "failed to read session", err)
	}
	return w, seq, nil
}

// formatTrigger renders a rule trigger on one line.
func formatTrigger(t rule.Trigger) string {
	switch t := t.(type) {
	case rule.SpecificTrigger:
		return t.ID
	case rule.EntityTrigger:
		return query.FormatMatcher(t.Matcher)
	default:
		return "<none>"
	}
}
