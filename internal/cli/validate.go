package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // warnings fail validation
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Check world definitions for errors and dangling references",
		Long: `Compile a directory of CUE files, collecting every error, then check the
rules for structural problems and lint references against the world.

Lint findings are warnings unless --strict is set.

Exit codes:
  0 - Valid
  1 - Validation errors (or warnings with --strict)
  2 - Specs could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	prog, loadErrors := loadProgram(specsDir, compiler.LoadModeCollectAll)

	result := ValidationResult{}
	for _, err := range loadErrors {
		if compiler.IsLoadError(err) || prog == nil {
			return outputCompileErrors(formatter, []error{err})
		}
		result.Errors = append(result.Errors, toValidationError(err))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", prog.FileCount, specsDir)

	result.Errors = append(result.Errors, compiler.Validate(prog.Rules)...)
	result.Warnings = compiler.Lint(prog.World, prog.Rules)
	result.Valid = len(result.Errors) == 0 && (!opts.Strict || len(result.Warnings) == 0)

	if err := outputValidation(formatter, result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d error(s), %d warning(s)",
			len(result.Errors), len(result.Warnings)))
	}
	return nil
}

func toValidationError(err error) compiler.ValidationError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code, _ := parseCompileError(err)
		msg := compileErr.Message
		if compileErr.Pos.IsValid() {
			msg = fmt.Sprintf("%s (%s:%d)", msg, compileErr.Pos.Filename(), compileErr.Pos.Line())
		}
		return compiler.ValidationError{Field: compileErr.Field, Message: msg, Code: code}
	}
	code, msg := parseCompileError(err)
	return compiler.ValidationError{Field: "load", Message: msg, Code: code}
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		first := result.Errors
		if len(first) == 0 {
			first = result.Warnings
		}
		return formatter.Error(first[0].Code, first[0].Message, result)
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintln(w, "✓ All specs valid")
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
	}

	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, e := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}
	return nil
}
