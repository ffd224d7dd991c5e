package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/rule"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// RuleSummary is one compiled rule as listed by compile.
type RuleSummary struct {
	ID      string `json:"id"`
	Trigger string `json:"trigger"`
	Weight  int    `json:"weight"`
}

// CompilationResult is the JSON payload of compile.
type CompilationResult struct {
	Entities    []string      `json:"entities"`
	Rules       []RuleSummary `json:"rules"`
	WorldDigest string        `json:"world_digest"`
	RulesDigest string        `json:"rules_digest"`
	Output      string        `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE world definitions",
		Long: `Compile the entities and rules defined in a directory of CUE files.

Prints each rule with its weight and the digests of the starting world and
rule list. With --output the compiled program is written as canonical JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	prog, errs := loadProgram(specsDir, compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", prog.FileCount, specsDir)
	for _, r := range prog.Rules {
		formatter.VerboseLog("Compiled rule: %s", r.ID)
	}

	worldDigest, err := digest.World(prog.World)
	if err != nil {
		return commandError(formatter, compiler.ErrCodeGeneric, "hashing world", err)
	}
	rulesDigest, err := digest.Rules(prog.Rules)
	if err != nil {
		return commandError(formatter, compiler.ErrCodeGeneric, "hashing rules", err)
	}

	result := CompilationResult{
		Entities:    prog.World.IDs(),
		Rules:       summarizeRules(prog.Rules),
		WorldDigest: worldDigest,
		RulesDigest: rulesDigest,
		Output:      opts.Output,
	}

	if opts.Output != "" {
		if err := writeProgramToFile(prog, opts.Output); err != nil {
			return commandError(formatter, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result)
}

func summarizeRules(rules []rule.Rule) []RuleSummary {
	out := make([]RuleSummary, len(rules))
	for i, r := range rules {
		out[i] = RuleSummary{ID: r.ID, Trigger: formatTrigger(r.Trigger), Weight: rule.Weight(r)}
	}
	return out
}

func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d entities, %d rule(s)\n\n", len(result.Entities), len(result.Rules))

	if len(result.Rules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, r := range result.Rules {
			fmt.Fprintf(w, "  %s [%d]: %s\n", r.ID, r.Weight, r.Trigger)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "World digest: %s\n", result.WorldDigest)
	fmt.Fprintf(w, "Rules digest: %s\n", result.RulesDigest)

	if result.Output != "" {
		fmt.Fprintf(w, "Wrote canonical program to %s\n", result.Output)
	}

	return nil
}

// writeProgramToFile writes the world and rules as canonical JSON.
func writeProgramToFile(prog *compiler.Program, filename string) error {
	data, err := digest.Marshal(map[string]any{
		"world": digest.WorldValue(prog.World),
		"rules": digest.RulesValue(prog.Rules),
	})
	if err != nil {
		return fmt.Errorf("marshaling program: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
