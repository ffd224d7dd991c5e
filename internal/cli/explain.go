package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/rule"
	"github.com/roach88/fable/internal/world"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Database string
	Session  string // explain against this session's latest world
}

// RuleVerdict is how one rule fared against the trigger.
type RuleVerdict struct {
	ID         string `json:"id"`
	Trigger    string `json:"trigger"`
	Weight     int    `json:"weight"`
	TriggerOK  bool   `json:"trigger_matched"`
	Conditions bool   `json:"conditions_held"`
	Winner     bool   `json:"winner"`
}

// ExplainResult is the JSON payload of explain.
type ExplainResult struct {
	Trigger string        `json:"trigger"`
	Winner  string        `json:"winner,omitempty"`
	Rules   []RuleVerdict `json:"rules"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <specs-dir> <trigger>",
		Short: "Show why a rule would or would not fire",
		Long: `Evaluate every rule against a trigger without applying any changes.

For each rule, shows whether its trigger matched, whether its conditions
held and its weight. The rule that would fire is marked.

Examples:
  fable explain ./world door1
  fable explain ./world door1 --db ./fable.db --session 0190...`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], compiler.NormalizeName(args[1]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $FABLE_DB)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "use the latest world of this session")

	return cmd
}

func runExplain(opts *ExplainOptions, specsDir, trigger string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	prog, err := mustLoad(formatter, specsDir)
	if err != nil {
		return err
	}

	w := prog.World
	if opts.Session != "" {
		st, err := openStore(formatter, opts.dbPath(opts.Database))
		if err != nil {
			return err
		}
		defer st.Close()

		w, _, err = journaledWorld(cmd.Context(), formatter, st, opts.Session)
		if err != nil {
			return err
		}
	}

	result := explain(trigger, prog.Rules, w)

	if formatter.JSON() {
		return formatter.SuccessWithSession(result, opts.Session)
	}
	outputExplainText(formatter, result)
	return nil
}

func explain(trigger string, rules []rule.Rule, w world.Store) ExplainResult {
	result := ExplainResult{Trigger: trigger, Rules: make([]RuleVerdict, len(rules))}

	if cands := rule.Candidates(trigger, rules, w); len(cands) > 0 {
		result.Winner = cands[0].Rule.ID
	}

	for i, r := range rules {
		v := RuleVerdict{
			ID:      r.ID,
			Trigger: formatTrigger(r.Trigger),
			Weight:  rule.Weight(r),
		}
		v.TriggerOK = rule.TriggerMatches(r, trigger, w)
		if v.TriggerOK {
			v.Conditions = rule.ConditionsHold(r, trigger, w)
		}
		v.Winner = v.TriggerOK && v.Conditions && r.ID == result.Winner
		result.Rules[i] = v
	}
	return result
}

func outputExplainText(formatter *OutputFormatter, result ExplainResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Trigger: %s\n\n", result.Trigger)

	for _, v := range result.Rules {
		mark := " "
		if v.Winner {
			mark = "→"
		}
		status := "trigger did not match"
		switch {
		case v.TriggerOK && v.Conditions:
			status = "applicable"
		case v.TriggerOK:
			status = "conditions failed"
		}
		fmt.Fprintf(w, "%s %s [%d] %s: %s\n", mark, v.ID, v.Weight, v.Trigger, status)
	}

	fmt.Fprintln(w)
	if result.Winner == "" {
		fmt.Fprintln(w, "No rule applies; the trigger would narrate itself.")
		return
	}
	fmt.Fprintf(w, "Winner: %s\n", result.Winner)
}
