package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/cobra"

	"github.com/roach88/fable/internal/compiler"
	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/query"
	"github.com/roach88/fable/internal/world"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Session  string
}

// QueryResult is the JSON payload of query.
type QueryResult struct {
	Matcher string           `json:"matcher"`
	Matches []map[string]any `json:"matches"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir> <matcher>",
		Short: "List the entities a matcher selects",
		Long: `Evaluate a matcher, written in the same CUE form rules use, against the
starting world or the latest world of a journaled session.

Examples:
  fable query ./world '{where: [{tag: "door"}]}'
  fable query ./world '{entity: "player", where: [{stat: "gold", gt: 5}]}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $FABLE_DB)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "query the latest world of this session")

	return cmd
}

func runQuery(opts *QueryOptions, specsDir, src string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	m, err := parseMatcher(src)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

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

	matches := query.Evaluate(m, w)

	if formatter.JSON() {
		result := QueryResult{Matcher: query.FormatMatcher(m), Matches: make([]map[string]any, len(matches))}
		for i, match := range matches {
			result.Matches[i] = digest.RecordValue(world.Record{
				ID:    match.ID,
				Tags:  match.Entity.Tags.Sorted(),
				Stats: match.Entity.Stats,
				Links: match.Entity.Links,
			})
		}
		return formatter.SuccessWithSession(result, opts.Session)
	}

	out := formatter.Writer
	fmt.Fprintf(out, "%s: %d match(es)\n", query.FormatMatcher(m), len(matches))
	for _, match := range matches {
		fmt.Fprintf(out, "  %s\n", describeEntity(match.ID, match.Entity))
	}
	return nil
}

// parseMatcher compiles a matcher written as a CUE expression.
func parseMatcher(src string) (query.Matcher, error) {
	v := cuecontext.New().CompileString(src, cue.Filename("matcher"))
	return compiler.CompileMatcher(v)
}

// describeEntity renders an entity on one line: id #tag stat=n link->id.
func describeEntity(id string, e world.Entity) string {
	parts := []string{id}
	for _, tag := range e.Tags.Sorted() {
		parts = append(parts, "#"+tag)
	}
	for _, k := range slices.Sorted(maps.Keys(e.Stats)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Stats[k]))
	}
	for _, k := range slices.Sorted(maps.Keys(e.Links)) {
		parts = append(parts, k+"->"+e.Links[k])
	}
	return strings.Join(parts, " ")
}
