package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/types"
)

// CostOptions holds flags for the index cost command.
type CostOptions struct {
	*IndexOptions
	Workspace string
	Vars      []string // name=value
}

// CostResult lists the indexes that could answer a query.
type CostResult struct {
	Query     string        `json:"query"`
	Workspace string        `json:"workspace"`
	Usages    []index.Usage `json:"usages"`
	Best      string        `json:"best,omitempty"`
}

func newIndexCostCommand(indexOpts *IndexOptions) *cobra.Command {
	opts := &CostOptions{IndexOptions: indexOpts}

	cmd := &cobra.Command{
		Use:   "cost <query>",
		Short: "Show which stored indexes could answer a query, and at what cost",
		Long: `Offer a query to every index stored in the database and print the
usages the indexes report: cost, estimated cardinality and selectivity.
The best usage has the lowest cost, then the lowest cardinality.

Example:
  contentql index cost --db ./index.db --var t=Home \
    "SELECT * FROM [app:page] AS p WHERE p.title = $t"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexCost(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Workspace, "workspace", "default", "workspace to plan for")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "bind variable as name=value (repeatable)")

	return cmd
}

func runIndexCost(opts *CostOptions, query string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	vars, err := parseVars(opts.Vars)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --var", err)
	}

	parsed, err := parser.ParseQuery(query, types.NewStandard())
	if err != nil {
		return outputParseError(formatter, err)
	}
	q, ok := parsed.(model.Query)
	if !ok {
		msg := "cost is estimated for a single SELECT, not a set query"
		_ = formatter.Error(ErrCodeUnsupported, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.commandError(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	registry := index.NewRegistry()
	if err := registry.RegisterProvider(st); err != nil {
		return formatter.commandError(ExitCommandError, ErrCodeGeneric, "failed to register provider", err)
	}
	defs, err := st.LoadDefinitions(ctx)
	if err != nil {
		return formatter.commandError(ExitCommandError, ErrCodeDatabase, "failed to load index definitions", err)
	}
	for _, defn := range defs {
		if err := registry.Register(defn); err != nil {
			return formatter.commandError(ExitCommandError, ErrCodeGeneric, "failed to register index", err)
		}
	}

	var nodeTypes []string
	for _, sel := range model.Selectors(q.Source) {
		nodeTypes = append(nodeTypes, sel.Name)
	}
	calc := index.NewCollector(nodeTypes, q.Constraint, joinConditions(q.Source), vars)
	if err := registry.Plan(ctx, calc, opts.Workspace); err != nil {
		return formatter.commandError(ExitFailure, ErrCodeDatabase, "failed to estimate cost", err)
	}

	result := CostResult{Query: model.Readable(q), Workspace: opts.Workspace, Usages: calc.Reports()}
	if best, ok := calc.Best(); ok {
		result.Best = best.IndexName
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	if len(result.Usages) == 0 {
		fmt.Fprintln(w, "No index can answer the query.")
		return nil
	}
	for _, u := range result.Usages {
		marker := " "
		if u.IndexName == result.Best {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s cost=%d cardinality=%d", marker, u.IndexName, u.Cost, u.Cardinality)
		if u.Selectivity != nil {
			fmt.Fprintf(w, " selectivity=%.3f", *u.Selectivity)
		}
		fmt.Fprintln(w)
		for _, c := range u.Constraints {
			fmt.Fprintf(w, "    %s\n", model.Readable(c))
		}
	}
	return nil
}

// parseVars turns name=value flags into bind variable values.
func parseVars(flags []string) (map[string]any, error) {
	vars := make(map[string]any, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("bind variable %q must have the form name=value", f)
		}
		vars[name] = value
	}
	return vars, nil
}

// joinConditions returns the conditions of every join in source, outermost
// last.
func joinConditions(source model.Source) []model.JoinCondition {
	j, ok := source.(model.Join)
	if !ok {
		return nil
	}
	out := joinConditions(j.Left)
	out = append(out, joinConditions(j.Right)...)
	if j.Condition != nil {
		out = append(out, j.Condition)
	}
	return out
}
