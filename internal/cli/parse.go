package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/schemata"
	"github.com/roach88/contentql/internal/text"
	"github.com/roach88/contentql/internal/types"
	"github.com/roach88/contentql/internal/validate"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	File   string
	Schema string
}

// ParseResult is the JSON payload of the parse command.
type ParseResult struct {
	Query     string             `json:"query"`
	Kind      string             `json:"kind"` // "query" or "set-query"
	Selectors []model.Selector   `json:"selectors"`
	Problems  []validate.Problem `json:"problems,omitempty"`
}

// ParseErrorDetails locates a syntax error in the query text.
type ParseErrorDetails struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse [query]",
		Short: "Parse a query and print its canonical form",
		Long: `Parse a query and print it back in canonical form.

With --schema, SELECT * is expanded into the columns of the selected
tables and the query is validated against the schema.

Examples:
  contentql parse "SELECT * FROM [app:page] WHERE title = 'Home'"
  contentql parse --file query.sql --schema ./schema
  contentql parse --format json "SELECT p.title FROM [app:page] AS p"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the query from a file")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema directory to expand and validate against")

	return cmd
}

func runParse(opts *ParseOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	query, err := queryText(opts.File, args)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "no query", err)
	}

	ts := types.NewStandard()
	var popts []parser.Option
	var built *schemata.Schemata
	if opts.Schema != "" {
		_, built, err = loadSchemata(opts.Schema, ts)
		if err != nil {
			return formatter.commandError(ExitCommandError, ErrCodeBuildFailed, "failed to load schema", err)
		}
		popts = append(popts, parser.WithSchemata(built))
		formatter.VerboseLog("Loaded %d table(s) from %s", len(built.Tables()), opts.Schema)
	}

	parsed, err := parser.ParseQuery(query, ts, popts...)
	if err != nil {
		return outputParseError(formatter, err)
	}

	result := ParseResult{Query: model.Readable(parsed), Kind: commandKind(parsed)}
	for _, q := range queries(parsed) {
		result.Selectors = append(result.Selectors, model.Selectors(q.Source)...)
	}
	if built != nil {
		result.Problems = validate.Validate(built, ts, parsed).List()
	}

	if len(result.Problems) > 0 {
		msg := fmt.Sprintf("query has %d problem(s)", len(result.Problems))
		if formatter.IsJSON() {
			_ = formatter.Failure(ErrCodeInvalidQuery, msg, result)
		} else {
			fmt.Fprintln(formatter.Writer, result.Query)
			fmt.Fprintf(formatter.Writer, "✗ %s\n", msg)
			for _, p := range result.Problems {
				fmt.Fprintf(formatter.Writer, "  %s\n", p)
			}
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return formatter.Success(result.Query)
}

// queryText returns the query from the file flag or the single argument.
func queryText(file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("give the query as an argument or with --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("a query is required")
	}
}

func outputParseError(formatter *OutputFormatter, err error) error {
	var pe *text.ParsingError
	var details any
	if errors.As(err, &pe) {
		details = ParseErrorDetails{Line: pe.Pos.Line, Column: pe.Pos.Column}
	}
	_ = formatter.Error(ErrCodeParse, err.Error(), details)
	return WrapExitError(ExitFailure, "query does not parse", err)
}

func commandKind(cmd model.QueryCommand) string {
	if _, ok := cmd.(model.SetQuery); ok {
		return "set-query"
	}
	return "query"
}

// queries returns the SELECTs of a command from left to right.
func queries(cmd model.QueryCommand) []model.Query {
	switch c := cmd.(type) {
	case model.Query:
		return []model.Query{c}
	case model.SetQuery:
		return append(queries(c.Left), queries(c.Right)...)
	default:
		return nil
	}
}
