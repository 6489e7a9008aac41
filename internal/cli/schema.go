package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/schemata"
	"github.com/roach88/contentql/internal/types"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Output string // output file path
}

// SchemaOutput is the resolved schema: every table and view with its
// columns, and the index definitions.
type SchemaOutput struct {
	Tables  []TableOutput      `json:"tables"`
	Indexes []index.Definition `json:"indexes,omitempty"`
}

// TableOutput describes one table or view.
type TableOutput struct {
	Name         string            `json:"name"`
	Definition   string            `json:"definition,omitempty"` // set for views
	Columns      []schemata.Column `json:"columns"`
	SelectStar   []string          `json:"selectStar"`
	Keys         []schemata.Key    `json:"keys,omitempty"`
	ExtraColumns bool              `json:"extraColumns,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <schema-dir>",
		Short: "Build a schema and print its tables and views",
		Long: `Compile and build the CUE schema files of a directory.

Views are resolved against the tables and the other views, so the output
lists the columns every view ends up with.

Examples:
  contentql schema ./schema
  contentql schema ./schema -o schema.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the resolved schema as JSON to a file")

	return cmd
}

func runSchema(opts *SchemaOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	compiled, built, err := loadSchemata(schemaDir, types.NewStandard())
	if err != nil {
		return formatter.commandError(ExitFailure, ErrCodeBuildFailed, "failed to build schema", err)
	}

	out := NewSchemaOutput(built, compiled.Indexes)

	if opts.Output != "" {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return formatter.commandError(ExitCommandError, ErrCodeWriteFailed, "failed to encode schema", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
			return formatter.commandError(ExitCommandError, ErrCodeWriteFailed, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if formatter.IsJSON() {
		return formatter.Success(out)
	}
	fmt.Fprint(formatter.Writer, out.Text())
	return nil
}

// NewSchemaOutput describes a built schema and its indexes.
func NewSchemaOutput(s *schemata.Schemata, indexes []index.Definition) SchemaOutput {
	out := SchemaOutput{Indexes: indexes}
	for _, t := range s.Tables() {
		to := TableOutput{
			Name:         t.Name(),
			Columns:      t.Columns(),
			SelectStar:   t.SelectStarColumnNames(),
			Keys:         t.Keys(),
			ExtraColumns: t.HasExtraColumns(),
		}
		if t.IsView() {
			to.Definition = model.Readable(t.Definition())
		}
		out.Tables = append(out.Tables, to)
	}
	return out
}

// Text renders the schema one table per block.
func (o SchemaOutput) Text() string {
	var sb strings.Builder
	for _, t := range o.Tables {
		kind := "table"
		if t.Definition != "" {
			kind = "view"
		}
		fmt.Fprintf(&sb, "%s %s\n", kind, t.Name)
		if t.Definition != "" {
			fmt.Fprintf(&sb, "  as %s\n", t.Definition)
		}
		for _, c := range t.Columns {
			fmt.Fprintf(&sb, "  %s %s%s\n", c.Name, c.TypeName, columnFlags(c))
		}
		for _, k := range t.Keys {
			fmt.Fprintf(&sb, "  key (%s)\n", strings.Join(k.Columns, ", "))
		}
	}
	for _, d := range o.Indexes {
		fmt.Fprintf(&sb, "index %s on %s (%s) %s\n", d.Name, d.NodeTypeName, strings.Join(d.ColumnNames(), ", "), d.Kind)
	}
	return sb.String()
}

func columnFlags(c schemata.Column) string {
	var flags []string
	if c.FullTextSearchable {
		flags = append(flags, "searchable")
	}
	if !c.Orderable {
		flags = append(flags, "unordered")
	}
	if len(c.Operators) > 0 {
		ops := make([]string, len(c.Operators))
		for i, op := range c.Operators {
			ops[i] = string(op)
		}
		flags = append(flags, "operators "+strings.Join(ops, " "))
	}
	if len(flags) == 0 {
		return ""
	}
	return " [" + strings.Join(flags, ", ") + "]"
}
