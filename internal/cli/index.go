package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/harness"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/store"
	"github.com/roach88/contentql/internal/types"
)

// IndexOptions holds flags shared by the index subcommands.
type IndexOptions struct {
	*RootOptions
	Database string
}

// ReplayOptions holds flags for the index replay command.
type ReplayOptions struct {
	*IndexOptions
	Schema string
	Trace  bool
}

// ReplayResult summarizes a replay per workspace.
type ReplayResult struct {
	Indexes    []string          `json:"indexes"`
	Workspaces []WorkspaceReplay `json:"workspaces"`
}

// WorkspaceReplay is the outcome of the change sets of one workspace.
type WorkspaceReplay struct {
	Workspace  string   `json:"workspace"`
	ChangeSets int      `json:"changeSets"`
	Operations int      `json:"operations"` // add, change and remove calls
	Trace      []string `json:"trace,omitempty"`
}

// NewIndexCommand creates the index command and its subcommands.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain and inspect SQLite-backed indexes",
		Long: `Maintain and inspect the indexes stored in a SQLite database.

Examples:
  contentql index replay --db ./index.db --schema ./schema changes.yaml
  contentql index list --db ./index.db
  contentql index cost --db ./index.db "SELECT * FROM [app:page] WHERE title = 'Home'"`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newIndexReplayCommand(opts))
	cmd.AddCommand(newIndexListCommand(opts))
	cmd.AddCommand(newIndexCostCommand(opts))

	return cmd
}

func newIndexReplayCommand(indexOpts *IndexOptions) *cobra.Command {
	opts := &ReplayOptions{IndexOptions: indexOpts}

	cmd := &cobra.Command{
		Use:   "replay <changes-file>",
		Short: "Apply a change log to the indexes of a schema",
		Long: `Apply the change sets of a YAML change log to every index the schema
declares, storing the index definitions and values in the database.

Each workspace is replayed by its own listeners, concurrently with the
other workspaces. Within a workspace change sets apply in file order.

Exit codes:
  0 - All change sets applied
  1 - An index operation failed
  2 - Command error (invalid schema, unreadable change log, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema directory declaring the indexes (required)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include every index operation in the output")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runIndexReplay(opts *ReplayOptions, changesPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)
	ts := types.NewStandard()

	compiled, _, err := loadSchemata(opts.Schema, ts)
	if err != nil {
		return formatter.commandError(ExitCommandError, ErrCodeBuildFailed, "failed to load schema", err)
	}
	changeLog, err := harness.LoadChangeLog(changesPath)
	if err != nil {
		return formatter.commandError(ExitCommandError, ErrCodeLoadFailed, "failed to load change log", err)
	}

	st, err := store.Open(opts.Database, store.WithTypeSystem(ts))
	if err != nil {
		return formatter.commandError(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	for _, defn := range compiled.Indexes {
		if err := st.SaveDefinition(ctx, defn); err != nil {
			return formatter.commandError(ExitCommandError, ErrCodeDatabase, "failed to save index definition", err)
		}
	}
	formatter.VerboseLog("Replaying %d change set(s) into %d index(es)", len(changeLog.ChangeSets), len(compiled.Indexes))

	result, err := ReplayChangeLog(ctx, st, compiled.Indexes, changeLog)
	if err != nil {
		return formatter.commandError(ExitFailure, ErrCodeReplay, "replay failed", err)
	}
	if !opts.Trace {
		for i := range result.Workspaces {
			result.Workspaces[i].Trace = nil
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	for _, ws := range result.Workspaces {
		fmt.Fprintf(w, "%s: %d change set(s), %d operation(s)\n", ws.Workspace, ws.ChangeSets, ws.Operations)
		for _, line := range ws.Trace {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintf(w, "✓ Replayed into %s\n", strings.Join(result.Indexes, ", "))
	return nil
}

// ReplayChangeLog applies a change log to defs in st. Change sets are
// grouped by workspace and every workspace gets its own listeners, so
// workspaces replay concurrently while each one keeps file order.
//
// Change sets carry the log's process key unless they name their own;
// replicated change sets get a fresh key each.
func ReplayChangeLog(ctx context.Context, st *store.Store, defs []index.Definition, changeLog *harness.ChangeLog) (*ReplayResult, error) {
	local := changeLog.ProcessKey
	if local == "" {
		local = change.NewProcessKey()
	}

	var order []string
	byWorkspace := make(map[string][]change.ChangeSet)
	for i, step := range changeLog.ChangeSets {
		key := local
		switch {
		case step.Replicated:
			key = change.NewProcessKey()
		case step.ProcessKey != "":
			key = step.ProcessKey
		}
		cs, err := step.ChangeSet(key)
		if err != nil {
			return nil, fmt.Errorf("change_sets[%d].%w", i, err)
		}
		if _, ok := byWorkspace[cs.Workspace]; !ok {
			order = append(order, cs.Workspace)
		}
		byWorkspace[cs.Workspace] = append(byWorkspace[cs.Workspace], cs)
	}

	result := &ReplayResult{Workspaces: make([]WorkspaceReplay, len(order))}
	for _, defn := range defs {
		result.Indexes = append(result.Indexes, defn.Name)
	}
	slices.Sort(result.Indexes)

	nodeTypes := change.NewNodeTypes(changeLog.NodeTypes)
	g, gctx := errgroup.WithContext(ctx)
	for i, ws := range order {
		g.Go(func() error {
			replayer, err := harness.NewReplayer(gctx, st, defs,
				harness.WithProcessKey(local),
				harness.WithNodeTypes(nodeTypes),
				harness.WithLogger(slog.Default()),
			)
			if err != nil {
				return err
			}
			for j, cs := range byWorkspace[ws] {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := replayer.Apply(cs); err != nil {
					return fmt.Errorf("workspace %s: change set %d: %w", ws, j, err)
				}
			}

			out := WorkspaceReplay{Workspace: ws, ChangeSets: len(byWorkspace[ws])}
			for _, c := range replayer.Calls() {
				switch c.Op {
				case "add", "change", "remove":
					out.Operations++
				}
				out.Trace = append(out.Trace, fmt.Sprintf("%s: %s", c.Index, c))
			}
			result.Workspaces[i] = out
			slog.Debug("workspace replayed", "workspace", ws, "change_sets", out.ChangeSets, "operations", out.Operations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func newIndexListCommand(opts *IndexOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the index definitions stored in the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openExisting(opts.Database)
			if err != nil {
				return formatter.commandError(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
			}
			defer st.Close()

			defs, err := st.LoadDefinitions(commandContext(cmd))
			if err != nil {
				return formatter.commandError(ExitCommandError, ErrCodeDatabase, "failed to load index definitions", err)
			}
			if formatter.IsJSON() {
				return formatter.Success(defs)
			}
			for _, d := range defs {
				state := "enabled"
				if !d.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(formatter.Writer, "%s\t%s\t%s(%s)\t%s\n", d.Name, d.Kind, d.NodeTypeName, strings.Join(d.ColumnNames(), ", "), state)
			}
			return nil
		},
	}
}

// openExisting opens a database that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return store.Open(path)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
