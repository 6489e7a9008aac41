package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/store"
	"github.com/roach88/contentql/internal/types"
)

func TestRun_PageTitles(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/page_titles.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestRun_Workspaces(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/workspaces.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/page_titles.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario, err := LoadScenario("testdata/bad/wrong_count.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertion 0 (trace_count)")
	assert.Contains(t, result.Errors[0], "2 add operations on titles")
}

func TestLoadSchema(t *testing.T) {
	ts := types.NewStandard()

	schema, err := LoadSchema(ts, "testdata/schema.cue")
	require.NoError(t, err)
	require.Len(t, schema.Indexes, 2)
	require.Len(t, schema.Views, 1)

	_, err = LoadSchema(ts, "testdata/missing.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read schema")
}

func TestLoadSchema_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.cue"
	writeFile(t, path, `table: t: columns: x: "INTEGER"`)

	_, err := LoadSchema(types.NewStandard(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema")
	assert.Contains(t, err.Error(), "E101")
}

func newTestReplayer(t *testing.T, defs ...index.Definition) (*Replayer, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r, err := NewReplayer(ctx, st, defs, WithProcessKey("local"))
	require.NoError(t, err)
	return r, st
}

func titleDefinition(name string) index.Definition {
	return index.Definition{
		Name:         name,
		ProviderName: store.DefaultProviderName,
		Kind:         index.Duplicates,
		NodeTypeName: "app:page",
		Columns:      []index.ColumnDefinition{{Property: "title", Type: types.String}},
		Enabled:      true,
	}
}

func TestReplayer_IndexOrder(t *testing.T) {
	r, _ := newTestReplayer(t, titleDefinition("zeta"), titleDefinition("alpha"))

	err := r.Apply(change.ChangeSet{
		Workspace:  "default",
		ProcessKey: "local",
		Changes: []change.Change{change.NodeAdded{
			Node:       change.Node{NodeKey: "a", PrimaryType: "app:page"},
			Properties: map[string]change.Property{"title": change.NewProperty("title", "Home")},
		}},
	})
	require.NoError(t, err)

	result := NewResult()
	result.AddCalls(r.Calls())
	require.Len(t, result.Trace, 6)
	assert.Equal(t, "alpha: start default local=true", result.Trace[0].String())
	assert.Equal(t, "zeta: end", result.Trace[5].String())
	assert.Equal(t, []string{"start default local=true", "add a title=Home", "end"}, result.IndexTrace("zeta"))
}

func TestReplayer_DisabledIndex(t *testing.T) {
	disabled := titleDefinition("titles")
	disabled.Enabled = false
	r, st := newTestReplayer(t, disabled)

	err := r.Apply(change.ChangeSet{
		Workspace: "default",
		Changes: []change.Change{change.NodeAdded{
			Node:       change.Node{NodeKey: "a", PrimaryType: "app:page"},
			Properties: map[string]change.Property{"title": change.NewProperty("title", "Home")},
		}},
	})
	require.NoError(t, err)

	// The store rejects the change set after the tee recorded Start.
	result := NewResult()
	result.AddCalls(r.Calls())
	assert.Equal(t, []string{"start default local=false"}, result.IndexTrace("titles"))

	got, err := st.NodeValues(context.Background(), disabled, "default", "a")
	require.NoError(t, err)
	assert.Equal(t, [][]string{nil}, got)
}
