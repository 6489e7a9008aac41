package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/change"
)

// writeSchema writes a placeholder schema file next to a scenario.
func writeSchema(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte("// placeholder schema"), 0644))
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	writeSchema(t, dir)
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalScenario = `
name: minimal
schema: [schema.cue]
change_sets:
  - workspace: default
    changes:
      - op: node_added
        key: n1
        type: "app:page"
        properties: { title: Home, tags: [a, b], empty: null }
assertions:
  - type: trace_count
    index: titles
    op: add
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, minimalScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "schema.cue")}, scenario.Schema)
	require.Len(t, scenario.ChangeSets, 1)
	require.Len(t, scenario.ChangeSets[0].Changes, 1)

	ch, err := scenario.ChangeSets[0].Changes[0].toChange()
	require.NoError(t, err)
	added, ok := ch.(change.NodeAdded)
	require.True(t, ok)
	assert.Equal(t, change.NodeKey("n1"), added.Key())
	assert.Equal(t, change.NewProperty("title", "Home"), added.Properties["title"])
	assert.Equal(t, change.NewProperty("tags", "a", "b"), added.Properties["tags"])
	assert.True(t, added.Properties["empty"].IsEmpty())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/page_titles.yaml")
	require.NoError(t, err)
	assert.Equal(t, "page_titles", scenario.Name)
	assert.Equal(t, "test-process-local", scenario.ProcessKey)
	assert.Equal(t, map[string][]string{"app:article": {"app:page"}}, scenario.NodeTypes)
	assert.True(t, scenario.ChangeSets[1].Replicated)
	assert.Len(t, scenario.Assertions, 10)
}

func TestParseScenario_Errors(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir)

	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown field",
			content: "name: x\nschema: [schema.cue]\nflow: []\n",
			want:    "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "schema: [schema.cue]\n",
			want:    "name is required",
		},
		{
			name:    "missing schema",
			content: "name: x\n",
			want:    "schema list is required",
		},
		{
			name:    "schema not found",
			content: "name: x\nschema: [nowhere.cue]\nchange_sets: [{workspace: default}]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    "schema file not found",
		},
		{
			name:    "missing change sets",
			content: "name: x\nschema: [schema.cue]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    "change_sets list is required",
		},
		{
			name:    "missing assertions",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: default}]\n",
			want:    "assertions list is required",
		},
		{
			name:    "missing workspace",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{changes: []}]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    "change_sets[0]: workspace is required",
		},
		{
			name:    "replicated with process key",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w, replicated: true, process_key: k}]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    "process_key and replicated are exclusive",
		},
		{
			name:    "unknown op",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w, changes: [{op: node_moved, key: a, type: t, property: p}]}]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    `change_sets[0].changes[0]: unknown op "node_moved"`,
		},
		{
			name:    "property without name",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w, changes: [{op: property_added, key: a, type: t}]}]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    "property is required for property_added",
		},
		{
			name:    "node without type",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w, changes: [{op: node_removed, key: a}]}]\nassertions: [{type: query, index: i, query: q}]\n",
			want:    "type is required for node_removed",
		},
		{
			name:    "assertion without index",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w}]\nassertions: [{type: query, query: q}]\n",
			want:    "assertions[0]: index is required",
		},
		{
			name:    "unknown assertion",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w}]\nassertions: [{type: eventually, index: i}]\n",
			want:    `unknown assertion type "eventually"`,
		},
		{
			name:    "trace_order without lines",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w}]\nassertions: [{type: trace_order, index: i}]\n",
			want:    "lines list is required",
		},
		{
			name:    "negative count",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w}]\nassertions: [{type: trace_count, index: i, op: add, count: -1}]\n",
			want:    "count must be non-negative",
		},
		{
			name:    "stored_values without key",
			content: "name: x\nschema: [schema.cue]\nchange_sets: [{workspace: w}]\nassertions: [{type: stored_values, index: i}]\n",
			want:    "key is required for stored_values",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.content), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestChangeStep_ToChange(t *testing.T) {
	node := change.Node{NodeKey: "n1", PrimaryType: "app:page", MixinTypes: []string{"mix:title"}, Path: "/content/n1"}
	base := ChangeStep{Key: "n1", Type: "app:page", Mixins: []string{"mix:title"}, Path: "/content/n1"}

	testCases := []struct {
		name string
		step func(ChangeStep) ChangeStep
		want change.Change
	}{
		{
			name: "node removed",
			step: func(s ChangeStep) ChangeStep { s.Op = OpNodeRemoved; return s },
			want: change.NodeRemoved{Node: node},
		},
		{
			name: "property added",
			step: func(s ChangeStep) ChangeStep {
				s.Op, s.Property, s.Value = OpPropertyAdded, "rank", 5
				return s
			},
			want: change.PropertyAdded{Node: node, Property: change.NewProperty("rank", 5)},
		},
		{
			name: "property changed",
			step: func(s ChangeStep) ChangeStep {
				s.Op, s.Property, s.Value, s.Old = OpPropertyChanged, "tags", []any{"a", "b"}, "a"
				return s
			},
			want: change.PropertyChanged{
				Node: node,
				New:  change.NewProperty("tags", "a", "b"),
				Old:  change.NewProperty("tags", "a"),
			},
		},
		{
			name: "property removed",
			step: func(s ChangeStep) ChangeStep {
				s.Op, s.Property, s.Value = OpPropertyRemoved, "title", "Home"
				return s
			},
			want: change.PropertyRemoved{Node: node, Property: change.NewProperty("title", "Home")},
		},
		{
			name: "workspace added",
			step: func(ChangeStep) ChangeStep { return ChangeStep{Op: OpWorkspaceAdded, Workspace: "live"} },
			want: change.WorkspaceAdded{Workspace: "live"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.step(base).toChange()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadChangeLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "changes.yaml")
	writeFile(t, path, `
process_key: node-a
node_types:
  "app:article": ["app:page"]
change_sets:
  - workspace: default
    changes:
      - op: node_added
        key: a
        type: "app:article"
        properties: { title: Home }
  - workspace: live
    replicated: true
    changes:
      - op: node_removed
        key: a
        type: "app:article"
`)

	log, err := LoadChangeLog(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", log.ProcessKey)
	require.Len(t, log.ChangeSets, 2)

	cs, err := log.ChangeSets[1].ChangeSet("remote")
	require.NoError(t, err)
	assert.Equal(t, "live", cs.Workspace)
	assert.Equal(t, "remote", cs.ProcessKey)
	assert.Equal(t, []change.Change{change.NodeRemoved{Node: change.Node{NodeKey: "a", PrimaryType: "app:article"}}}, cs.Changes)

	writeFile(t, path, "change_sets: []\n")
	_, err = LoadChangeLog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change_sets list is required")

	writeFile(t, path, "change_sets: [{workspace: w, changes: [{op: node_added}]}]\n")
	_, err = LoadChangeLog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change_sets[0].changes[0]: key is required")

	_, err = LoadChangeLog(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read change log")
}
