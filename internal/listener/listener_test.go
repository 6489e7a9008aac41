package listener

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/testutil"
)

const (
	page    = "app:page"
	process = "test-process-local"
)

func pageNode(key string) change.Node {
	return change.Node{NodeKey: change.NodeKey(key), PrimaryType: page}
}

func assetNode(key string) change.Node {
	return change.Node{NodeKey: change.NodeKey(key), PrimaryType: "app:asset"}
}

func changeSet(changes ...change.Change) change.ChangeSet {
	return change.ChangeSet{Workspace: "default", ProcessKey: process, Changes: changes}
}

func TestSingleColumn_PropertyLifecycle(t *testing.T) {
	rec := testutil.NewRecorder()
	l := NewSingleColumn(page, "p", rec.Single(), WithLocalProcessKey(process))

	err := l.Notify(changeSet(
		change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("p", 1)},
		change.PropertyChanged{Node: pageNode("N"), New: change.NewProperty("p", 2), Old: change.NewProperty("p", 1)},
		change.PropertyRemoved{Node: pageNode("N"), Property: change.NewProperty("p", 2)},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start default local=true",
		"add N p=1",
		"change N new=p=2 old=p=1",
		"remove N",
		"end",
	}, rec.Trace())
}

func TestSingleColumn_Filtering(t *testing.T) {
	rec := testutil.NewRecorder()
	l := NewSingleColumn(page, "p", rec.Single())

	err := l.Notify(changeSet(
		change.NodeAdded{Node: pageNode("a"), Properties: map[string]change.Property{
			"p": change.NewProperty("p", "x"),
			"q": change.NewProperty("q", "y"),
		}},
		change.NodeAdded{Node: pageNode("b"), Properties: map[string]change.Property{
			"q": change.NewProperty("q", "y"),
		}},
		change.PropertyAdded{Node: pageNode("c"), Property: change.NewProperty("q", 1)},
		change.PropertyAdded{Node: assetNode("d"), Property: change.NewProperty("p", 1)},
		change.WorkspaceAdded{Workspace: "other"},
		change.NodeRemoved{Node: pageNode("e")},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start default local=false",
		"add a p=x",
		"remove e",
		"end",
	}, rec.Trace())
}

func TestSingleColumn_Subtypes(t *testing.T) {
	rec := testutil.NewRecorder()
	nt := change.NewNodeTypes(map[string][]string{"app:article": {page}})
	l := NewSingleColumn(page, "p", rec.Single(), WithNodeTypes(nt))

	article := change.Node{NodeKey: "a", PrimaryType: "app:article"}
	mixin := change.Node{NodeKey: "m", PrimaryType: "nt:unstructured", MixinTypes: []string{page}}
	require.NoError(t, l.Notify(changeSet(
		change.PropertyAdded{Node: article, Property: change.NewProperty("p", 1)},
		change.PropertyAdded{Node: mixin, Property: change.NewProperty("p", 2)},
	)))

	assert.Equal(t, []string{"start", "add", "add", "end"}, rec.Ops())
}

func TestSingleColumn_StartRejects(t *testing.T) {
	rec := testutil.NewRecorder()
	rec.Accept = func(string) bool { return false }
	l := NewSingleColumn(page, "p", rec.Single())

	require.NoError(t, l.Notify(changeSet(
		change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("p", 1)},
	)))
	assert.Equal(t, []string{"start"}, rec.Ops())
}

func TestSingleColumn_EndCalledOnFailure(t *testing.T) {
	boom := errors.New("boom")
	rec := testutil.NewRecorder()
	rec.Fail = map[string]error{"add": boom}
	l := NewSingleColumn(page, "p", rec.Single(), WithIndexName("titles"))

	err := l.Notify(changeSet(
		change.PropertyAdded{Node: pageNode("a"), Property: change.NewProperty("p", 1)},
		change.PropertyAdded{Node: pageNode("b"), Property: change.NewProperty("p", 1)},
	))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "index titles")
	assert.Equal(t, []string{"start", "add", "end"}, rec.Ops())
}

func TestMultiColumn_NodeAddedWithSubset(t *testing.T) {
	rec := testutil.NewRecorder()
	l := NewMultiColumn(page, []string{"A", "B"}, rec.Multi())

	require.NoError(t, l.Notify(changeSet(
		change.NodeAdded{Node: pageNode("N"), Properties: map[string]change.Property{
			"A": change.NewProperty("A", "a1"),
			"C": change.NewProperty("C", "ignored"),
		}},
	)))

	assert.Equal(t, []string{
		"start default local=false",
		"add N [a1, null]",
		"end",
	}, rec.Trace())
}

func TestMultiColumn_NodeAddedWithoutTrackedProperties(t *testing.T) {
	rec := testutil.NewRecorder()
	l := NewMultiColumn(page, []string{"A", "B"}, rec.Multi())

	require.NoError(t, l.Notify(changeSet(
		change.NodeAdded{Node: pageNode("N"), Properties: map[string]change.Property{
			"Z": change.NewProperty("Z", "untracked"),
		}},
	)))

	assert.Equal(t, []string{
		"start default local=false",
		"add N [null, null]",
		"end",
	}, rec.Trace())
}

func TestMultiColumn_Buffering(t *testing.T) {
	testCases := []struct {
		name    string
		changes []change.Change
		want    []string
	}{
		{
			name: "added properties become one add",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("B", 2)},
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
			},
			want: []string{"add N [1, 2]"},
		},
		{
			name: "added and changed become a change",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
				change.PropertyChanged{Node: pageNode("N"), New: change.NewProperty("B", 3), Old: change.NewProperty("B", 2)},
			},
			want: []string{"change N new=[1, 3] old=[null, 2]"},
		},
		{
			name: "only removals become a remove",
			changes: []change.Change{
				change.PropertyRemoved{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
				change.PropertyRemoved{Node: pageNode("N"), Property: change.NewProperty("B", 2)},
			},
			want: []string{"remove N"},
		},
		{
			name: "flush on node change",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
				change.PropertyRemoved{Node: pageNode("M"), Property: change.NewProperty("B", 2)},
				change.PropertyAdded{Node: pageNode("O"), Property: change.NewProperty("B", []any{"x"}...)},
			},
			want: []string{"add N [1, null]", "remove M", "add O [null, x]"},
		},
		{
			name: "node removed flushes pending node first",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
				change.NodeRemoved{Node: pageNode("M")},
			},
			want: []string{"add N [1, null]", "remove M"},
		},
		{
			name: "node removed discards buffered values of the same node",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
				change.NodeRemoved{Node: pageNode("N")},
			},
			want: []string{"remove N"},
		},
		{
			name: "untracked properties are ignored",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("Z", 1)},
				change.PropertyAdded{Node: assetNode("X"), Property: change.NewProperty("A", 1)},
			},
			want: nil,
		},
		{
			name: "multi-valued property",
			changes: []change.Change{
				change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", "x", "y")},
			},
			want: []string{"add N [[x, y], null]"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			l := NewMultiColumn(page, []string{"A", "B"}, rec.Multi(), WithLocalProcessKey(process))
			require.NoError(t, l.Notify(changeSet(tc.changes...)))

			want := append([]string{"start default local=true"}, tc.want...)
			want = append(want, "end")
			assert.Equal(t, want, rec.Trace())
		})
	}
}

func TestMultiColumn_BufferDoesNotLeakAcrossChangeSets(t *testing.T) {
	rec := testutil.NewRecorder()
	rec.Fail = map[string]error{"add": errors.New("boom")}
	l := NewMultiColumn(page, []string{"A", "B"}, rec.Multi())

	err := l.Notify(changeSet(
		change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
		change.PropertyAdded{Node: pageNode("M"), Property: change.NewProperty("A", 1)},
	))
	require.Error(t, err)

	rec.Fail = nil
	rec.Reset()
	require.NoError(t, l.Notify(changeSet(
		change.PropertyRemoved{Node: pageNode("O"), Property: change.NewProperty("B", 1)},
	)))
	assert.Equal(t, []string{"start", "remove", "end"}, rec.Ops())
}

func TestContiguityCheck(t *testing.T) {
	rec := testutil.NewRecorder()
	l := NewMultiColumn(page, []string{"A"}, rec.Multi(), WithContiguityCheck())

	err := l.Notify(changeSet(
		change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
		change.PropertyAdded{Node: pageNode("M"), Property: change.NewProperty("A", 1)},
		change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 2)},
	))
	var cerr *change.ContiguityError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, rec.Calls())

	single := NewSingleColumn(page, "A", rec.Single(), WithContiguityCheck())
	require.NoError(t, single.Notify(changeSet(
		change.PropertyAdded{Node: pageNode("N"), Property: change.NewProperty("A", 1)},
	)))
}

func TestListenersSatisfyChangeListener(t *testing.T) {
	rec := testutil.NewRecorder()
	var _ change.Listener = NewSingleColumn(page, "p", rec.Single())
	var _ change.Listener = NewMultiColumn(page, []string{"p"}, rec.Multi())
}
