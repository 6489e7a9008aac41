package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/listener"
)

func TestSingleOps_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defn := titleIndex()

	ops, err := s.Single(ctx, defn)
	require.NoError(t, err)

	require.True(t, ops.Start("default", true))
	require.NoError(t, ops.Add("n1", change.NewProperty("title", "Home")))
	require.NoError(t, ops.Add("n2", change.NewProperty("title", "a", "b")))
	require.NoError(t, ops.End())

	vals, err := s.NodeValues(ctx, defn, "default", "n2")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, vals)

	require.True(t, ops.Start("default", true))
	require.NoError(t, ops.Change("n2", change.NewProperty("title", "c"), change.NewProperty("title", "a", "b")))
	require.NoError(t, ops.Remove("n1"))
	require.NoError(t, ops.End())

	vals, err = s.NodeValues(ctx, defn, "default", "n2")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"c"}}, vals)

	vals, err = s.NodeValues(ctx, defn, "default", "n1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{nil}, vals)
}

func TestSingleOps_RejectsMultiColumn(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Single(context.Background(), pageIndex())
	assert.Error(t, err)
}

func TestOps_StartSkipsWorkspaces(t *testing.T) {
	s := createTestStore(t)

	scoped := titleIndex()
	scoped.Workspaces = []string{"live"}
	ops, err := s.Single(context.Background(), scoped)
	require.NoError(t, err)
	assert.False(t, ops.Start("draft", false))

	disabled := pageIndex()
	disabled.Enabled = false
	assert.False(t, s.Multi(context.Background(), disabled).Start("live", false))
}

func TestOps_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defn := pageIndex()
	ops := s.Multi(ctx, defn)

	require.True(t, ops.Start("default", true))
	require.NoError(t, ops.Add("n1", []any{"Home", 1}))
	err := ops.Add("n2", []any{"Other", "not a number"})
	require.Error(t, err)
	assert.ErrorIs(t, ops.Remove("n1"), err, "later operations report the first failure")
	assert.Error(t, ops.End())

	total, err := s.EstimateTotalCount(ctx, defn, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestOps_OutsideChangeSet(t *testing.T) {
	s := createTestStore(t)
	ops := s.Multi(context.Background(), pageIndex())
	assert.ErrorIs(t, ops.Remove("n1"), errNotStarted)
	assert.ErrorIs(t, ops.End(), errNotStarted)
}

func TestMultiOps_Columns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	defn := pageIndex()
	ops := s.Multi(ctx, defn)

	apply := func(fn func() error) {
		t.Helper()
		require.True(t, ops.Start("default", true))
		require.NoError(t, fn())
		require.NoError(t, ops.End())
	}
	values := func() [][]string {
		t.Helper()
		v, err := s.NodeValues(ctx, defn, "default", "n1")
		require.NoError(t, err)
		return v
	}

	apply(func() error { return ops.Add("n1", []any{"Home", nil}) })
	assert.Equal(t, [][]string{{"Home"}, nil}, values())

	apply(func() error { return ops.Change("n1", []any{nil, "+7"}, []any{nil, nil}) })
	assert.Equal(t, [][]string{{"Home"}, {"7"}}, values())

	apply(func() error { return ops.Change("n1", []any{[]any{"a", "b"}, nil}, []any{"Home", 7}) })
	assert.Equal(t, [][]string{{"a", "b"}, nil}, values())

	apply(func() error { return ops.Remove("n1") })
	assert.Equal(t, [][]string{nil, nil}, values())
}

func TestMultiOps_TooManyValues(t *testing.T) {
	s := createTestStore(t)
	ops := s.Multi(context.Background(), pageIndex())
	require.True(t, ops.Start("default", true))
	assert.Error(t, ops.Add("n1", []any{"a", 1, "extra"}))
	assert.Error(t, ops.End())
}

func TestOps_DriveListeners(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	single, err := s.Single(ctx, titleIndex())
	require.NoError(t, err)
	var _ listener.SingleColumnOperations = single
	var _ listener.MultiColumnOperations = s.Multi(ctx, pageIndex())
	var _ index.Provider = s

	l := listener.NewSingleColumn("app:page", "title", single)
	node := change.Node{NodeKey: "n1", PrimaryType: "app:page"}
	require.NoError(t, l.Notify(change.ChangeSet{Workspace: "default", Changes: []change.Change{
		change.NodeAdded{Node: node, Properties: map[string]change.Property{"title": change.NewProperty("title", "Home")}},
	}}))

	total, err := s.EstimateTotalCount(ctx, titleIndex(), "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
