package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/change"
)

func TestRecorder_Trace(t *testing.T) {
	r := NewRecorder()
	s := r.Single()
	m := r.Multi()

	require.True(t, s.Start("default", true))
	require.NoError(t, s.Add("n1", change.NewProperty("p", 1)))
	require.NoError(t, s.Change("n1", change.NewProperty("p", 2), change.NewProperty("p", 1)))
	require.NoError(t, m.Add("n2", []any{"a", nil}))
	require.NoError(t, m.Change("n2", []any{"b", []any{1, 2}}, []any{"a", nil}))
	require.NoError(t, s.Remove("n1"))
	require.NoError(t, s.End())

	assert.Equal(t, []string{
		"start default local=true",
		"add n1 p=1",
		"change n1 new=p=2 old=p=1",
		"add n2 [a, null]",
		"change n2 new=[b, [1, 2]] old=[a, null]",
		"remove n1",
		"end",
	}, r.Trace())

	calls := r.Calls()
	assert.Equal(t, int64(1), calls[0].Seq)
	assert.Equal(t, int64(7), calls[6].Seq)

	r.Reset()
	assert.Empty(t, r.Calls())
}

func TestRecorder_AcceptAndFail(t *testing.T) {
	boom := errors.New("boom")
	r := NewRecorder()
	r.Accept = func(ws string) bool { return ws == "default" }
	r.Fail = map[string]error{"remove": boom}

	assert.False(t, r.Single().Start("other", false))
	assert.True(t, r.Multi().Start("default", false))
	assert.ErrorIs(t, r.Multi().Remove("n"), boom)
	assert.Equal(t, []string{"start", "start", "remove"}, r.Ops())
}

func TestRecorder_IndexNames(t *testing.T) {
	r := NewRecorder()
	require.True(t, r.SingleFor("titles").Start("default", true))
	require.NoError(t, r.MultiFor("pages").Remove("n1"))
	require.NoError(t, r.SingleFor("titles").End())

	calls := r.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"titles", "pages", "titles"}, []string{calls[0].Index, calls[1].Index, calls[2].Index})
	assert.Equal(t, "remove n1", calls[1].String())
	assert.Empty(t, NewRecorder().Single().index)
}
