package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/types"
)

func parseViews(t *testing.T, defs map[string]string) map[string]model.QueryCommand {
	t.Helper()
	out := make(map[string]model.QueryCommand, len(defs))
	for name, def := range defs {
		cmd, err := parser.ParseQuery(def, types.NewStandard())
		require.NoError(t, err, name)
		out[name] = cmd
	}
	return out
}

func TestFindViewCycles_Empty(t *testing.T) {
	assert.Empty(t, FindViewCycles(nil))
}

func TestFindViewCycles_DAG(t *testing.T) {
	views := parseViews(t, map[string]string{
		"a": "SELECT * FROM b JOIN c ON b.x = c.x",
		"b": "SELECT * FROM c",
		"c": "SELECT * FROM base",
	})
	assert.Empty(t, FindViewCycles(views), "chains of views are fine")
}

func TestFindViewCycles_SelfLoop(t *testing.T) {
	views := parseViews(t, map[string]string{
		"a": "SELECT * FROM a",
	})
	cycles := FindViewCycles(views)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "itself")
}

func TestFindViewCycles_ThreeViews(t *testing.T) {
	views := parseViews(t, map[string]string{
		"a": "SELECT * FROM b",
		"b": "SELECT * FROM base UNION SELECT * FROM c",
		"c": "SELECT * FROM a",
		"d": "SELECT * FROM a",
	})
	cycles := FindViewCycles(views)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Equal(t, "views select from each other: a -> b -> c -> a", cycles[0].Message)
}

func TestFindViewCycles_Independent(t *testing.T) {
	views := parseViews(t, map[string]string{
		"x": "SELECT * FROM y",
		"y": "SELECT * FROM x",
		"a": "SELECT * FROM a",
	})
	cycles := FindViewCycles(views)
	require.Len(t, cycles, 2)
	assert.Equal(t, "a", cycles[0].Path[0])
	assert.Equal(t, []string{"x", "y", "x"}, cycles[1].Path)
}
