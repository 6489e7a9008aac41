package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/schemata"
	"github.com/roach88/contentql/internal/types"
)

func testSchemata(t *testing.T) *schemata.Schemata {
	t.Helper()
	s, err := schemata.NewBuilder(types.NewStandard()).
		AddTableWithTypes("t", []string{"a", "n", "body"}, []string{types.String, types.Long, types.String}).
		MakeSearchable("t", "body").
		MarkOrderable("t", "body", false).
		MarkOperators("t", "a", model.EqualTo, model.Like).
		AddTable("plain", "x").
		AddTable("open", "id").
		MarkExtraColumns("open").
		Build()
	require.NoError(t, err)
	return s
}

func validate(t *testing.T, query string) *Problems {
	t.Helper()
	ts := types.NewStandard()
	cmd, err := parser.ParseQuery(query, ts)
	require.NoError(t, err)
	return Validate(testSchemata(t), ts, cmd)
}

func TestValidQueries(t *testing.T) {
	queries := []string{
		"SELECT a, n FROM t WHERE a = 'x' AND n > 3 ORDER BY n",
		"SELECT * FROM t WHERE CONTAINS(t.*, 'word') AND CONTAINS(body, 'other')",
		"SELECT t.a AS label FROM t ORDER BY label",
		"SELECT whatever FROM open WHERE anything IS NOT NULL",
		"SELECT * FROM t AS x JOIN plain AS y ON x.a = y.x WHERE ISCHILDNODE(y, '/p')",
		"SELECT * FROM t WHERE n + LENGTH(a) * DEPTH() > 3",
		"SELECT * FROM t WHERE a IN (SELECT x FROM plain)",
		"SELECT a FROM t UNION SELECT x FROM plain",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			problems := validate(t, q)
			assert.False(t, problems.HasErrors(), "%v", problems.List())
			assert.NoError(t, problems.Err())
		})
	}
}

func TestMissingColumnReportedOnce(t *testing.T) {
	problems := validate(t, "SELECT x FROM t WHERE x > 1")

	require.Equal(t, 1, problems.Len(), "%v", problems.List())
	assert.Equal(t, 1, problems.Count(UnknownColumn))
	assert.Equal(t, `column "x" does not exist in table "t"`, problems.List()[0].Message)
}

func TestProblems(t *testing.T) {
	testCases := []struct {
		name  string
		query string
		code  Code
	}{
		{"unknown table", "SELECT * FROM nope", UnknownTable},
		{"unknown selector", "SELECT * FROM t WHERE other.a = 'x'", UnknownSelector},
		{"unknown selector in function", "SELECT * FROM t WHERE NAME(other) = 'x'", UnknownSelector},
		{"operator not allowed", "SELECT * FROM t WHERE a > 'x'", OperatorNotAllowed},
		{"operator not allowed in join", "SELECT * FROM plain AS p JOIN t ON ISSAMENODE(p, t) WHERE t.a IN ('x') AND t.a < 'z'", OperatorNotAllowed},
		{"not orderable", "SELECT * FROM t ORDER BY body", NotOrderable},
		{"column not searchable", "SELECT * FROM t WHERE CONTAINS(a, 'x')", NotSearchable},
		{"table not searchable", "SELECT * FROM plain WHERE CONTAINS(plain.*, 'x')", NotSearchable},
		{"string in arithmetic", "SELECT * FROM t WHERE a + n > 2", NonNumericOperand},
		{"name in arithmetic", "SELECT * FROM t WHERE NAME() * n > 2", NonNumericOperand},
		{"problem in subquery", "SELECT * FROM t WHERE a IN (SELECT missing FROM plain)", UnknownColumn},
		{"problem in set query", "SELECT a FROM t EXCEPT SELECT y FROM plain", UnknownColumn},
		{"join condition column", "SELECT * FROM t AS x JOIN plain AS y ON x.a = y.nope", UnknownColumn},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			problems := validate(t, tc.query)
			assert.Equal(t, 1, problems.Count(tc.code), "%v", problems.List())
		})
	}
}

func TestProblemsAccumulate(t *testing.T) {
	problems := validate(t, "SELECT missing FROM t WHERE a > 'x' AND CONTAINS(a, 'y') ORDER BY body")

	assert.Equal(t, 4, problems.Len(), "%v", problems.List())
	for _, code := range []Code{UnknownColumn, OperatorNotAllowed, NotSearchable, NotOrderable} {
		assert.Equal(t, 1, problems.Count(code), code)
	}

	err := problems.Err()
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 4)
	assert.Contains(t, err.Error(), "4 problem(s)")
}

func TestUnknownTableDoesNotCascade(t *testing.T) {
	problems := validate(t, "SELECT a, b FROM nope WHERE c = 1 ORDER BY d")
	assert.Equal(t, 1, problems.Len(), "%v", problems.List())
	assert.Equal(t, 1, problems.Count(UnknownTable))
}
