package querysql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/types"
)

const prefix = "e.index_name = ? AND e.workspace = ? AND "

func exists(cond string) string {
	return "EXISTS (SELECT 1 FROM index_values v WHERE v.index_name = e.index_name" +
		" AND v.workspace = e.workspace AND v.node_key = e.node_key" +
		" AND v.column_pos = ? AND " + cond + ")"
}

func pagesIndex() index.Definition {
	return index.Definition{
		Name:         "pages",
		ProviderName: "sqlite",
		Kind:         index.Duplicates,
		NodeTypeName: "app:page",
		Columns: []index.ColumnDefinition{
			{Property: "title", Type: types.String},
			{Property: "rank", Type: types.Long},
			{Property: "published", Type: types.Date},
		},
		Enabled: true,
	}
}

func prop(name string) model.PropertyValue {
	return model.PropertyValue{Selector: "p", Property: name}
}

func lit(v, typ string) model.Literal {
	return model.Literal{Value: v, Type: typ}
}

func TestCompile_Structure(t *testing.T) {
	c := NewCompiler(pagesIndex(), types.NewStandard(), nil)
	sql, params, err := c.Compile("default", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT DISTINCT e.node_key FROM index_values e WHERE e.index_name = ? AND e.workspace = ?"+
		" ORDER BY e.node_key COLLATE BINARY", sql)
	assert.Equal(t, []any{"pages", "default"}, params)
}

func TestWhere(t *testing.T) {
	testCases := []struct {
		name       string
		constraint model.Constraint
		wantSQL    string
		wantParams []any
	}{
		{
			name:       "text equality",
			constraint: model.Comparison{Operand: prop("title"), Operator: model.EqualTo, Value: lit("Home", types.String)},
			wantSQL:    exists("v.value_text = ?"),
			wantParams: []any{0, "Home"},
		},
		{
			name:       "numeric comparison converts the literal",
			constraint: model.Comparison{Operand: prop("rank"), Operator: model.GreaterThan, Value: lit("3", types.String)},
			wantSQL:    exists("v.value_num > ?"),
			wantParams: []any{1, 3.0},
		},
		{
			name:       "not equal",
			constraint: model.Comparison{Operand: prop("title"), Operator: model.NotEqualTo, Value: lit("x", types.String)},
			wantSQL:    exists("v.value_text <> ?"),
			wantParams: []any{0, "x"},
		},
		{
			name: "like on lower case",
			constraint: model.Comparison{
				Operand:  model.LowerCase{Operand: prop("title")},
				Operator: model.Like,
				Value:    lit("ho%", types.String),
			},
			wantSQL:    exists(`LOWER(v.value_text) LIKE ? ESCAPE '\'`),
			wantParams: []any{0, "ho%"},
		},
		{
			name:       "length",
			constraint: model.Comparison{Operand: model.Length{PropertyValue: prop("title")}, Operator: model.LessThan, Value: lit("5", types.Long)},
			wantSQL:    exists("LENGTH(v.value_text) < ?"),
			wantParams: []any{0, 5.0},
		},
		{
			name: "between exclusive upper",
			constraint: model.Between{
				Operand: prop("rank"), Lower: lit("1", types.Long), Upper: lit("9", types.Long),
				LowerInclusive: true,
			},
			wantSQL:    exists("v.value_num >= ? AND v.value_num < ?"),
			wantParams: []any{1, 1.0, 9.0},
		},
		{
			name: "in",
			constraint: model.SetCriteria{Operand: prop("title"), Values: []model.StaticOperand{
				lit("a", types.String), model.BindVariableName{Name: "other"},
			}},
			wantSQL:    exists("v.value_text IN (?, ?)"),
			wantParams: []any{0, "a", "bound"},
		},
		{
			name:       "empty in",
			constraint: model.SetCriteria{Operand: prop("title")},
			wantSQL:    "1 = 0",
		},
		{
			name:       "existence",
			constraint: model.PropertyExistence{Selector: "p", Property: "published"},
			wantSQL:    exists("1 = 1"),
			wantParams: []any{2},
		},
		{
			name: "or and not",
			constraint: model.Or{
				Left:  model.Not{Constraint: model.PropertyExistence{Selector: "p", Property: "title"}},
				Right: model.Comparison{Operand: prop("rank"), Operator: model.EqualTo, Value: lit("2", types.Long)},
			},
			wantSQL:    "(NOT " + exists("1 = 1") + " OR " + exists("v.value_num = ?") + ")",
			wantParams: []any{0, 1, 2.0},
		},
		{
			name:       "full-text search",
			constraint: model.FullTextSearch{Selector: "p", Property: "title", Expression: "Foo -bar"},
			wantSQL: "(" + exists(`LOWER(v.value_text) LIKE ? ESCAPE '\'`) +
				" AND NOT " + exists(`LOWER(v.value_text) LIKE ? ESCAPE '\'`) + ")",
			wantParams: []any{0, "%foo%", 0, "%bar%"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCompiler(pagesIndex(), types.NewStandard(), map[string]any{"other": "bound"})
			sql, params, err := c.Where("ws", []model.Constraint{tc.constraint})
			require.NoError(t, err)
			assert.Equal(t, prefix+tc.wantSQL, sql)
			assert.Equal(t, append([]any{"pages", "ws"}, tc.wantParams...), params)
		})
	}
}

func TestWhere_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		constraint  model.Constraint
		unsupported bool
		want        string
	}{
		{"unindexed property", model.PropertyExistence{Selector: "p", Property: "body"}, false, `property "body" is not indexed`},
		{"node name", model.Comparison{Operand: model.NodeName{Selector: "p"}, Operator: model.EqualTo, Value: lit("x", types.String)}, true, "NAME(p)"},
		{"subquery", model.SetCriteria{Operand: prop("title"), Values: []model.StaticOperand{model.Subquery{}}}, true, "subquery"},
		{"missing bind variable", model.Comparison{Operand: prop("title"), Operator: model.EqualTo, Value: model.BindVariableName{Name: "nope"}}, false, `bind variable "nope" has no value`},
		{"like on number", model.Comparison{Operand: prop("rank"), Operator: model.Like, Value: lit("1%", types.String)}, true, "LIKE"},
		{"bad number", model.Comparison{Operand: prop("rank"), Operator: model.EqualTo, Value: lit("abc", types.String)}, false, "abc"},
		{"node path", model.ChildNode{Selector: "p", ParentPath: "/a"}, true, "ChildNode"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCompiler(pagesIndex(), types.NewStandard(), nil)
			_, _, err := c.Where("ws", []model.Constraint{tc.constraint})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			var uerr *UnsupportedError
			assert.Equal(t, tc.unsupported, errors.As(err, &uerr))
		})
	}
}

func TestEncodeValue(t *testing.T) {
	ts := types.NewStandard()

	v, err := EncodeValue(ts, types.Long, "+3")
	require.NoError(t, err)
	assert.Equal(t, "3", v.Text)
	assert.True(t, v.Num.Valid)
	assert.Equal(t, 3.0, v.Num.Float64)

	v, err = EncodeValue(ts, "", "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v.Text)
	assert.False(t, v.Num.Valid)

	_, err = EncodeValue(ts, "BLOB", "x")
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\`, EscapeLike(`50% off_now \`))
}
