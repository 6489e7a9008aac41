package schemata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/text"
	"github.com/roach88/contentql/internal/types"
)

func newBuilder() *Builder {
	return NewBuilder(types.NewStandard())
}

func TestBuildTables(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a", "b").
		AddTableWithTypes("u", []string{"id", "size"}, []string{types.String, types.Long}).
		Build()
	require.NoError(t, err)

	tbl, ok := s.Table("t")
	require.True(t, ok)
	assert.False(t, tbl.IsView())
	assert.Equal(t, []string{"a", "b"}, tbl.SelectStarColumnNames())

	col, ok := tbl.Column("a")
	require.True(t, ok)
	assert.Equal(t, types.String, col.TypeName)
	assert.True(t, col.Orderable)
	assert.False(t, col.FullTextSearchable)
	assert.True(t, col.AllowsOperator(model.Like))

	u, ok := s.Table("u")
	require.True(t, ok)
	size, _ := u.Column("size")
	assert.Equal(t, types.Long, size.TypeName)

	_, ok = s.Table("missing")
	assert.False(t, ok)

	names := []string{}
	for _, tbl := range s.Tables() {
		names = append(names, tbl.Name())
	}
	assert.Equal(t, []string{"t", "u"}, names)
}

func TestAddColumnReplacesExisting(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a", "b").
		AddColumn("t", "a", types.Long).
		AddColumn("t", "c", types.Date).
		AddColumn("new", "x", types.Boolean).
		Build()
	require.NoError(t, err)

	tbl, _ := s.Table("t")
	require.Len(t, tbl.Columns(), 3)
	a, _ := tbl.Column("a")
	assert.Equal(t, types.Long, a.TypeName)
	assert.Equal(t, []string{"a", "b", "c"}, tbl.SelectStarColumnNames())

	created, ok := s.Table("new")
	require.True(t, ok)
	x, _ := created.Column("x")
	assert.Equal(t, types.Boolean, x.TypeName)
}

func TestColumnFlags(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a", "b", "c").
		MakeSearchable("t", "a").
		MarkOrderable("t", "b", false).
		MarkOperators("t", "c", model.EqualTo, model.NotEqualTo).
		MarkExtraColumns("t").
		ExcludeFromSelectStar("t", "c").
		MakeSearchable("other", "body").
		Build()
	require.NoError(t, err)

	tbl, _ := s.Table("t")
	a, _ := tbl.Column("a")
	b, _ := tbl.Column("b")
	c, _ := tbl.Column("c")
	assert.True(t, a.FullTextSearchable)
	assert.False(t, b.Orderable)
	assert.True(t, c.AllowsOperator(model.EqualTo))
	assert.False(t, c.AllowsOperator(model.LessThan))
	assert.True(t, tbl.HasExtraColumns())
	assert.True(t, tbl.FullTextSearchable())
	assert.Equal(t, []string{"a", "b"}, tbl.SelectStarColumnNames())

	other, ok := s.Table("other")
	require.True(t, ok)
	assert.True(t, other.FullTextSearchable())
}

func TestAddKey(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a", "b").
		AddKey("t", "b", "a").
		Build()
	require.NoError(t, err)

	tbl, _ := s.Table("t")
	assert.True(t, tbl.HasKey("a", "b"))
	assert.False(t, tbl.HasKey("a"))

	b := newBuilder().AddTable("t", "a").AddKey("t", "missing")
	require.Error(t, b.Err())
	assert.True(t, IsArgumentError(b.Err()))

	_, err = b.Build()
	assert.True(t, IsArgumentError(err))
}

func TestArgumentErrors(t *testing.T) {
	testCases := map[string]func(*Builder) *Builder{
		"empty table name":   func(b *Builder) *Builder { return b.AddTable("", "a") },
		"no columns":         func(b *Builder) *Builder { return b.AddTable("t") },
		"empty column name":  func(b *Builder) *Builder { return b.AddTable("t", "a", "") },
		"type count":         func(b *Builder) *Builder { return b.AddTableWithTypes("t", []string{"a"}, nil) },
		"empty view":         func(b *Builder) *Builder { return b.AddView("v", "") },
		"nil view":           func(b *Builder) *Builder { return b.AddViewCommand("v", nil) },
		"empty column type":  func(b *Builder) *Builder { return b.AddColumn("t", "a", "") },
		"key on no table":    func(b *Builder) *Builder { return b.AddKey("t", "a") },
		"key without column": func(b *Builder) *Builder { return b.AddTable("t", "a").AddKey("t") },
	}
	for name, build := range testCases {
		t.Run(name, func(t *testing.T) {
			b := build(newBuilder())
			assert.True(t, IsArgumentError(b.Err()), "got %v", b.Err())
		})
	}
}

func TestFirstErrorWins(t *testing.T) {
	b := newBuilder().AddTable("").AddKey("nope", "x").AddTable("t", "a")

	var ae *ArgumentError
	require.ErrorAs(t, b.Err(), &ae)
	assert.Equal(t, "AddTable", ae.Method)
	assert.Equal(t, "name", ae.Argument)
}

func TestAddViewParseError(t *testing.T) {
	_, err := newBuilder().AddTable("t", "a").AddView("v", "SELECT FROM").Build()
	require.Error(t, err)
	assert.True(t, text.IsParsingError(err))
}

func TestBuildView(t *testing.T) {
	s, err := newBuilder().
		AddTableWithTypes("t", []string{"a", "b"}, []string{types.Long, types.String}).
		MarkOperators("t", "a", model.EqualTo).
		AddView("v", "SELECT a FROM t").
		Build()
	require.NoError(t, err)

	v, ok := s.Table("v")
	require.True(t, ok)
	assert.True(t, v.IsView())
	require.Len(t, v.Columns(), 1)

	source, _ := s.Table("t")
	ta, _ := source.Column("a")
	va, _ := v.Column("a")
	assert.Equal(t, ta, va)
	assert.Equal(t, []string{"a"}, v.SelectStarColumnNames())
	assert.NotNil(t, v.Definition())
}

func TestBuildViewUnknownTable(t *testing.T) {
	_, err := newBuilder().
		AddTable("t", "a").
		AddView("v", "SELECT a FROM missing").
		Build()
	require.Error(t, err)
	assert.True(t, parser.IsInvalidQuery(err))
	assert.Contains(t, err.Error(), "cannot be resolved")
}

func TestBuildViewUnknownColumn(t *testing.T) {
	_, err := newBuilder().
		AddTable("t", "a").
		AddView("v", "SELECT nope FROM t").
		Build()
	require.Error(t, err)
	assert.True(t, parser.IsInvalidQuery(err))
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestBuildViewAliasDoesNotNameSourceColumn(t *testing.T) {
	// The alias matches a column of t, but the selected property does not.
	_, err := newBuilder().
		AddTable("t", "a").
		AddView("v", "SELECT missing AS a FROM t").
		Build()
	require.Error(t, err)
	assert.True(t, parser.IsInvalidQuery(err))
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestBuildViewsReferencingLaterViews(t *testing.T) {
	// "a" sorts before "b" and "c", so resolving it takes three passes.
	s, err := newBuilder().
		AddTable("t", "x", "y").
		AddView("a", "SELECT y FROM b").
		AddView("b", "SELECT x, y FROM c").
		AddView("c", "SELECT * FROM t").
		Build()
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		_, ok := s.Table(name)
		assert.True(t, ok, name)
	}
	a, _ := s.Table("a")
	assert.Equal(t, []string{"y"}, a.SelectStarColumnNames())
}

func TestBuildViewCycleFails(t *testing.T) {
	_, err := newBuilder().
		AddTable("t", "x").
		AddView("a", "SELECT x FROM b").
		AddView("b", "SELECT x FROM a").
		Build()
	require.Error(t, err)
	assert.True(t, parser.IsInvalidQuery(err))
}

func TestBuildViewColumnOverrides(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a", "b").
		MakeSearchable("t", "a").
		AddView("v", "SELECT t.a AS title, t.b FROM t").
		MarkOrderable("v", "title", false).
		MarkOperators("v", "b", model.Like).
		MarkExtraColumns("v").
		Build()
	require.NoError(t, err)

	v, _ := s.Table("v")
	title, ok := v.Column("title")
	require.True(t, ok)
	assert.True(t, title.FullTextSearchable)
	assert.False(t, title.Orderable)

	b, _ := v.Column("b")
	assert.True(t, b.AllowsOperator(model.Like))
	assert.False(t, b.AllowsOperator(model.EqualTo))
	assert.True(t, v.HasExtraColumns())
}

func TestBuildViewOverJoinAndUnion(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a").
		AddTable("u", "b", "hidden").
		ExcludeFromSelectStar("u", "hidden").
		AddView("joined", "SELECT * FROM t AS x JOIN u AS y ON ISSAMENODE(x, y)").
		AddView("both", "SELECT a FROM t UNION SELECT b FROM u").
		Build()
	require.NoError(t, err)

	joined, _ := s.Table("joined")
	assert.Equal(t, []string{"a", "b"}, joined.SelectStarColumnNames())

	both, _ := s.Table("both")
	assert.Equal(t, []string{"a"}, both.SelectStarColumnNames())
}

func TestSchemataWithIsCopy(t *testing.T) {
	s, err := newBuilder().AddTable("t", "a").Build()
	require.NoError(t, err)

	other, err := newBuilder().AddTable("u", "b").Build()
	require.NoError(t, err)
	u, _ := other.Table("u")

	bigger := s.With(u)
	_, ok := bigger.Table("u")
	assert.True(t, ok)
	_, ok = s.Table("u")
	assert.False(t, ok)
}

func TestSchemataExpandsSelectStar(t *testing.T) {
	s, err := newBuilder().
		AddTable("t", "a", "b", "c").
		ExcludeFromSelectStar("t", "b").
		Build()
	require.NoError(t, err)

	cmd, err := parser.ParseQuery("SELECT * FROM t", types.NewStandard(), parser.WithSchemata(s))
	require.NoError(t, err)
	assert.Equal(t, []model.Column{
		{Selector: "t", Property: "a", ColumnName: "a"},
		{Selector: "t", Property: "c", ColumnName: "c"},
	}, cmd.(model.Query).Columns)
}

func TestSchemataString(t *testing.T) {
	s, err := newBuilder().
		AddTableWithTypes("t", []string{"a"}, []string{types.Long}).
		AddView("v", "SELECT a FROM t").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "t(a LONG)\nv(a LONG) AS SELECT t.a FROM t\n", s.String())
}
