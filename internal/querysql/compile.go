// Package querysql compiles the constraints an index can answer into
// parameterized SQLite queries over the index_values table.
//
// Each indexed value is a row of index_values keyed by index, workspace,
// node, column position and value position. A node matches a constraint
// when one of its rows for the constrained column does, so every leaf
// compiles to an EXISTS over that node's rows.
//
// Values are never interpolated; every literal is a ? parameter.
package querysql

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/contentql/internal/fulltext"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/types"
)

// UnsupportedError reports a constraint the index store cannot evaluate.
type UnsupportedError struct {
	What string
}

func (e *UnsupportedError) Error() string {
	return "unsupported in index query: " + e.What
}

// Value is the stored form of one property value.
type Value struct {
	Text string
	Num  sql.NullFloat64
}

// EncodeValue converts raw to typeName and returns its canonical text and,
// for numeric and date types, its numeric projection.
func EncodeValue(ts types.TypeSystem, typeName string, raw any) (Value, error) {
	if typeName == "" {
		typeName = ts.DefaultType()
	}
	f, ok := ts.Factory(typeName)
	if !ok {
		return Value{}, fmt.Errorf("unknown property type %q", typeName)
	}
	v, err := f.Create(raw)
	if err != nil {
		return Value{}, err
	}
	out := Value{Text: f.AsString(v)}
	if n, ok := types.Numeric(v); ok {
		out.Num = sql.NullFloat64{Float64: n, Valid: true}
	}
	return out, nil
}

// Compiler compiles constraints against one index definition.
type Compiler struct {
	defn  index.Definition
	types types.TypeSystem
	// Variables holds the values of bind variables.
	Variables map[string]any
}

// NewCompiler creates a compiler for defn.
func NewCompiler(defn index.Definition, ts types.TypeSystem, vars map[string]any) *Compiler {
	return &Compiler{defn: defn, types: ts, Variables: vars}
}

// Compile returns a query selecting the distinct keys of the nodes in
// workspace satisfying every constraint, ordered by key.
//
// MANDATORY: ORDER BY node_key COLLATE BINARY so that paging is stable.
func (c *Compiler) Compile(workspace string, constraints []model.Constraint) (string, []any, error) {
	where, params, err := c.Where(workspace, constraints)
	if err != nil {
		return "", nil, err
	}
	return "SELECT DISTINCT e.node_key FROM index_values e WHERE " + where +
		" ORDER BY e.node_key COLLATE BINARY", params, nil
}

// Where returns the WHERE clause of Compile, for callers that wrap it.
func (c *Compiler) Where(workspace string, constraints []model.Constraint) (string, []any, error) {
	parts := []string{"e.index_name = ?", "e.workspace = ?"}
	params := []any{c.defn.Name, workspace}
	for _, con := range constraints {
		s, p, err := c.constraint(con)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func (c *Compiler) constraint(con model.Constraint) (string, []any, error) {
	switch con := con.(type) {
	case model.And:
		return c.binary(con.Left, con.Right, "AND")
	case model.Or:
		return c.binary(con.Left, con.Right, "OR")
	case model.Not:
		s, p, err := c.constraint(con.Constraint)
		if err != nil {
			return "", nil, err
		}
		return "NOT " + s, p, nil
	case model.Comparison:
		return c.comparison(con)
	case model.Between:
		return c.between(con)
	case model.SetCriteria:
		return c.set(con)
	case model.PropertyExistence:
		col, err := c.column(con.Property)
		if err != nil {
			return "", nil, err
		}
		return c.exists(col, "1 = 1", nil)
	case model.FullTextSearch:
		return c.fullText(con)
	default:
		return "", nil, &UnsupportedError{What: fmt.Sprintf("%T constraint", con)}
	}
}

func (c *Compiler) binary(left, right model.Constraint, op string) (string, []any, error) {
	ls, lp, err := c.constraint(left)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := c.constraint(right)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + " " + op + " " + rs + ")", append(lp, rp...), nil
}

// exists wraps a condition on one column's rows of the current node.
func (c *Compiler) exists(col int, cond string, params []any) (string, []any, error) {
	s := "EXISTS (SELECT 1 FROM index_values v WHERE v.index_name = e.index_name" +
		" AND v.workspace = e.workspace AND v.node_key = e.node_key" +
		" AND v.column_pos = ? AND " + cond + ")"
	return s, append([]any{col}, params...), nil
}

func (c *Compiler) column(property string) (int, error) {
	i := c.defn.ColumnIndex(property)
	if i < 0 {
		return 0, fmt.Errorf("property %q is not indexed by %q", property, c.defn.Name)
	}
	return i, nil
}

// operand is a compiled dynamic operand.
type operand struct {
	column   int
	expr     string
	typeName string
	numeric  bool
}

func (c *Compiler) operand(op model.DynamicOperand) (operand, error) {
	switch op := op.(type) {
	case model.PropertyValue:
		return c.property(op.Property)
	case model.ReferenceValue:
		if op.Property == "" {
			return operand{}, &UnsupportedError{What: "REFERENCE without a property"}
		}
		return c.property(op.Property)
	case model.Length:
		o, err := c.property(op.PropertyValue.Property)
		if err != nil {
			return operand{}, err
		}
		return operand{column: o.column, expr: "LENGTH(v.value_text)", typeName: types.Long, numeric: true}, nil
	case model.LowerCase:
		return c.caseFold(op.Operand, "LOWER")
	case model.UpperCase:
		return c.caseFold(op.Operand, "UPPER")
	default:
		return operand{}, &UnsupportedError{What: model.Readable(op)}
	}
}

func (c *Compiler) property(name string) (operand, error) {
	col, err := c.column(name)
	if err != nil {
		return operand{}, err
	}
	typeName := c.defn.Columns[col].Type
	if typeName == "" {
		typeName = c.types.DefaultType()
	}
	if c.types.IsNumeric(typeName) {
		return operand{column: col, expr: "v.value_num", typeName: typeName, numeric: true}, nil
	}
	return operand{column: col, expr: "v.value_text", typeName: typeName}, nil
}

func (c *Compiler) caseFold(inner model.DynamicOperand, fn string) (operand, error) {
	o, err := c.operand(inner)
	if err != nil {
		return operand{}, err
	}
	if o.numeric {
		o.expr = "v.value_text"
	}
	o.expr = fn + "(" + o.expr + ")"
	o.typeName = types.String
	o.numeric = false
	return o, nil
}

// value converts a static operand to a parameter comparable with o.
func (c *Compiler) value(o operand, op model.StaticOperand) (any, error) {
	var raw any
	switch op := op.(type) {
	case model.Literal:
		raw = op.Value
	case model.BindVariableName:
		v, ok := c.Variables[op.Name]
		if !ok {
			return nil, fmt.Errorf("bind variable %q has no value", op.Name)
		}
		raw = v
	default:
		return nil, &UnsupportedError{What: "subquery operand"}
	}
	enc, err := EncodeValue(c.types, o.typeName, raw)
	if err != nil {
		return nil, err
	}
	if o.numeric {
		if !enc.Num.Valid {
			return nil, fmt.Errorf("%v is not numeric", raw)
		}
		return enc.Num.Float64, nil
	}
	return enc.Text, nil
}

func (c *Compiler) comparison(con model.Comparison) (string, []any, error) {
	o, err := c.operand(con.Operand)
	if err != nil {
		return "", nil, err
	}
	if con.Operator == model.Like {
		if o.numeric {
			return "", nil, &UnsupportedError{What: "LIKE on a numeric column"}
		}
		v, err := c.value(o, con.Value)
		if err != nil {
			return "", nil, err
		}
		return c.exists(o.column, o.expr+` LIKE ? ESCAPE '\'`, []any{v})
	}
	v, err := c.value(o, con.Value)
	if err != nil {
		return "", nil, err
	}
	sqlOp := string(con.Operator)
	if con.Operator == model.NotEqualTo {
		sqlOp = "<>"
	}
	return c.exists(o.column, o.expr+" "+sqlOp+" ?", []any{v})
}

func (c *Compiler) between(con model.Between) (string, []any, error) {
	o, err := c.operand(con.Operand)
	if err != nil {
		return "", nil, err
	}
	lo, err := c.value(o, con.Lower)
	if err != nil {
		return "", nil, err
	}
	hi, err := c.value(o, con.Upper)
	if err != nil {
		return "", nil, err
	}
	lower, upper := ">", "<"
	if con.LowerInclusive {
		lower = ">="
	}
	if con.UpperInclusive {
		upper = "<="
	}
	cond := fmt.Sprintf("%s %s ? AND %s %s ?", o.expr, lower, o.expr, upper)
	return c.exists(o.column, cond, []any{lo, hi})
}

func (c *Compiler) set(con model.SetCriteria) (string, []any, error) {
	if len(con.Values) == 0 {
		return "1 = 0", nil, nil
	}
	o, err := c.operand(con.Operand)
	if err != nil {
		return "", nil, err
	}
	marks := make([]string, len(con.Values))
	params := make([]any, len(con.Values))
	for i, sv := range con.Values {
		v, err := c.value(o, sv)
		if err != nil {
			return "", nil, err
		}
		marks[i] = "?"
		params[i] = v
	}
	return c.exists(o.column, o.expr+" IN ("+strings.Join(marks, ", ")+")", params)
}

func (c *Compiler) fullText(con model.FullTextSearch) (string, []any, error) {
	col := 0
	if con.Property != "" {
		i, err := c.column(con.Property)
		if err != nil {
			return "", nil, err
		}
		col = i
	}
	term := con.Term
	if term == nil {
		t, err := fulltext.Parse(con.Expression)
		if err != nil {
			return "", nil, err
		}
		term = t
	}
	return c.term(col, term)
}

// term compiles a full-text term. Words match case-insensitively anywhere
// in a value.
func (c *Compiler) term(col int, t fulltext.Term) (string, []any, error) {
	switch t := t.(type) {
	case fulltext.SimpleTerm:
		pattern := "%" + EscapeLike(strings.ToLower(t.Value)) + "%"
		return c.exists(col, `LOWER(v.value_text) LIKE ? ESCAPE '\'`, []any{pattern})
	case fulltext.NegationTerm:
		s, p, err := c.term(col, t.Term)
		if err != nil {
			return "", nil, err
		}
		return "NOT " + s, p, nil
	case fulltext.Conjunction:
		return c.terms(col, t.Terms, "AND")
	case fulltext.Disjunction:
		return c.terms(col, t.Terms, "OR")
	default:
		return "", nil, &UnsupportedError{What: fmt.Sprintf("%T term", t)}
	}
}

func (c *Compiler) terms(col int, terms []fulltext.Term, op string) (string, []any, error) {
	parts := make([]string, 0, len(terms))
	var params []any
	for _, t := range terms {
		s, p, err := c.term(col, t)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")", params, nil
}

// EscapeLike escapes the LIKE wildcards of s with a backslash.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
