package model

import (
	"fmt"
	"strings"
	"unicode"
)

// Readable renders a model node as query text.
//
// The output parses back into an equal tree, except that And/Or children
// are always parenthesized so grouping is explicit.
func Readable(node any) string {
	var sb strings.Builder
	w := &writer{sb: &sb}
	w.node(node)
	return sb.String()
}

// String renders the query as text.
func (q Query) String() string { return Readable(q) }

// String renders the set query as text.
func (q SetQuery) String() string { return Readable(q) }

type writer struct {
	sb *strings.Builder
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.sb.WriteString(p)
	}
}

func (w *writer) node(node any) {
	switch n := node.(type) {
	case QueryCommand:
		w.command(n)
	case Source:
		w.source(n)
	case JoinCondition:
		w.joinCondition(n)
	case Constraint:
		w.constraint(n)
	case DynamicOperand:
		w.operand(n)
	case StaticOperand:
		w.static(n)
	case Column:
		w.column(n)
	case Ordering:
		w.ordering(n)
	case Limit:
		w.limit(n)
	case nil:
	default:
		w.write(fmt.Sprintf("%v", n))
	}
}

func (w *writer) command(cmd QueryCommand) {
	switch q := cmd.(type) {
	case Query:
		w.write("SELECT ")
		if q.Distinct {
			w.write("DISTINCT ")
		}
		if len(q.Columns) == 0 {
			w.write("*")
		}
		for i, col := range q.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.column(col)
		}
		w.write(" FROM ")
		w.source(q.Source)
		if q.Constraint != nil {
			w.write(" WHERE ")
			w.constraint(q.Constraint)
		}
		if len(q.Orderings) > 0 {
			w.write(" ORDER BY ")
			for i, o := range q.Orderings {
				if i > 0 {
					w.write(", ")
				}
				w.ordering(o)
			}
		}
		if q.Limit != nil {
			w.write(" ")
			w.limit(*q.Limit)
		}
	case SetQuery:
		w.command(q.Left)
		w.write(" ", string(q.Operation), " ")
		if q.All {
			w.write("ALL ")
		}
		w.command(q.Right)
	}
}

func (w *writer) column(c Column) {
	w.write(name(c.Selector), ".", name(c.Property))
	if c.Aliased() {
		w.write(" AS ", name(c.ColumnName))
	}
}

func (w *writer) ordering(o Ordering) {
	w.operand(o.Operand)
	w.write(" ", string(o.Order))
	if o.NullOrder != NullsDefault {
		w.write(" ", string(o.NullOrder))
	}
}

func (w *writer) limit(l Limit) {
	if l.IsUnlimited() {
		w.write(fmt.Sprintf("OFFSET %d", l.Offset))
		return
	}
	w.write(fmt.Sprintf("LIMIT %d", l.RowLimit))
	if l.Offset > 0 {
		w.write(fmt.Sprintf(" OFFSET %d", l.Offset))
	}
}

func (w *writer) source(s Source) {
	switch s := s.(type) {
	case Selector:
		w.write(name(s.Name))
		if s.Alias != "" && s.Alias != s.Name {
			w.write(" AS ", name(s.Alias))
		}
	case Join:
		w.source(s.Left)
		w.write(" ", string(s.Type), " JOIN ")
		w.source(s.Right)
		if s.Condition != nil {
			w.write(" ON ")
			w.joinCondition(s.Condition)
		}
	}
}

func (w *writer) joinCondition(c JoinCondition) {
	switch c := c.(type) {
	case EquiJoin:
		w.write(name(c.Selector1), ".", name(c.Property1), " = ", name(c.Selector2), ".", name(c.Property2))
	case SameNodeJoin:
		w.write("ISSAMENODE(", name(c.Selector1), ",", name(c.Selector2))
		if c.Path != "" {
			w.write(",", quote(c.Path))
		}
		w.write(")")
	case ChildNodeJoin:
		w.write("ISCHILDNODE(", name(c.ChildSelector), ",", name(c.ParentSelector), ")")
	case DescendantNodeJoin:
		w.write("ISDESCENDANTNODE(", name(c.DescendantSelector), ",", name(c.AncestorSelector), ")")
	}
}

func (w *writer) constraint(c Constraint) {
	switch c := c.(type) {
	case And:
		w.grouped(c.Left)
		w.write(" AND ")
		w.grouped(c.Right)
	case Or:
		w.grouped(c.Left)
		w.write(" OR ")
		w.grouped(c.Right)
	case Not:
		w.write("NOT(")
		w.constraint(c.Constraint)
		w.write(")")
	case Comparison:
		w.operand(c.Operand)
		w.write(" ", string(c.Operator), " ")
		w.static(c.Value)
	case Between:
		w.operand(c.Operand)
		w.write(" BETWEEN ")
		w.static(c.Lower)
		if !c.LowerInclusive {
			w.write(" EXCLUSIVE")
		}
		w.write(" AND ")
		w.static(c.Upper)
		if !c.UpperInclusive {
			w.write(" EXCLUSIVE")
		}
	case PropertyExistence:
		w.write(name(c.Selector), ".", name(c.Property), " IS NOT NULL")
	case SetCriteria:
		w.operand(c.Operand)
		w.write(" IN (")
		for i, v := range c.Values {
			if i > 0 {
				w.write(", ")
			}
			w.static(v)
		}
		w.write(")")
	case FullTextSearch:
		w.write("CONTAINS(", name(c.Selector), ".")
		if c.Property == "" {
			w.write("*")
		} else {
			w.write(name(c.Property))
		}
		w.write(",", quote(c.Expression), ")")
	case SameNode:
		w.write("ISSAMENODE(", name(c.Selector), ",", quote(c.Path), ")")
	case ChildNode:
		w.write("ISCHILDNODE(", name(c.Selector), ",", quote(c.ParentPath), ")")
	case DescendantNode:
		w.write("ISDESCENDANTNODE(", name(c.Selector), ",", quote(c.AncestorPath), ")")
	}
}

func (w *writer) grouped(c Constraint) {
	switch c.(type) {
	case And, Or:
		w.write("(")
		w.constraint(c)
		w.write(")")
	default:
		w.constraint(c)
	}
}

func (w *writer) operand(op DynamicOperand) {
	switch op := op.(type) {
	case PropertyValue:
		w.write(name(op.Selector), ".", name(op.Property))
	case ReferenceValue:
		w.write("REFERENCE(", name(op.Selector))
		if op.Property != "" {
			w.write(".", name(op.Property))
		}
		w.write(")")
	case Length:
		w.write("LENGTH(")
		w.operand(op.PropertyValue)
		w.write(")")
	case NodeName:
		w.write("NAME(", name(op.Selector), ")")
	case NodeLocalName:
		w.write("LOCALNAME(", name(op.Selector), ")")
	case NodePath:
		w.write("PATH(", name(op.Selector), ")")
	case NodeDepth:
		w.write("DEPTH(", name(op.Selector), ")")
	case FullTextSearchScore:
		w.write("SCORE(", name(op.Selector), ")")
	case LowerCase:
		w.write("LOWER(")
		w.operand(op.Operand)
		w.write(")")
	case UpperCase:
		w.write("UPPER(")
		w.operand(op.Operand)
		w.write(")")
	case ArithmeticOperand:
		w.arithmeticSide(op.Left, op.Operator, false)
		w.write(" ", string(op.Operator), " ")
		w.arithmeticSide(op.Right, op.Operator, true)
	}
}

// arithmeticSide parenthesizes a nested arithmetic operand when dropping the
// parentheses would change how it parses.
func (w *writer) arithmeticSide(op DynamicOperand, parent ArithmeticOperator, right bool) {
	child, ok := op.(ArithmeticOperand)
	if !ok {
		w.operand(op)
		return
	}
	needParens := parent.Precedes(child.Operator) ||
		(right && child.Operator.Precedence() == parent.Precedence())
	if needParens {
		w.write("(")
		w.operand(child)
		w.write(")")
		return
	}
	w.operand(child)
}

func (w *writer) static(op StaticOperand) {
	switch op := op.(type) {
	case Literal:
		w.literal(op)
	case BindVariableName:
		w.write("$", op.Name)
	case Subquery:
		w.write("(")
		w.command(op.Command)
		w.write(")")
	}
}

func (w *writer) literal(l Literal) {
	switch l.Type {
	case "STRING", "":
		w.write(quote(l.Value))
	case "LONG", "BOOLEAN":
		w.write(l.Value)
	case "DOUBLE":
		if strings.ContainsAny(l.Value, "eEIN") {
			w.write("CAST(", quote(l.Value), " AS DOUBLE)")
			return
		}
		w.write(l.Value)
	default:
		w.write("CAST(", quote(l.Value), " AS ", l.Type, ")")
	}
}

// name brackets identifiers that are not plain words, such as [nt:base].
func name(s string) string {
	if s == "" {
		return s
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "[" + strings.ReplaceAll(s, "]", `\]`) + "]"
		}
	}
	return s
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
