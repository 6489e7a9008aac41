package parser

import (
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/text"
)

// columnExpression is a SELECT list entry before its selector is resolved.
type columnExpression struct {
	selector string
	property string
	alias    string
	pos      text.Position
}

func (s *state) command() model.QueryCommand {
	if !s.ts.Matches("SELECT") {
		s.unexpected()
	}
	var cmd model.QueryCommand = s.query()
	for s.ts.HasNext() {
		switch {
		case s.ts.MatchesAnyOf("UNION", "INTERSECT", "EXCEPT"):
			cmd = s.setQuery(cmd)
		case s.ts.Matches(")"):
			return cmd
		default:
			s.unexpected()
		}
	}
	return cmd
}

func (s *state) setQuery(left model.QueryCommand) model.SetQuery {
	var op model.SetOperation
	switch {
	case s.ts.CanConsume("UNION"):
		op = model.Union
	case s.ts.CanConsume("INTERSECT"):
		op = model.Intersect
	default:
		s.expect("EXCEPT")
		op = model.Except
	}
	all := s.ts.CanConsume("ALL")
	if !s.ts.Matches("SELECT") {
		s.unexpected()
	}
	return model.SetQuery{Left: left, Operation: op, Right: s.query(), All: all}
}

func (s *state) query() model.Query {
	s.expect("SELECT")
	distinct := s.ts.CanConsume("DISTINCT")
	exprs, star := s.selectList()
	source := s.from()

	var constraint model.Constraint
	if s.ts.CanConsume("WHERE") {
		constraint = s.constraint(source)
	}

	orderings := s.orderBy(source)
	limit := s.limit()
	if orderings == nil {
		orderings = s.orderBy(source)
	}

	q := model.Query{
		Source:     source,
		Constraint: constraint,
		Orderings:  orderings,
		Limit:      limit,
		Distinct:   distinct,
	}
	if star {
		q.Columns = s.expandStar(source)
		return q
	}

	q.Columns = make([]model.Column, 0, len(exprs))
	for _, expr := range exprs {
		selector := expr.selector
		if selector == "" {
			selector = s.defaultSelector(source, expr.property, expr.pos)
		}
		q.Columns = append(q.Columns, model.Column{
			Selector:   selector,
			Property:   expr.property,
			ColumnName: expr.alias,
		})
	}
	return q
}

// selectList parses the columns after SELECT [DISTINCT]. It reports true
// for SELECT *.
func (s *state) selectList() ([]columnExpression, bool) {
	if s.ts.CanConsume("*") {
		return nil, true
	}
	var exprs []columnExpression
	for {
		pos := s.ts.NextPosition()
		property := s.name()
		selector := ""
		if s.ts.CanConsume(".") {
			selector = property
			property = s.name()
		}
		alias := property
		if s.ts.CanConsume("AS") {
			alias = s.name()
		}
		exprs = append(exprs, columnExpression{selector: selector, property: property, alias: alias, pos: pos})
		if !s.ts.CanConsume(",") {
			return exprs, false
		}
	}
}

// expandStar lists the columns of every selector when all of them are known
// tables, and returns nil (meaning all columns) otherwise.
func (s *state) expandStar(source model.Source) []model.Column {
	if s.parser.tables == nil {
		return nil
	}
	var columns []model.Column
	for _, sel := range model.Selectors(source) {
		names, ok := s.parser.tables.SelectStarColumnNames(sel.Name)
		if !ok {
			return nil
		}
		for _, n := range names {
			columns = append(columns, model.Column{Selector: sel.AliasOrName(), Property: n, ColumnName: n})
		}
	}
	return columns
}

// defaultSelector resolves an unqualified reference to the only selector of
// the source, failing when the source is a join.
func (s *state) defaultSelector(source model.Source, what string, pos text.Position) string {
	if sel, ok := source.(model.Selector); ok {
		return sel.AliasOrName()
	}
	s.fail(pos, "%q is ambiguous and must be qualified with a selector name at line %d, column %d",
		what, pos.Line, pos.Column)
	return ""
}

func (s *state) from() model.Source {
	s.expect("FROM")
	var source model.Source = s.namedSelector()
	seen := map[string]bool{source.(model.Selector).AliasOrName(): true}

	for s.ts.HasNext() {
		joinType, ok := s.joinType()
		if !ok {
			break
		}
		pos := s.ts.NextPosition()
		right := s.namedSelector()
		if seen[right.AliasOrName()] {
			s.fail(pos, "selector %q is used more than once at line %d, column %d",
				right.AliasOrName(), pos.Line, pos.Column)
		}
		seen[right.AliasOrName()] = true

		var cond model.JoinCondition
		if joinType != model.CrossJoin || s.ts.Matches("ON") {
			cond = s.joinCondition()
		}
		source = model.Join{Left: source, Type: joinType, Right: right, Condition: cond}
	}
	return source
}

func (s *state) joinType() (model.JoinType, bool) {
	switch {
	case s.ts.CanConsume("JOIN"), s.ts.CanConsume("INNER", "JOIN"):
		return model.InnerJoin, true
	case s.ts.CanConsume("LEFT", "OUTER", "JOIN"), s.ts.CanConsume("LEFT", "JOIN"), s.ts.CanConsume("OUTER", "JOIN"):
		return model.LeftOuterJoin, true
	case s.ts.CanConsume("RIGHT", "OUTER", "JOIN"), s.ts.CanConsume("RIGHT", "JOIN"):
		return model.RightOuterJoin, true
	case s.ts.CanConsume("FULL", "OUTER", "JOIN"), s.ts.CanConsume("FULL", "JOIN"):
		return model.FullOuterJoin, true
	case s.ts.CanConsume("CROSS", "JOIN"), s.ts.CanConsume("CROSS"):
		return model.CrossJoin, true
	default:
		return "", false
	}
}

func (s *state) joinCondition() model.JoinCondition {
	s.expect("ON")
	switch {
	case s.ts.CanConsume("ISSAMENODE", "("):
		sel1 := s.name()
		s.expect(",")
		sel2 := s.name()
		path := ""
		if s.ts.CanConsume(",") {
			path = s.name()
		}
		s.expect(")")
		return model.SameNodeJoin{Selector1: sel1, Selector2: sel2, Path: path}

	case s.ts.CanConsume("ISCHILDNODE", "("):
		child := s.name()
		s.expect(",")
		parent := s.name()
		s.expect(")")
		return model.ChildNodeJoin{ChildSelector: child, ParentSelector: parent}

	case s.ts.CanConsume("ISDESCENDANTNODE", "("):
		descendant := s.name()
		s.expect(",")
		ancestor := s.name()
		s.expect(")")
		return model.DescendantNodeJoin{DescendantSelector: descendant, AncestorSelector: ancestor}
	}

	sel1 := s.name()
	s.expect(".")
	prop1 := s.name()
	s.expect("=")
	sel2 := s.name()
	s.expect(".")
	prop2 := s.name()
	return model.EquiJoin{Selector1: sel1, Property1: prop1, Selector2: sel2, Property2: prop2}
}

func (s *state) namedSelector() model.Selector {
	sel := model.Selector{Name: s.name()}
	if s.ts.CanConsume("AS") {
		sel.Alias = s.name()
	}
	return sel
}

func (s *state) orderBy(source model.Source) []model.Ordering {
	if !s.ts.CanConsume("ORDER", "BY") {
		return nil
	}
	var orderings []model.Ordering
	for {
		o := model.Ordering{Operand: s.dynamicOperand(source), Order: model.Ascending}
		if s.ts.CanConsume("DESC") {
			o.Order = model.Descending
		} else {
			s.ts.CanConsume("ASC")
		}
		switch {
		case s.ts.CanConsume("NULLS", "FIRST"):
			o.NullOrder = model.NullsFirst
		case s.ts.CanConsume("NULLS", "LAST"):
			o.NullOrder = model.NullsLast
		}
		orderings = append(orderings, o)
		if !s.ts.CanConsume(",") {
			return orderings
		}
	}
}

// limit parses the LIMIT clause. "LIMIT first, to" returns to-first rows
// starting at row first, and fails when to < first.
func (s *state) limit() *model.Limit {
	if s.ts.CanConsume("OFFSET") {
		return &model.Limit{RowLimit: model.Unlimited, Offset: s.consumeInteger()}
	}
	if !s.ts.CanConsume("LIMIT") {
		return nil
	}
	first := s.consumeInteger()
	if s.ts.CanConsume(",") {
		to := s.consumeInteger()
		if to < first {
			pos := s.ts.PreviousPosition()
			s.fail(pos, "the second value in LIMIT %d,%d cannot be less than the first at line %d, column %d",
				first, to, pos.Line, pos.Column)
		}
		return &model.Limit{RowLimit: to - first, Offset: first}
	}
	if s.ts.CanConsume("OFFSET") {
		return &model.Limit{RowLimit: first, Offset: s.consumeInteger()}
	}
	return &model.Limit{RowLimit: first}
}

// name consumes an identifier, removing surrounding brackets or quotes.
func (s *state) name() string {
	tok := s.consumeToken()
	if tok.Type == text.Symbol {
		s.fail(tok.Pos, "expected a name but found %q at line %d, column %d", tok.Value, tok.Pos.Line, tok.Pos.Column)
	}
	return removeBracketsAndQuotes(tok.Value, true)
}

// removeBracketsAndQuotes strips one pair of surrounding quotes or brackets,
// or every nested pair when recursive is set.
func removeBracketsAndQuotes(s string, recursive bool) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if !((first == '\'' || first == '"') && last == first) && !(first == '[' && last == ']') {
			return s
		}
		s = s[1 : len(s)-1]
		if !recursive {
			return s
		}
	}
	return s
}
