package parser

import (
	"errors"

	"github.com/roach88/contentql/internal/fulltext"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/text"
)

// constraint parses one primary constraint followed by any AND-joined and
// then OR-joined constraints. The right side of each AND/OR is itself a full
// constraint, so "a AND b OR c" groups as a AND (b OR c) and "a OR b AND c"
// as a OR (b AND c). Parenthesize to get any other grouping.
func (s *state) constraint(source model.Source) model.Constraint {
	c := s.primaryConstraint(source)
	for s.ts.CanConsume("AND") {
		c = model.And{Left: c, Right: s.constraint(source)}
	}
	for s.ts.CanConsume("OR") {
		c = model.Or{Left: c, Right: s.constraint(source)}
	}
	return c
}

func (s *state) primaryConstraint(source model.Source) model.Constraint {
	pos := s.ts.NextPosition()
	switch {
	case s.ts.CanConsume("("):
		c := s.constraint(source)
		s.expect(")")
		return c

	case s.ts.CanConsume("NOT"):
		s.ts.CanConsume("(")
		c := model.Not{Constraint: s.constraint(source)}
		s.ts.CanConsume(")")
		return c

	case s.ts.CanConsume("CONTAINS", "("):
		return s.fullTextSearch(source, pos)

	case s.ts.CanConsume("ISSAMENODE", "("):
		selector, path := s.nodePredicate(source, "ISSAMENODE()", pos)
		return model.SameNode{Selector: selector, Path: path}

	case s.ts.CanConsume("ISCHILDNODE", "("):
		selector, path := s.nodePredicate(source, "ISCHILDNODE()", pos)
		return model.ChildNode{Selector: selector, ParentPath: path}

	case s.ts.CanConsume("ISDESCENDANTNODE", "("):
		selector, path := s.nodePredicate(source, "ISDESCENDANTNODE()", pos)
		return model.DescendantNode{Selector: selector, AncestorPath: path}
	}

	if c := s.propertyExistence(source); c != nil {
		return c
	}
	if !s.ts.HasNext() {
		s.fail(pos, "expected a constraint but reached the end of the query at line %d, column %d", pos.Line, pos.Column)
	}

	operandPos := s.ts.NextPosition()
	left := s.dynamicOperand(source)
	if pv, ok := left.(model.PropertyValue); ok && s.ts.Matches("(") {
		s.fail(operandPos, "expected a constraint condition but found %q at line %d, column %d",
			pv.Property, operandPos.Line, operandPos.Column)
	}

	switch {
	case s.ts.Matches("IN", "("), s.ts.Matches("NOT", "IN", "("):
		not := s.ts.CanConsume("NOT")
		var c model.Constraint = model.SetCriteria{Operand: left, Values: s.inClause()}
		if not {
			c = model.Not{Constraint: c}
		}
		return c

	case s.ts.Matches("BETWEEN"), s.ts.Matches("NOT", "BETWEEN"):
		not := s.ts.CanConsume("NOT")
		s.expect("BETWEEN")
		lower := s.staticOperand()
		lowerInclusive := !s.ts.CanConsume("EXCLUSIVE")
		s.expect("AND")
		upper := s.staticOperand()
		upperInclusive := !s.ts.CanConsume("EXCLUSIVE")
		var c model.Constraint = model.Between{
			Operand:        left,
			Lower:          lower,
			Upper:          upper,
			LowerInclusive: lowerInclusive,
			UpperInclusive: upperInclusive,
		}
		if not {
			c = model.Not{Constraint: c}
		}
		return c
	}

	op := s.comparisonOperator()
	return model.Comparison{Operand: left, Operator: op, Value: s.staticOperand()}
}

func (s *state) comparisonOperator() model.Operator {
	switch {
	case s.ts.CanConsume("="):
		return model.EqualTo
	case s.ts.CanConsume("LIKE"):
		return model.Like
	case s.ts.CanConsume("!", "="), s.ts.CanConsume("<", ">"):
		return model.NotEqualTo
	case s.ts.CanConsume("<", "="):
		return model.LessThanOrEqualTo
	case s.ts.CanConsume(">", "="):
		return model.GreaterThanOrEqualTo
	case s.ts.CanConsume("<"):
		return model.LessThan
	case s.ts.CanConsume(">"):
		return model.GreaterThan
	}
	pos := s.ts.NextPosition()
	if !s.ts.HasNext() {
		s.fail(pos, "expected a comparison operator but reached the end of the query at line %d, column %d",
			pos.Line, pos.Column)
	}
	s.fail(pos, "expected a comparison operator but found %q at line %d, column %d",
		s.consume(), pos.Line, pos.Column)
	return ""
}

func (s *state) inClause() []model.StaticOperand {
	s.expect("IN", "(")
	values := []model.StaticOperand{}
	if s.ts.CanConsume(")") {
		return values
	}
	for {
		values = append(values, s.staticOperand())
		if !s.ts.CanConsume(",") {
			break
		}
	}
	s.expect(")")
	return values
}

// propertyExistence parses "[selector.]property IS [NOT] NULL", returning
// nil when the upcoming tokens have another shape.
func (s *state) propertyExistence(source model.Source) model.Constraint {
	v := text.AnyValue
	if !s.ts.Matches(v, ".", v, "IS", "NOT", "NULL") &&
		!s.ts.Matches(v, ".", v, "IS", "NULL") &&
		!s.ts.Matches(v, "IS", "NOT", "NULL") &&
		!s.ts.Matches(v, "IS", "NULL") {
		return nil
	}
	pos := s.ts.NextPosition()
	property := s.name()
	var selector string
	if s.ts.CanConsume(".") {
		selector = property
		property = s.name()
	} else {
		selector = s.defaultSelector(source, property, pos)
	}

	exists := model.PropertyExistence{Selector: selector, Property: property}
	if s.ts.CanConsume("IS", "NOT", "NULL") {
		return exists
	}
	s.expect("IS", "NULL")
	return model.Not{Constraint: exists}
}

// fullTextSearch parses the rest of CONTAINS( after the opening parenthesis.
// Errors from the search expression are reported at their position in the
// query.
func (s *state) fullTextSearch(source model.Source, pos text.Position) model.Constraint {
	first := removeBracketsAndQuotes(s.consume(), true)
	var selector, property string
	switch {
	case s.ts.CanConsume(".", "*"):
		selector = first
	case s.ts.CanConsume("."):
		selector = first
		property = s.name()
	default:
		sel, ok := source.(model.Selector)
		if !ok {
			s.fail(pos, "CONTAINS() is ambiguous and must name a selector at line %d, column %d", pos.Line, pos.Column)
		}
		selector = sel.AliasOrName()
		property = first
	}
	s.expect(",")

	tok := s.consumeToken()
	if tok.Type != text.QuotedString {
		s.fail(tok.Pos, "expected a quoted full-text search expression but found %q at line %d, column %d",
			tok.Value, tok.Pos.Line, tok.Pos.Column)
	}
	expression := unescape(removeBracketsAndQuotes(tok.Value, false), tok.Value[0])
	term, err := fulltext.Parse(expression)
	if err != nil {
		var pe *text.ParsingError
		if errors.As(err, &pe) {
			start := text.Position{Index: tok.Pos.Index + 1, Line: tok.Pos.Line, Column: tok.Pos.Column + 1}
			err = &text.ParsingError{Pos: start.Add(pe.Pos), Message: pe.Message}
		}
		s.check(err)
	}
	s.expect(")")
	return model.FullTextSearch{Selector: selector, Property: property, Expression: expression, Term: term}
}

// nodePredicate parses the "[selector,] path)" arguments shared by the
// ISSAMENODE, ISCHILDNODE and ISDESCENDANTNODE predicates.
func (s *state) nodePredicate(source model.Source, function string, pos text.Position) (string, string) {
	var selector string
	if s.ts.Matches(text.AnyValue, ")") {
		sel, ok := source.(model.Selector)
		if !ok {
			s.fail(pos, "%s is ambiguous and must name a selector at line %d, column %d", function, pos.Line, pos.Column)
		}
		selector = sel.AliasOrName()
	} else {
		selector = s.name()
		s.expect(",")
	}
	path := s.name()
	s.expect(")")
	return selector, path
}
