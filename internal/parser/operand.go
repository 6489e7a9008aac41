package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/text"
	"github.com/roach88/contentql/internal/types"
)

// dynamicOperand parses an operand and any arithmetic that follows it.
// * and / bind tighter than + and -, and operators of equal precedence
// associate to the left.
func (s *state) dynamicOperand(source model.Source) model.DynamicOperand {
	return s.arithmetic(source, 1)
}

func (s *state) arithmetic(source model.Source, minPrecedence int) model.DynamicOperand {
	left := s.primaryOperand(source)
	for {
		tok, ok := s.ts.Peek()
		if !ok || tok.Type != text.Symbol {
			return left
		}
		op, ok := model.ParseArithmeticOperator(tok.Value)
		if !ok || op.Precedence() < minPrecedence {
			return left
		}
		s.consume()
		right := s.arithmetic(source, op.Precedence()+1)
		left = model.ArithmeticOperand{Left: left, Operator: op, Right: right}
	}
}

func (s *state) primaryOperand(source model.Source) model.DynamicOperand {
	pos := s.ts.NextPosition()
	switch {
	case s.ts.CanConsume("("):
		op := s.dynamicOperand(source)
		s.expect(")")
		return op

	case s.ts.CanConsume("LENGTH", "("):
		op := model.Length{PropertyValue: s.propertyValue(source)}
		s.expect(")")
		return op

	case s.ts.CanConsume("LOWER", "("):
		op := model.LowerCase{Operand: s.dynamicOperand(source)}
		s.expect(")")
		return op

	case s.ts.CanConsume("UPPER", "("):
		op := model.UpperCase{Operand: s.dynamicOperand(source)}
		s.expect(")")
		return op

	case s.ts.CanConsume("NAME", "("):
		return model.NodeName{Selector: s.selectorArgument(source, "NAME()", pos)}

	case s.ts.CanConsume("LOCALNAME", "("):
		return model.NodeLocalName{Selector: s.selectorArgument(source, "LOCALNAME()", pos)}

	case s.ts.CanConsume("SCORE", "("):
		return model.FullTextSearchScore{Selector: s.selectorArgument(source, "SCORE()", pos)}

	case s.ts.CanConsume("DEPTH", "("):
		return model.NodeDepth{Selector: s.selectorArgument(source, "DEPTH()", pos)}

	case s.ts.CanConsume("PATH", "("):
		return model.NodePath{Selector: s.selectorArgument(source, "PATH()", pos)}

	case s.ts.CanConsume("REFERENCE", "("):
		return s.referenceValue(source, pos)
	}
	return s.propertyValue(source)
}

// selectorArgument parses "[selector])" for functions of one selector.
func (s *state) selectorArgument(source model.Source, function string, pos text.Position) string {
	if s.ts.CanConsume(")") {
		sel, ok := source.(model.Selector)
		if !ok {
			s.fail(pos, "%s is ambiguous and must name a selector at line %d, column %d", function, pos.Line, pos.Column)
		}
		return sel.AliasOrName()
	}
	name := s.name()
	s.expect(")")
	return name
}

func (s *state) propertyValue(source model.Source) model.PropertyValue {
	pos := s.ts.NextPosition()
	first := s.name()
	if s.ts.CanConsume(".") {
		return model.PropertyValue{Selector: first, Property: s.name()}
	}
	return model.PropertyValue{Selector: s.defaultSelector(source, first, pos), Property: first}
}

// referenceValue parses the rest of REFERENCE( ... ). With a single
// selector, REFERENCE(x) names the selector when x is its name or alias and
// a reference property otherwise.
func (s *state) referenceValue(source model.Source, pos text.Position) model.ReferenceValue {
	if s.ts.CanConsume(")") {
		sel, ok := source.(model.Selector)
		if !ok {
			s.fail(pos, "REFERENCE() is ambiguous and must name a selector at line %d, column %d", pos.Line, pos.Column)
		}
		return model.ReferenceValue{Selector: sel.AliasOrName()}
	}

	first := s.name()
	if s.ts.CanConsume(".") {
		property := s.name()
		s.expect(")")
		return model.ReferenceValue{Selector: first, Property: property}
	}
	s.expect(")")

	if sel, ok := source.(model.Selector); ok {
		if first == sel.Name || (sel.Alias != "" && first == sel.Alias) {
			return model.ReferenceValue{Selector: sel.AliasOrName()}
		}
		return model.ReferenceValue{Selector: sel.AliasOrName(), Property: first}
	}
	return model.ReferenceValue{Selector: first}
}

func (s *state) staticOperand() model.StaticOperand {
	if s.ts.CanConsume("$") {
		tok := s.consumeToken()
		if !isNCName(tok.Value) {
			s.fail(tok.Pos, "bind variable %q must be a valid NCName at line %d, column %d",
				tok.Value, tok.Pos.Line, tok.Pos.Column)
		}
		return model.BindVariableName{Name: tok.Value}
	}
	if s.ts.CanConsume("(") {
		op := s.staticOperand()
		s.expect(")")
		return op
	}
	if s.ts.Matches("SELECT") {
		return model.Subquery{Command: s.command()}
	}
	return s.literal()
}

func (s *state) literal() model.Literal {
	if !s.ts.CanConsume("CAST", "(") {
		return s.literalValue()
	}

	pos := s.ts.NextPosition()
	value := s.literalValue()
	s.expect("AS")
	typeTok := s.consumeToken()
	factory, ok := s.parser.types.Factory(removeBracketsAndQuotes(typeTok.Value, true))
	if !ok {
		s.fail(typeTok.Pos, "%q is not a valid property type at line %d, column %d",
			typeTok.Value, typeTok.Pos.Line, typeTok.Pos.Column)
	}
	s.expect(")")

	v, err := factory.Create(value.Value)
	if err != nil {
		s.fail(pos, "value %q at line %d, column %d cannot be cast to %s: %v",
			value.Value, pos.Line, pos.Column, factory.TypeName(), err)
	}
	return model.Literal{Value: factory.AsString(v), Type: factory.TypeName()}
}

// literalValue parses an uncast literal: a quoted string, TRUE or FALSE, a
// signed long or double, or an ISO-8601 date written without quotes.
func (s *state) literalValue() model.Literal {
	if s.ts.MatchesType(text.QuotedString) {
		tok := s.consumeToken()
		raw := unescape(removeBracketsAndQuotes(tok.Value, false), tok.Value[0])
		return s.canonical(types.String, raw, tok.Pos)
	}
	if s.ts.CanConsume("TRUE") {
		return s.canonical(types.Boolean, "true", s.ts.PreviousPosition())
	}
	if s.ts.CanConsume("FALSE") {
		return s.canonical(types.Boolean, "false", s.ts.PreviousPosition())
	}

	pos := s.ts.NextPosition()
	sign := ""
	if s.ts.CanConsume("-") {
		sign = "-"
	} else {
		s.ts.CanConsume("+")
	}

	integral := s.consumeToken()
	if integral.Type != text.Word {
		s.fail(integral.Pos, "expected a literal but found %q at line %d, column %d",
			integral.Value, integral.Pos.Line, integral.Pos.Column)
	}

	if s.ts.CanConsume(".") {
		fraction := s.consume()
		value := sign + integral.Value + "." + fraction
		if strings.HasSuffix(strings.ToLower(fraction), "e") && s.ts.MatchesAnyOf("+", "-") {
			value += s.consume() + s.consume()
		}
		return s.canonical(types.Double, value, pos)
	}

	if next, ok := s.ts.Peek(); ok && next.Value == "-" && next.Pos.Index == end(integral) {
		return s.canonical(types.Date, sign+integral.Value+s.adjacentText(integral), pos)
	}

	value := sign + integral.Value
	if strings.ContainsAny(value, "eE") {
		return s.canonical(types.Double, value, pos)
	}
	return s.canonical(types.Long, value, pos)
}

// adjacentText joins the tokens that directly follow prev with no
// whitespace between them, as in 2024-01-02T10:00:00.000Z.
func (s *state) adjacentText(prev text.Token) string {
	var sb strings.Builder
	for {
		next, ok := s.ts.Peek()
		if !ok || next.Pos.Index != end(prev) {
			return sb.String()
		}
		if next.Type != text.Word && !strings.Contains("-+:.", next.Value) {
			return sb.String()
		}
		sb.WriteString(next.Value)
		prev = s.consumeToken()
	}
}

func (s *state) canonical(typeName, value string, pos text.Position) model.Literal {
	factory, ok := s.parser.types.Factory(typeName)
	if !ok {
		s.fail(pos, "no %s type is defined at line %d, column %d", typeName, pos.Line, pos.Column)
	}
	v, err := factory.Create(value)
	if err != nil {
		s.fail(pos, "expected a literal but unable to parse %q as %s at line %d, column %d",
			value, typeName, pos.Line, pos.Column)
	}
	return model.Literal{Value: factory.AsString(v), Type: factory.TypeName()}
}

// end returns the rune index just past tok.
func end(tok text.Token) int {
	return tok.Pos.Index + utf8.RuneCountInString(tok.Value)
}

// unescape removes the backslash from escaped closing quote characters.
func unescape(s string, quote byte) string {
	closing := quote
	if quote == '[' {
		closing = ']'
	}
	return strings.ReplaceAll(s, `\`+string(closing), string(closing))
}

// isNCName reports whether s is an XML non-colonized name.
func isNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
