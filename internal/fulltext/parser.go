package fulltext

import (
	"iter"
	"strings"
	"unicode"

	"github.com/roach88/contentql/internal/text"
)

// Parse parses a full-text search expression.
//
// It returns a nil Term and no error when the expression contains no terms.
// Errors are *text.ParsingError with positions relative to expression.
func Parse(expression string) (Term, error) {
	ts := text.NewTokenStream(expression, termTokenizer{})
	if err := ts.Start(); err != nil {
		return nil, err
	}

	var disjuncts []Term
	for ts.HasNext() {
		conj, err := parseConjunction(ts)
		if err != nil {
			return nil, err
		}
		if conj != nil {
			disjuncts = append(disjuncts, conj)
		}
		if isOr(ts) {
			if _, err := ts.Consume(); err != nil {
				return nil, err
			}
		}
	}

	switch len(disjuncts) {
	case 0:
		return nil, nil
	case 1:
		return disjuncts[0], nil
	default:
		return Disjunction{Terms: disjuncts}, nil
	}
}

func parseConjunction(ts *text.TokenStream) (Term, error) {
	var terms []Term
	for ts.HasNext() && !isOr(ts) {
		term, err := parseTerm(ts)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return terms[0], nil
	default:
		return Conjunction{Terms: terms}, nil
	}
}

func parseTerm(ts *text.TokenStream) (Term, error) {
	negated := false
	if tok, ok := ts.Peek(); ok && tok.Type == text.Symbol && tok.Value == "-" {
		negated = true
		if _, err := ts.Consume(); err != nil {
			return nil, err
		}
	}
	tok, err := ts.ConsumeToken()
	if err != nil {
		return nil, text.NewParsingError(ts.PreviousPosition(), "expected a term after '-'")
	}
	if tok.Type == text.Symbol {
		return nil, text.NewParsingError(tok.Pos, "expected a term but found %q at line %d, column %d",
			tok.Value, tok.Pos.Line, tok.Pos.Column)
	}

	var term Term = SimpleTerm{Value: tok.Value}
	if negated {
		term = NegationTerm{Term: term}
	}
	return term, nil
}

// isOr reports whether the next token is the OR operator. Only the unquoted
// upper-case word counts, so "or" and 'OR' are ordinary terms.
func isOr(ts *text.TokenStream) bool {
	tok, ok := ts.Peek()
	return ok && tok.Type == text.Word && tok.Value == "OR"
}

// termTokenizer splits an expression on whitespace. A token starting with a
// quote runs to the matching quote; a '-' at the start of a token is emitted
// on its own as a SYMBOL.
type termTokenizer struct{}

func (termTokenizer) Tokens(input string) iter.Seq2[text.Token, error] {
	return func(yield func(text.Token, error) bool) {
		runes := []rune(input)
		line, col := 1, 1
		posAt := func(i int) text.Position { return text.Position{Index: i, Line: line, Column: col} }
		advance := func(r rune) {
			if r == '\n' {
				line++
				col = 1
				return
			}
			col++
		}

		i := 0
		for i < len(runes) {
			r := runes[i]
			if unicode.IsSpace(r) {
				advance(r)
				i++
				continue
			}

			if r == '-' {
				pos := posAt(i)
				advance(r)
				i++
				if !yield(text.Token{Type: text.Symbol, Value: "-", Pos: pos}, nil) {
					return
				}
				continue
			}

			if r == '\'' || r == '"' {
				pos := posAt(i)
				quote := r
				advance(r)
				i++
				var sb strings.Builder
				closed := false
				for i < len(runes) {
					c := runes[i]
					if c == '\\' && i+1 < len(runes) && runes[i+1] == quote {
						sb.WriteRune(quote)
						advance(c)
						advance(quote)
						i += 2
						continue
					}
					advance(c)
					i++
					if c == quote {
						closed = true
						break
					}
					sb.WriteRune(c)
				}
				if !closed {
					yield(text.Token{}, text.NewParsingError(pos,
						"no matching quote found for quote at line %d, column %d", pos.Line, pos.Column))
					return
				}
				if !yield(text.Token{Type: text.QuotedString, Value: sb.String(), Pos: pos}, nil) {
					return
				}
				continue
			}

			pos := posAt(i)
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) {
				advance(runes[i])
				i++
			}
			if !yield(text.Token{Type: text.Word, Value: string(runes[start:i]), Pos: pos}, nil) {
				return
			}
		}
	}
}
