package text

import (
	"iter"
	"strings"
	"unicode"
)

// TokenType classifies a token.
type TokenType int

const (
	// Word is a run of letters, digits and underscores.
	Word TokenType = iota + 1
	// Symbol is a single punctuation character from SymbolCharacters.
	Symbol
	// Other is any other single non-whitespace character.
	Other
	// QuotedString is a '...', "..." or [...] region, delimiters included.
	QuotedString
	// Comment is a "--" line comment or a "/* */" block comment.
	Comment
)

// String returns the name of the token type.
func (t TokenType) String() string {
	switch t {
	case Word:
		return "WORD"
	case Symbol:
		return "SYMBOL"
	case Other:
		return "OTHER"
	case QuotedString:
		return "QUOTED_STRING"
	case Comment:
		return "COMMENT"
	default:
		return "UNKNOWN"
	}
}

// SymbolCharacters are the characters emitted as single-character SYMBOL
// tokens. '[' is not listed: it opens a bracketed quoted region.
const SymbolCharacters = "()]{}<>=-+,.;%?$!:|*/"

// Token is a classified lexeme and where it starts.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Tokenizer produces the tokens of an input text.
//
// Tokens must return a fresh sequence on every call, starting at the
// beginning of input. The sequence stops after the first error.
type Tokenizer interface {
	Tokens(input string) iter.Seq2[Token, error]
}

// SQLTokenizer is the Tokenizer for the SQL query language.
type SQLTokenizer struct {
	useComments bool
}

// NewSQLTokenizer creates a SQL tokenizer. When useComments is false,
// comments are discarded instead of emitted as COMMENT tokens.
func NewSQLTokenizer(useComments bool) *SQLTokenizer {
	return &SQLTokenizer{useComments: useComments}
}

// Tokens implements Tokenizer.
func (t *SQLTokenizer) Tokens(input string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		cs := newCharStream(input)
		for cs.hasNext() {
			start := cs.index()
			c, pos := cs.read()
			switch {
			case unicode.IsSpace(c):
				continue

			case c == '\'' || c == '"' || c == '[':
				closing := c
				if c == '[' {
					closing = ']'
				}
				found := false
				for cs.hasNext() {
					r, _ := cs.read()
					if r == '\\' && cs.isNext(closing) {
						cs.read() // escaped closing character
						continue
					}
					if r == closing {
						found = true
						break
					}
				}
				if !found {
					yield(Token{}, unterminated(closing, pos))
					return
				}
				if !yield(Token{Type: QuotedString, Value: cs.slice(start), Pos: pos}, nil) {
					return
				}

			case c == '-' && cs.isNext('-'):
				for cs.hasNext() && !cs.isNext('\n') && !cs.isNext('\r') {
					cs.read()
				}
				if t.useComments {
					if !yield(Token{Type: Comment, Value: cs.slice(start), Pos: pos}, nil) {
						return
					}
				}

			case c == '/' && cs.isNext('*'):
				cs.read()
				for cs.hasNext() && !cs.isNext('*', '/') {
					cs.read()
				}
				if cs.hasNext() {
					cs.read()
					cs.read()
				}
				if t.useComments {
					if !yield(Token{Type: Comment, Value: cs.slice(start), Pos: pos}, nil) {
						return
					}
				}

			case strings.ContainsRune(SymbolCharacters, c):
				if !yield(Token{Type: Symbol, Value: string(c), Pos: pos}, nil) {
					return
				}

			case isWordChar(c):
				for cs.hasNext() && isWordChar(cs.peek()) {
					cs.read()
				}
				if !yield(Token{Type: Word, Value: cs.slice(start), Pos: pos}, nil) {
					return
				}

			default:
				if !yield(Token{Type: Other, Value: string(c), Pos: pos}, nil) {
					return
				}
			}
		}
	}
}

func unterminated(closing rune, pos Position) *ParsingError {
	switch closing {
	case '\'':
		return NewParsingError(pos, "no matching single quote found for quote at line %d, column %d", pos.Line, pos.Column)
	case ']':
		return NewParsingError(pos, "no matching closing bracket found for bracket at line %d, column %d", pos.Line, pos.Column)
	default:
		return NewParsingError(pos, "no matching double quote found for quote at line %d, column %d", pos.Line, pos.Column)
	}
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// charStream walks the runes of an input and tracks line/column.
type charStream struct {
	runes []rune
	next  int
	line  int
	col   int
}

func newCharStream(input string) *charStream {
	return &charStream{runes: []rune(input), line: 1, col: 1}
}

func (s *charStream) hasNext() bool { return s.next < len(s.runes) }

func (s *charStream) index() int { return s.next }

func (s *charStream) peek() rune { return s.runes[s.next] }

// isNext reports whether the upcoming runes equal seq.
func (s *charStream) isNext(seq ...rune) bool {
	if s.next+len(seq) > len(s.runes) {
		return false
	}
	for i, r := range seq {
		if s.runes[s.next+i] != r {
			return false
		}
	}
	return true
}

// read returns the next rune and its position.
func (s *charStream) read() (rune, Position) {
	r := s.runes[s.next]
	pos := Position{Index: s.next, Line: s.line, Column: s.col}
	s.next++
	switch {
	case r == '\n':
		s.line++
		s.col = 1
	case r == '\r' && !s.isNext('\n'):
		s.line++
		s.col = 1
	default:
		s.col++
	}
	return r, pos
}

// position returns the position of the next unread rune.
func (s *charStream) position() Position {
	return Position{Index: s.next, Line: s.line, Column: s.col}
}

// slice returns the text from start up to the next unread rune.
func (s *charStream) slice(start int) string {
	return string(s.runes[start:s.next])
}
