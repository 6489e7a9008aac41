package text

import (
	"strconv"
	"strings"
)

// AnyValue matches any single token in Matches and CanConsume.
const AnyValue = "\x00any"

// TokenStream is a cursor over the tokens of one input.
//
// Matching is case-insensitive; Consume returns the token text as written.
// A TokenStream is not safe for concurrent use.
type TokenStream struct {
	input     string
	tokenizer Tokenizer
	tokens    []Token
	pos       int
	end       Position
}

// NewTokenStream creates a stream over input. Start must be called before use.
func NewTokenStream(input string, tokenizer Tokenizer) *TokenStream {
	return &TokenStream{input: input, tokenizer: tokenizer}
}

// Start tokenizes the input and positions the cursor on the first token.
// Calling Start again restarts from the beginning of the input.
func (ts *TokenStream) Start() error {
	ts.tokens = ts.tokens[:0]
	ts.pos = 0
	for tok, err := range ts.tokenizer.Tokens(ts.input) {
		if err != nil {
			return err
		}
		ts.tokens = append(ts.tokens, tok)
	}
	cs := newCharStream(ts.input)
	for cs.hasNext() {
		cs.read()
	}
	ts.end = cs.position()
	return nil
}

// Rewind moves the cursor back to the first token without re-tokenizing.
func (ts *TokenStream) Rewind() {
	ts.pos = 0
}

// Input returns the text the stream was created with.
func (ts *TokenStream) Input() string {
	return ts.input
}

// HasNext reports whether any tokens remain.
func (ts *TokenStream) HasNext() bool {
	return ts.pos < len(ts.tokens)
}

// Peek returns the next token without consuming it.
func (ts *TokenStream) Peek() (Token, bool) {
	if !ts.HasNext() {
		return Token{}, false
	}
	return ts.tokens[ts.pos], true
}

// Matches reports whether the next tokens equal expected, in order.
func (ts *TokenStream) Matches(expected ...string) bool {
	if ts.pos+len(expected) > len(ts.tokens) {
		return false
	}
	for i, want := range expected {
		if want == AnyValue {
			continue
		}
		if !strings.EqualFold(ts.tokens[ts.pos+i].Value, want) {
			return false
		}
	}
	return true
}

// MatchesType reports whether the next tokens have the given types, in order.
func (ts *TokenStream) MatchesType(types ...TokenType) bool {
	if ts.pos+len(types) > len(ts.tokens) {
		return false
	}
	for i, want := range types {
		if ts.tokens[ts.pos+i].Type != want {
			return false
		}
	}
	return true
}

// MatchesAnyOf reports whether the next token equals one of options.
func (ts *TokenStream) MatchesAnyOf(options ...string) bool {
	for _, opt := range options {
		if ts.Matches(opt) {
			return true
		}
	}
	return false
}

// CanConsume consumes the expected tokens if they all match.
func (ts *TokenStream) CanConsume(expected ...string) bool {
	if !ts.Matches(expected...) {
		return false
	}
	ts.pos += len(expected)
	return true
}

// ConsumeToken consumes and returns the next token.
func (ts *TokenStream) ConsumeToken() (Token, error) {
	if !ts.HasNext() {
		return Token{}, NewParsingError(ts.end, "no more content at line %d, column %d", ts.end.Line, ts.end.Column)
	}
	tok := ts.tokens[ts.pos]
	ts.pos++
	return tok, nil
}

// Consume consumes the next token and returns its text.
func (ts *TokenStream) Consume() (string, error) {
	tok, err := ts.ConsumeToken()
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Expect consumes the expected tokens, failing at the first mismatch.
func (ts *TokenStream) Expect(expected ...string) error {
	for _, want := range expected {
		if !ts.HasNext() {
			return NewParsingError(ts.end, "expected %q but reached the end of the query at line %d, column %d",
				want, ts.end.Line, ts.end.Column)
		}
		tok := ts.tokens[ts.pos]
		if want != AnyValue && !strings.EqualFold(tok.Value, want) {
			return NewParsingError(tok.Pos, "expected %q but found %q at line %d, column %d",
				want, tok.Value, tok.Pos.Line, tok.Pos.Column)
		}
		ts.pos++
	}
	return nil
}

// ConsumeInteger consumes the next token as a base-10 int.
func (ts *TokenStream) ConsumeInteger() (int, error) {
	tok, err := ts.ConsumeToken()
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(tok.Value)
	if convErr != nil {
		return 0, NewParsingError(tok.Pos, "expected an integer but found %q at line %d, column %d",
			tok.Value, tok.Pos.Line, tok.Pos.Column)
	}
	return n, nil
}

// NextPosition returns the position of the next token, or the end of the
// input if none remain.
func (ts *TokenStream) NextPosition() Position {
	if !ts.HasNext() {
		return ts.end
	}
	return ts.tokens[ts.pos].Pos
}

// PreviousPosition returns the position of the most recently consumed token.
func (ts *TokenStream) PreviousPosition() Position {
	if ts.pos == 0 {
		return EmptyPosition
	}
	return ts.tokens[ts.pos-1].Pos
}
