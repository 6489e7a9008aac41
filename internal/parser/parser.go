// Package parser turns SQL query text into a model.QueryCommand.
//
// The parser is recursive descent over a text.TokenStream. Any grammar
// violation aborts the parse with a *text.ParsingError carrying the line and
// column of the offending token; no partial tree is returned. Internally a
// violation unwinds the descent with a panic that Parse recovers and returns
// as the error, so no panic escapes the package.
//
// Grammar (keywords are case-insensitive):
//
//	command    := query { (UNION | INTERSECT | EXCEPT) [ALL] query }
//	query      := SELECT [DISTINCT] (* | column {, column}) FROM source
//	              [WHERE constraint] [ORDER BY ordering {, ordering}] [limit]
//	source     := selector { joinType selector [ON joinCondition] }
//	constraint := primary { AND constraint } { OR constraint }
//	limit      := LIMIT n [OFFSET m] | LIMIT first , to | OFFSET m
//
// ORDER BY and LIMIT may appear in either order. A command nested in
// parentheses (a subquery) ends at the closing parenthesis.
package parser

import (
	"log/slog"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/text"
	"github.com/roach88/contentql/internal/types"
)

// TableColumns supplies the columns SELECT * expands to.
type TableColumns interface {
	// SelectStarColumnNames returns the columns of a table or view in
	// SELECT * order, and false when the table is unknown.
	SelectStarColumnNames(table string) ([]string, bool)
}

// Option configures a Parser.
type Option func(*Parser)

// WithSchemata expands SELECT * into explicit columns for every selector
// whose table is known to tables.
func WithSchemata(tables TableColumns) Option {
	return func(p *Parser) {
		p.tables = tables
	}
}

// Parser parses SQL query text. A Parser holds no per-query state and may
// be shared between goroutines.
type Parser struct {
	types  types.TypeSystem
	tables TableColumns
}

// New creates a parser that canonicalizes literals through ts.
func New(ts types.TypeSystem, opts ...Option) *Parser {
	p := &Parser{types: ts}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseQuery parses query with a one-off Parser.
func ParseQuery(query string, ts types.TypeSystem, opts ...Option) (model.QueryCommand, error) {
	return New(ts, opts...).Parse(query)
}

// Parse parses one query command. The whole input must be consumed.
func (p *Parser) Parse(query string) (cmd model.QueryCommand, err error) {
	ts := text.NewTokenStream(query, text.NewSQLTokenizer(false))
	if err := ts.Start(); err != nil {
		return nil, err
	}

	s := &state{parser: p, ts: ts}
	defer s.recover(&err)

	result := s.command()
	if ts.HasNext() {
		s.unexpected()
	}
	slog.Debug("parsed query", "query", model.Readable(result))
	return result, nil
}

// bailout carries a parse error up through the recursive descent.
type bailout struct {
	err error
}

type state struct {
	parser *Parser
	ts     *text.TokenStream
}

func (s *state) recover(errp *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*errp = b.err
	}
}

func (s *state) fail(pos text.Position, format string, args ...any) {
	panic(bailout{err: text.NewParsingError(pos, format, args...)})
}

func (s *state) check(err error) {
	if err != nil {
		panic(bailout{err: err})
	}
}

func (s *state) expect(expected ...string) {
	s.check(s.ts.Expect(expected...))
}

func (s *state) consume() string {
	v, err := s.ts.Consume()
	s.check(err)
	return v
}

func (s *state) consumeToken() text.Token {
	tok, err := s.ts.ConsumeToken()
	s.check(err)
	return tok
}

func (s *state) consumeInteger() int {
	n, err := s.ts.ConsumeInteger()
	s.check(err)
	return n
}

// unexpected fails on the next token, or on the end of the input.
func (s *state) unexpected() {
	pos := s.ts.NextPosition()
	if !s.ts.HasNext() {
		s.fail(pos, "unexpected end of query at line %d, column %d", pos.Line, pos.Column)
	}
	s.fail(pos, "unexpected token %q at line %d, column %d", s.consume(), pos.Line, pos.Column)
}
