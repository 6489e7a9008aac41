// Package text provides the lexical layer shared by the query parsers.
//
// The package contains three pieces:
//
//   - Position: a 1-based line/column (plus 0-based rune index) location in
//     the query text. Positions flow into every ParsingError.
//   - Tokenizer: splits SQL text into WORD, SYMBOL, QUOTED_STRING, OTHER and
//     (optionally) COMMENT tokens. Tokens are produced lazily through an
//     iterator that restarts from the beginning of the input on every call.
//   - TokenStream: a cursor over the tokens with case-insensitive matching,
//     the primitive the recursive-descent parser is written against.
//
// Whitespace and comments never reach the parser. Comments are only emitted
// when the tokenizer is created with comments enabled.
//
// Example:
//
//	ts := text.NewTokenStream("SELECT * FROM [nt:base]", text.NewSQLTokenizer(false))
//	if err := ts.Start(); err != nil {
//	    return err
//	}
//	if ts.CanConsume("SELECT") { ... }
package text
