package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string, useComments bool) []Token {
	t.Helper()
	var out []Token
	for tok, err := range NewSQLTokenizer(useComments).Tokens(input) {
		require.NoError(t, err)
		out = append(out, tok)
	}
	return out
}

func values(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Value
	}
	return out
}

func TestTokens_SimpleSelect(t *testing.T) {
	tokens := collect(t, "SELECT * FROM [nt:base] WHERE a.x >= 'v'", false)

	assert.Equal(t,
		[]string{"SELECT", "*", "FROM", "[nt:base]", "WHERE", "a", ".", "x", ">", "=", "'v'"},
		values(tokens))
	assert.Equal(t, Word, tokens[0].Type)
	assert.Equal(t, Symbol, tokens[1].Type)
	assert.Equal(t, QuotedString, tokens[3].Type)
	assert.Equal(t, QuotedString, tokens[10].Type)
}

func TestTokens_Positions(t *testing.T) {
	tokens := collect(t, "SELECT a\n  FROM b", false)
	require.Len(t, tokens, 4)

	assert.Equal(t, Position{Index: 0, Line: 1, Column: 1}, tokens[0].Pos)
	assert.Equal(t, Position{Index: 7, Line: 1, Column: 8}, tokens[1].Pos)
	assert.Equal(t, Position{Index: 11, Line: 2, Column: 3}, tokens[2].Pos)
	assert.Equal(t, Position{Index: 16, Line: 2, Column: 8}, tokens[3].Pos)
}

func TestTokens_CRLFCountsAsOneLine(t *testing.T) {
	tokens := collect(t, "a\r\nb\rc", false)
	require.Len(t, tokens, 3)
	assert.Equal(t, 2, tokens[1].Pos.Line)
	assert.Equal(t, 3, tokens[2].Pos.Line)
	assert.Equal(t, 1, tokens[2].Pos.Column)
}

func TestTokens_EscapedClosingQuote(t *testing.T) {
	tokens := collect(t, `'it\'s' "say \"hi\"" [a\]b]`, false)
	assert.Equal(t, []string{`'it\'s'`, `"say \"hi\""`, `[a\]b]`}, values(tokens))
	for _, tok := range tokens {
		assert.Equal(t, QuotedString, tok.Type)
	}
}

func TestTokens_UnterminatedQuote(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		message string
		column  int
	}{
		{"single quote", "WHERE x = 'abc", "no matching single quote", 11},
		{"double quote", `x = "abc`, "no matching double quote", 5},
		{"bracket", "FROM [nt:base", "no matching closing bracket", 6},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			for _, e := range NewSQLTokenizer(false).Tokens(tc.input) {
				if e != nil {
					err = e
				}
			}
			require.Error(t, err)

			var pe *ParsingError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Message, tc.message)
			assert.Equal(t, 1, pe.Pos.Line)
			assert.Equal(t, tc.column, pe.Pos.Column)
		})
	}
}

func TestTokens_Comments(t *testing.T) {
	input := "SELECT -- pick\n* /* all\ncolumns */ FROM x"

	assert.Equal(t, []string{"SELECT", "*", "FROM", "x"}, values(collect(t, input, false)))

	withComments := collect(t, input, true)
	assert.Equal(t,
		[]string{"SELECT", "-- pick", "*", "/* all\ncolumns */", "FROM", "x"},
		values(withComments))
	assert.Equal(t, Comment, withComments[1].Type)
	assert.Equal(t, Comment, withComments[3].Type)
}

func TestTokens_SingleMinusIsSymbol(t *testing.T) {
	tokens := collect(t, "a-b", false)
	assert.Equal(t, []string{"a", "-", "b"}, values(tokens))
	assert.Equal(t, Symbol, tokens[1].Type)
}

func TestTokens_OtherCharacters(t *testing.T) {
	tokens := collect(t, "a # b", false)
	require.Len(t, tokens, 3)
	assert.Equal(t, Other, tokens[1].Type)
	assert.Equal(t, "#", tokens[1].Value)
}

func TestTokens_UnicodeWords(t *testing.T) {
	tokens := collect(t, "café_1 ünïcode", false)
	assert.Equal(t, []string{"café_1", "ünïcode"}, values(tokens))
	assert.Equal(t, 8, tokens[1].Pos.Column)
}

func TestTokens_Restartable(t *testing.T) {
	seq := NewSQLTokenizer(false).Tokens("a b c")

	var first, second []string
	for tok, err := range seq {
		require.NoError(t, err)
		first = append(first, tok.Value)
		if len(first) == 2 {
			break
		}
	}
	for tok, err := range seq {
		require.NoError(t, err)
		second = append(second, tok.Value)
	}

	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, []string{"a", "b", "c"}, second)
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "WORD", Word.String())
	assert.Equal(t, "QUOTED_STRING", QuotedString.String())
	assert.Equal(t, "UNKNOWN", TokenType(0).String())
}
