package text

import "fmt"

// Position is a location within a piece of text.
//
// Index is the 0-based rune offset; Line and Column are 1-based.
type Position struct {
	Index  int `json:"index"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// EmptyPosition is the position of the first character in a text.
var EmptyPosition = Position{Index: 0, Line: 1, Column: 1}

// Add translates a position that is relative to the text starting at p into
// a position relative to the text containing p.
//
// Used to map errors raised by an embedded parser (for example the full-text
// expression inside CONTAINS) back onto the enclosing query.
func (p Position) Add(rel Position) Position {
	if rel.Line <= 1 {
		return Position{
			Index:  p.Index + rel.Index,
			Line:   p.Line,
			Column: p.Column + rel.Column - 1,
		}
	}
	return Position{
		Index:  p.Index + rel.Index,
		Line:   p.Line + rel.Line - 1,
		Column: rel.Column,
	}
}

// String renders the position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
