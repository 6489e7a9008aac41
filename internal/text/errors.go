package text

import (
	"errors"
	"fmt"
)

// ParsingError reports malformed query text.
//
// It always carries the position of the offending token. A ParsingError is
// fatal to the parse that raised it: no partial result is returned.
type ParsingError struct {
	Pos     Position
	Message string
}

// Error implements the error interface.
func (e *ParsingError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// NewParsingError creates a ParsingError at pos with a formatted message.
func NewParsingError(pos Position, format string, args ...any) *ParsingError {
	return &ParsingError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// IsParsingError returns true if err is, or wraps, a ParsingError.
func IsParsingError(err error) bool {
	var pe *ParsingError
	return errors.As(err, &pe)
}
