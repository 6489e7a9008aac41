package schemata

import (
	"errors"
	"fmt"
)

// ErrUnresolved marks a view definition that references a table or view
// the schema does not (yet) contain.
var ErrUnresolved = errors.New("unresolved reference")

// ArgumentError reports an invalid argument passed to a Builder method.
type ArgumentError struct {
	Method   string
	Argument string
	Message  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Argument, e.Message)
}

// IsArgumentError returns true if err is, or wraps, an ArgumentError.
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
