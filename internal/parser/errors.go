package parser

import (
	"errors"
	"fmt"
)

// InvalidQueryError reports a query that parses but cannot be used, such
// as a view definition that does not resolve against the schemata.
type InvalidQueryError struct {
	// Query is the query text, or its readable form when the query was
	// built from a model rather than parsed.
	Query   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid query %q: %s: %v", e.Query, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *InvalidQueryError) Unwrap() error {
	return e.Err
}

// IsInvalidQuery returns true if err is, or wraps, an InvalidQueryError.
func IsInvalidQuery(err error) bool {
	var iq *InvalidQueryError
	return errors.As(err, &iq)
}
