package validate

import (
	"fmt"
	"strings"
)

// Code classifies a validation problem.
type Code string

const (
	UnknownSelector    Code = "unknown-selector"
	UnknownTable       Code = "unknown-table"
	UnknownColumn      Code = "unknown-column"
	OperatorNotAllowed Code = "operator-not-allowed"
	NotOrderable       Code = "not-orderable"
	NotSearchable      Code = "not-searchable"
	NonNumericOperand  Code = "non-numeric-operand"
)

// Problem is one violation found in a query.
type Problem struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Code, p.Message)
}

// Problems accumulates the problems found in one query. A problem is
// recorded once even when several nodes report it.
type Problems struct {
	list []Problem
	seen map[Problem]bool
}

func (p *Problems) add(code Code, format string, args ...any) {
	problem := Problem{Code: code, Message: fmt.Sprintf(format, args...)}
	if p.seen == nil {
		p.seen = make(map[Problem]bool)
	}
	if p.seen[problem] {
		return
	}
	p.seen[problem] = true
	p.list = append(p.list, problem)
}

// List returns the problems in the order they were found.
func (p *Problems) List() []Problem {
	out := make([]Problem, len(p.list))
	copy(out, p.list)
	return out
}

// Len returns the number of problems.
func (p *Problems) Len() int { return len(p.list) }

// HasErrors reports whether any problem was found.
func (p *Problems) HasErrors() bool { return len(p.list) > 0 }

// Count returns the number of problems with the given code.
func (p *Problems) Count(code Code) int {
	n := 0
	for _, problem := range p.list {
		if problem.Code == code {
			n++
		}
	}
	return n
}

// Err returns nil when there are no problems and an *Error listing them
// otherwise.
func (p *Problems) Err() error {
	if len(p.list) == 0 {
		return nil
	}
	return &Error{Problems: p.List()}
}

// Error reports a query rejected by validation.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return fmt.Sprintf("query has %d problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}
