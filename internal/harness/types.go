package harness

import (
	"fmt"

	"github.com/roach88/contentql/internal/testutil"
)

// TraceEvent is one index operation of a replay.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Index string `json:"index"`
	Line  string `json:"line"`
}

// String renders the event as "index: line".
func (e TraceEvent) String() string {
	return fmt.Sprintf("%s: %s", e.Index, e.Line)
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists every index operation in call order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCalls appends recorded calls to the trace.
func (r *Result) AddCalls(calls []testutil.Call) {
	for _, c := range calls {
		r.Trace = append(r.Trace, TraceEvent{Seq: c.Seq, Index: c.Index, Line: c.String()})
	}
}

// IndexTrace returns the trace lines of one index, in order.
func (r *Result) IndexTrace(name string) []string {
	var lines []string
	for _, e := range r.Trace {
		if e.Index == name {
			lines = append(lines, e.Line)
		}
	}
	return lines
}
