package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/store"
	"github.com/roach88/contentql/internal/types"
)

// AssertionContext gives assertions access to the replayed indexes.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Registry *index.Registry
	Types    types.TypeSystem
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	// Trace is the trace of the index the assertion is about.
	Trace []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nIndex trace:\n")
		for i, line := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. It does not stop at the first failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	trace := result.IndexTrace(a.Index)
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertStoredValues:
		return assertStoredValues(actx, a)
	case AssertQuery:
		return assertQuery(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks if the index trace contains the line.
func assertTraceContains(trace []string, a Assertion) error {
	if slices.Contains(trace, a.Line) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s: %s", a.Index, a.Line),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the lines appear in order. Lines need not
// be consecutive, and each line is matched after the previous match.
func assertTraceOrder(trace []string, a Assertion) error {
	pos := 0
	for _, want := range a.Lines {
		i := slices.Index(trace[pos:], want)
		if i < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("lines in order: %q", a.Lines),
				Actual:   fmt.Sprintf("%q not found after position %d", want, pos),
				Trace:    trace,
			}
		}
		pos += i + 1
	}
	return nil
}

// assertTraceCount checks that the operation happens exactly Count times.
func assertTraceCount(trace []string, a Assertion) error {
	count := 0
	for _, line := range trace {
		if op, _, _ := strings.Cut(line, " "); op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s operations on %s", a.Count, a.Op, a.Index),
			Actual:   fmt.Sprintf("%d operations", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStoredValues compares the values stored for a node by column.
func assertStoredValues(actx *AssertionContext, a Assertion) error {
	defn, err := actx.Registry.Definition(a.Index)
	if err != nil {
		return err
	}
	got, err := actx.Store.NodeValues(actx.Ctx, defn, workspace(a), change.NodeKey(a.Key))
	if err != nil {
		return err
	}

	want := make([][]string, len(defn.Columns))
	copy(want, a.Values)
	if !slices.EqualFunc(want, got, func(x, y []string) bool { return slices.Equal(x, y) }) {
		return &AssertionError{
			Type:     AssertStoredValues,
			Expected: fmt.Sprintf("%s of %s = %q", a.Key, a.Index, want),
			Actual:   fmt.Sprintf("%q", got),
		}
	}
	return nil
}

// assertQuery filters the index with the WHERE clause of a query and
// compares the returned node keys.
func assertQuery(actx *AssertionContext, a Assertion) error {
	cmd, err := parser.ParseQuery(a.Query, actx.Types)
	if err != nil {
		return err
	}
	q, ok := cmd.(model.Query)
	if !ok {
		return fmt.Errorf("query assertions take a single SELECT, got %s", model.Readable(cmd))
	}

	res, err := actx.Registry.Filter(actx.Ctx, a.Index, workspace(a), index.AndedConstraints(q.Constraint), a.Variables)
	if err != nil {
		return err
	}
	hits, err := index.Collect(actx.Ctx, res, 0)
	if err != nil {
		return err
	}
	got := make([]string, len(hits))
	for i, h := range hits {
		got[i] = string(h.Key)
	}
	if !slices.Equal(got, a.Expect) {
		return &AssertionError{
			Type:     AssertQuery,
			Expected: fmt.Sprintf("%s returns %q", a.Index, a.Expect),
			Actual:   fmt.Sprintf("%q", got),
		}
	}
	return nil
}

func workspace(a Assertion) string {
	if a.Workspace == "" {
		return DefaultWorkspace
	}
	return a.Workspace
}
