package testutil

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/contentql/internal/change"
)

// Call is one recorded index operation.
type Call struct {
	Seq       int64          `json:"seq" yaml:"seq"`
	Index     string         `json:"index,omitempty" yaml:"index,omitempty"`
	Op        string         `json:"op" yaml:"op"`
	Workspace string         `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Local     bool           `json:"local,omitempty" yaml:"local,omitempty"`
	Key       change.NodeKey `json:"key,omitempty" yaml:"key,omitempty"`
	New       any            `json:"new,omitempty" yaml:"new,omitempty"`
	Old       any            `json:"old,omitempty" yaml:"old,omitempty"`
}

// String renders the call on one line, omitting the sequence number.
func (c Call) String() string {
	switch c.Op {
	case "start":
		return fmt.Sprintf("start %s local=%t", c.Workspace, c.Local)
	case "end":
		return "end"
	case "remove":
		return fmt.Sprintf("remove %s", c.Key)
	case "change":
		return fmt.Sprintf("change %s new=%s old=%s", c.Key, render(c.New), render(c.Old))
	default:
		return fmt.Sprintf("%s %s %s", c.Op, c.Key, render(c.New))
	}
}

func render(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case change.Property:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = render(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

// Recorder keeps the index operations it receives in order.
//
// Single and Multi return views implementing the single- and multi-column
// operation interfaces over the same call log.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	seq   *Sequence
	calls []Call

	// Accept decides whether Start accepts a workspace. Nil accepts all.
	Accept func(workspace string) bool
	// Fail makes the named operation return an error.
	Fail map[string]error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{seq: NewSequence()}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Seq = r.seq.Next()
	r.calls = append(r.calls, c)
	return r.Fail[c.Op]
}

func (r *Recorder) start(index, workspace string, isLocal bool) bool {
	ok := r.Accept == nil || r.Accept(workspace)
	_ = r.record(Call{Index: index, Op: "start", Workspace: workspace, Local: isLocal})
	return ok
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Trace returns the calls rendered one per line.
func (r *Recorder) Trace() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Ops returns the operation names in call order.
func (r *Recorder) Ops() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

// Reset discards every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.seq.Reset()
}

// Single returns the recorder as single-column operations.
func (r *Recorder) Single() *SingleRecorder { return r.SingleFor("") }

// SingleFor returns single-column operations whose calls are tagged with
// an index name, so that several indexes can share one call log.
func (r *Recorder) SingleFor(index string) *SingleRecorder { return &SingleRecorder{r, index} }

// Multi returns the recorder as multi-column operations.
func (r *Recorder) Multi() *MultiRecorder { return r.MultiFor("") }

// MultiFor is the multi-column counterpart of SingleFor.
func (r *Recorder) MultiFor(index string) *MultiRecorder { return &MultiRecorder{r, index} }

// SingleRecorder records single-column operations.
type SingleRecorder struct {
	r     *Recorder
	index string
}

func (s *SingleRecorder) Start(workspace string, isLocal bool) bool {
	return s.r.start(s.index, workspace, isLocal)
}

func (s *SingleRecorder) Add(key change.NodeKey, value change.Property) error {
	return s.r.record(Call{Index: s.index, Op: "add", Key: key, New: value})
}

func (s *SingleRecorder) Change(key change.NodeKey, newValue, oldValue change.Property) error {
	return s.r.record(Call{Index: s.index, Op: "change", Key: key, New: newValue, Old: oldValue})
}

func (s *SingleRecorder) Remove(key change.NodeKey) error {
	return s.r.record(Call{Index: s.index, Op: "remove", Key: key})
}

func (s *SingleRecorder) End() error {
	return s.r.record(Call{Index: s.index, Op: "end"})
}

// MultiRecorder records multi-column operations.
type MultiRecorder struct {
	r     *Recorder
	index string
}

func (m *MultiRecorder) Start(workspace string, isLocal bool) bool {
	return m.r.start(m.index, workspace, isLocal)
}

func (m *MultiRecorder) Add(key change.NodeKey, values []any) error {
	return m.r.record(Call{Index: m.index, Op: "add", Key: key, New: slices.Clone(values)})
}

func (m *MultiRecorder) Change(key change.NodeKey, newValues, oldValues []any) error {
	return m.r.record(Call{Index: m.index, Op: "change", Key: key, New: slices.Clone(newValues), Old: slices.Clone(oldValues)})
}

func (m *MultiRecorder) Remove(key change.NodeKey) error {
	return m.r.record(Call{Index: m.index, Op: "remove", Key: key})
}

func (m *MultiRecorder) End() error {
	return m.r.record(Call{Index: m.index, Op: "end"})
}
