package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/listener"
	"github.com/roach88/contentql/internal/store"
	"github.com/roach88/contentql/internal/testutil"
)

// Replayer feeds change sets to one listener per index definition. Each
// listener writes to the store through a tee that also records the call,
// so a replay yields both stored values and an operation trace.
//
// A Replayer is not safe for concurrent use; Apply notifies the listeners
// one after the other in index name order.
type Replayer struct {
	listeners []namedListener
	recorder  *testutil.Recorder
	logger    *slog.Logger
}

type namedListener struct {
	index string
	l     change.Listener
}

// ReplayOption configures a Replayer.
type ReplayOption func(*replayConfig)

type replayConfig struct {
	processKey string
	nodeTypes  *change.NodeTypes
	logger     *slog.Logger
	contiguity bool
}

// WithProcessKey sets the local process key of every listener.
func WithProcessKey(key string) ReplayOption {
	return func(c *replayConfig) { c.processKey = key }
}

// WithNodeTypes sets the type hierarchy used to match node types.
func WithNodeTypes(nt *change.NodeTypes) ReplayOption {
	return func(c *replayConfig) { c.nodeTypes = nt }
}

// WithLogger sets the logger for replay progress.
func WithLogger(l *slog.Logger) ReplayOption {
	return func(c *replayConfig) { c.logger = l }
}

// WithContiguityCheck makes listeners reject change sets whose events for
// one node are not adjacent.
func WithContiguityCheck() ReplayOption {
	return func(c *replayConfig) { c.contiguity = true }
}

// NewReplayer creates listeners for defs writing to st. ctx bounds every
// store statement issued by later Apply calls.
func NewReplayer(ctx context.Context, st *store.Store, defs []index.Definition, opts ...ReplayOption) (*Replayer, error) {
	cfg := replayConfig{processKey: testutil.DefaultProcessKey, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	sorted := append([]index.Definition(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	r := &Replayer{recorder: testutil.NewRecorder(), logger: cfg.logger}
	for _, defn := range sorted {
		lopts := []listener.Option{
			listener.WithIndexName(defn.Name),
			listener.WithLocalProcessKey(cfg.processKey),
			listener.WithNodeTypes(cfg.nodeTypes),
		}
		if cfg.contiguity {
			lopts = append(lopts, listener.WithContiguityCheck())
		}

		var l change.Listener
		if defn.HasSingleColumn() {
			ops, err := st.Single(ctx, defn)
			if err != nil {
				return nil, err
			}
			tee := &singleTee{rec: r.recorder.SingleFor(defn.Name), ops: ops}
			l = listener.NewSingleColumn(defn.NodeTypeName, defn.Columns[0].Property, tee, lopts...)
		} else {
			tee := &multiTee{rec: r.recorder.MultiFor(defn.Name), ops: st.Multi(ctx, defn)}
			l = listener.NewMultiColumn(defn.NodeTypeName, defn.ColumnNames(), tee, lopts...)
		}
		r.listeners = append(r.listeners, namedListener{index: defn.Name, l: l})
	}
	return r, nil
}

// Apply notifies every listener of cs. All listeners are notified even if
// some fail; the failures are joined.
func (r *Replayer) Apply(cs change.ChangeSet) error {
	var errs []error
	for _, nl := range r.listeners {
		if err := nl.l.Notify(cs); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", nl.index, err))
		}
	}
	r.logger.Debug("change set replayed",
		"workspace", cs.Workspace,
		"changes", len(cs.Changes),
		"indexes", len(r.listeners),
	)
	return errors.Join(errs...)
}

// Calls returns every index operation issued so far.
func (r *Replayer) Calls() []testutil.Call {
	return r.recorder.Calls()
}

// singleTee records single-column calls and forwards them to the store.
type singleTee struct {
	rec *testutil.SingleRecorder
	ops listener.SingleColumnOperations
}

func (t *singleTee) Start(workspace string, isLocal bool) bool {
	t.rec.Start(workspace, isLocal)
	return t.ops.Start(workspace, isLocal)
}

func (t *singleTee) Add(key change.NodeKey, value change.Property) error {
	_ = t.rec.Add(key, value)
	return t.ops.Add(key, value)
}

func (t *singleTee) Change(key change.NodeKey, newValue, oldValue change.Property) error {
	_ = t.rec.Change(key, newValue, oldValue)
	return t.ops.Change(key, newValue, oldValue)
}

func (t *singleTee) Remove(key change.NodeKey) error {
	_ = t.rec.Remove(key)
	return t.ops.Remove(key)
}

func (t *singleTee) End() error {
	_ = t.rec.End()
	return t.ops.End()
}

// multiTee records multi-column calls and forwards them to the store.
type multiTee struct {
	rec *testutil.MultiRecorder
	ops listener.MultiColumnOperations
}

func (t *multiTee) Start(workspace string, isLocal bool) bool {
	t.rec.Start(workspace, isLocal)
	return t.ops.Start(workspace, isLocal)
}

func (t *multiTee) Add(key change.NodeKey, values []any) error {
	_ = t.rec.Add(key, values)
	return t.ops.Add(key, values)
}

func (t *multiTee) Change(key change.NodeKey, newValues, oldValues []any) error {
	_ = t.rec.Change(key, newValues, oldValues)
	return t.ops.Change(key, newValues, oldValues)
}

func (t *multiTee) Remove(key change.NodeKey) error {
	_ = t.rec.Remove(key)
	return t.ops.Remove(key)
}

func (t *multiTee) End() error {
	_ = t.rec.End()
	return t.ops.End()
}
