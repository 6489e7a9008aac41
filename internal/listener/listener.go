// Package listener keeps indexes current by turning change sets into
// add, change and remove calls on an index's write side.
//
// A listener tracks one node type and one or more properties. For every
// change set it calls Start, then one operation per affected node, then
// End. Listeners are not safe for concurrent use: one instance must not
// be notified from two goroutines at once, although distinct instances
// may run concurrently.
package listener

import (
	"github.com/roach88/contentql/internal/change"
)

// SingleColumnOperations is the write side of an index over one property.
type SingleColumnOperations interface {
	// Start begins a change set. Returning false skips the change set.
	Start(workspace string, isLocal bool) bool
	Add(key change.NodeKey, value change.Property) error
	Change(key change.NodeKey, newValue, oldValue change.Property) error
	Remove(key change.NodeKey) error
	// End finishes a change set that Start accepted.
	End() error
}

// MultiColumnOperations is the write side of an index over several
// properties. Value slices follow the index's column order; an absent
// column is nil, a single value is stored as is and a multi-valued
// property as []any.
type MultiColumnOperations interface {
	Start(workspace string, isLocal bool) bool
	Add(key change.NodeKey, values []any) error
	Change(key change.NodeKey, newValues, oldValues []any) error
	Remove(key change.NodeKey) error
	End() error
}

// Option configures a listener.
type Option func(*config)

type config struct {
	indexName       string
	nodeTypes       *change.NodeTypes
	processKey      string
	checkContiguity bool
}

func newConfig(opts []Option) config {
	cfg := config{processKey: change.NewProcessKey()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithIndexName names the index in logs and metrics.
func WithIndexName(name string) Option {
	return func(c *config) { c.indexName = name }
}

// WithNodeTypes sets the type hierarchy used to accept subtypes of the
// tracked node type. Without it only exact type matches are accepted.
func WithNodeTypes(nt *change.NodeTypes) Option {
	return func(c *config) { c.nodeTypes = nt }
}

// WithLocalProcessKey sets the key of this process. Change sets carrying
// the same process key are reported to Start as local.
func WithLocalProcessKey(key string) Option {
	return func(c *config) { c.processKey = key }
}

// WithContiguityCheck makes Notify reject change sets whose events for one
// node are not adjacent.
func WithContiguityCheck() Option {
	return func(c *config) { c.checkContiguity = true }
}

func (c config) isLocal(cs change.ChangeSet) bool {
	return cs.ProcessKey == c.processKey
}

// node returns the node of a change when the node satisfies nodeType.
func (c config) node(ch change.Change, nodeType string) (change.NodeChange, bool) {
	nc, ok := ch.(change.NodeChange)
	if !ok {
		return nil, false
	}
	primary, mixins := nc.Types()
	return nc, c.nodeTypes.Matches(primary, mixins, nodeType)
}

// columnValue converts a property to a MultiColumnOperations value.
func columnValue(p change.Property) any {
	switch len(p.Values) {
	case 0:
		return nil
	case 1:
		return p.Values[0]
	default:
		return append([]any(nil), p.Values...)
	}
}
