package listener

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/contentql/internal/change"
)

// MultiColumn applies changes to several properties of one node type.
//
// Property events for one node are gathered until the change set moves on
// to another node, then issued as a single operation. This relies on the
// events for each node being contiguous within a change set.
type MultiColumn struct {
	nodeType   string
	properties []string
	ops        MultiColumnOperations
	cfg        config

	// pending holds the values gathered for the current node.
	pending pending
}

type pending struct {
	key     change.NodeKey
	active  bool
	newVals []any
	oldVals []any
	sawNew  bool
	sawOld  bool
}

// NewMultiColumn returns a listener tracking properties, in index column
// order, on nodes of nodeType.
func NewMultiColumn(nodeType string, properties []string, ops MultiColumnOperations, opts ...Option) *MultiColumn {
	cfg := newConfig(opts)
	if cfg.indexName == "" {
		cfg.indexName = nodeType
	}
	return &MultiColumn{
		nodeType:   nodeType,
		properties: slices.Clone(properties),
		ops:        ops,
		cfg:        cfg,
	}
}

// Notify applies one change set. End is called exactly once when Start
// accepted the change set, even when an operation fails.
func (l *MultiColumn) Notify(cs change.ChangeSet) (err error) {
	if l.cfg.checkContiguity {
		if err := change.CheckContiguous(cs); err != nil {
			return err
		}
	}
	if !l.ops.Start(cs.Workspace, l.cfg.isLocal(cs)) {
		changeSetsSkipped.WithLabelValues(l.cfg.indexName).Inc()
		return nil
	}
	defer func() {
		l.pending = pending{}
		if endErr := l.ops.End(); endErr != nil {
			err = errors.Join(err, fmt.Errorf("index %s: end: %w", l.cfg.indexName, endErr))
		}
	}()

	for _, ch := range cs.Changes {
		if err := l.apply(ch); err != nil {
			return fmt.Errorf("index %s: %w", l.cfg.indexName, err)
		}
	}
	if err := l.flush(); err != nil {
		return fmt.Errorf("index %s: %w", l.cfg.indexName, err)
	}
	return nil
}

func (l *MultiColumn) apply(ch change.Change) error {
	nc, ok := l.cfg.node(ch, l.nodeType)
	if !ok {
		return nil
	}
	key := nc.Key()
	if l.pending.active && l.pending.key != key {
		if err := l.flush(); err != nil {
			return err
		}
	}

	switch c := ch.(type) {
	case change.NodeAdded:
		l.pending = pending{}
		// Absent tracked properties stay nil; the node is added even when
		// it has none of them.
		values := make([]any, len(l.properties))
		for i, name := range l.properties {
			if p, ok := c.Properties[name]; ok {
				values[i] = columnValue(p)
			}
		}
		return l.add(key, values)
	case change.NodeRemoved:
		l.pending = pending{}
		return l.remove(key)
	case change.PropertyAdded:
		if i := l.column(c.Property.Name); i >= 0 {
			l.buffer(key).newVals[i] = columnValue(c.Property)
			l.pending.sawNew = true
		}
	case change.PropertyChanged:
		if i := l.column(c.New.Name); i >= 0 {
			b := l.buffer(key)
			b.newVals[i] = columnValue(c.New)
			b.oldVals[i] = columnValue(c.Old)
			b.sawNew, b.sawOld = true, true
		}
	case change.PropertyRemoved:
		if i := l.column(c.Property.Name); i >= 0 {
			l.buffer(key).oldVals[i] = columnValue(c.Property)
			l.pending.sawOld = true
		}
	}
	return nil
}

func (l *MultiColumn) column(name string) int {
	return slices.Index(l.properties, name)
}

// buffer returns the pending values for key, starting a new buffer when
// none is active.
func (l *MultiColumn) buffer(key change.NodeKey) *pending {
	if !l.pending.active {
		l.pending = pending{
			key:     key,
			active:  true,
			newVals: make([]any, len(l.properties)),
			oldVals: make([]any, len(l.properties)),
		}
	}
	return &l.pending
}

// flush issues the operation for the buffered node and resets the buffer.
func (l *MultiColumn) flush() error {
	p := l.pending
	l.pending = pending{}
	if !p.active {
		return nil
	}
	switch {
	case p.sawNew && !p.sawOld:
		return l.add(p.key, p.newVals)
	case p.sawNew:
		recordOperation(l.cfg.indexName, "change")
		slog.Debug("index change", "index", l.cfg.indexName, "node", p.key)
		return l.ops.Change(p.key, p.newVals, p.oldVals)
	case p.sawOld:
		return l.remove(p.key)
	}
	return nil
}

func (l *MultiColumn) add(key change.NodeKey, values []any) error {
	recordOperation(l.cfg.indexName, "add")
	slog.Debug("index add", "index", l.cfg.indexName, "node", key)
	return l.ops.Add(key, values)
}

func (l *MultiColumn) remove(key change.NodeKey) error {
	recordOperation(l.cfg.indexName, "remove")
	slog.Debug("index remove", "index", l.cfg.indexName, "node", key)
	return l.ops.Remove(key)
}
