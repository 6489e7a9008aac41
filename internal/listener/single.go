package listener

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/contentql/internal/change"
)

// SingleColumn applies changes to one property of one node type.
type SingleColumn struct {
	nodeType string
	property string
	ops      SingleColumnOperations
	cfg      config
}

// NewSingleColumn returns a listener tracking property on nodes of
// nodeType.
func NewSingleColumn(nodeType, property string, ops SingleColumnOperations, opts ...Option) *SingleColumn {
	cfg := newConfig(opts)
	if cfg.indexName == "" {
		cfg.indexName = nodeType + "." + property
	}
	return &SingleColumn{nodeType: nodeType, property: property, ops: ops, cfg: cfg}
}

// Notify applies one change set. End is called exactly once when Start
// accepted the change set, even when an operation fails.
func (l *SingleColumn) Notify(cs change.ChangeSet) (err error) {
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
		if endErr := l.ops.End(); endErr != nil {
			err = errors.Join(err, fmt.Errorf("index %s: end: %w", l.cfg.indexName, endErr))
		}
	}()

	for _, ch := range cs.Changes {
		if err := l.apply(ch); err != nil {
			return fmt.Errorf("index %s: %w", l.cfg.indexName, err)
		}
	}
	return nil
}

func (l *SingleColumn) apply(ch change.Change) error {
	nc, ok := l.cfg.node(ch, l.nodeType)
	if !ok {
		return nil
	}
	key := nc.Key()
	switch c := ch.(type) {
	case change.NodeAdded:
		if p, ok := c.Properties[l.property]; ok {
			return l.add(key, p)
		}
	case change.NodeRemoved:
		return l.remove(key)
	case change.PropertyAdded:
		if c.Property.Name == l.property {
			return l.add(key, c.Property)
		}
	case change.PropertyChanged:
		if c.New.Name == l.property {
			recordOperation(l.cfg.indexName, "change")
			slog.Debug("index change", "index", l.cfg.indexName, "node", key)
			return l.ops.Change(key, c.New, c.Old)
		}
	case change.PropertyRemoved:
		if c.Property.Name == l.property {
			return l.remove(key)
		}
	}
	return nil
}

func (l *SingleColumn) add(key change.NodeKey, p change.Property) error {
	recordOperation(l.cfg.indexName, "add")
	slog.Debug("index add", "index", l.cfg.indexName, "node", key)
	return l.ops.Add(key, p)
}

func (l *SingleColumn) remove(key change.NodeKey) error {
	recordOperation(l.cfg.indexName, "remove")
	slog.Debug("index remove", "index", l.cfg.indexName, "node", key)
	return l.ops.Remove(key)
}
