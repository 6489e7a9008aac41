package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/querysql"
)

// errNotStarted is returned by operations called outside Start and End.
var errNotStarted = errors.New("index operation outside a change set")

// writer holds the transaction of the change set being applied to one
// index. It is not safe for concurrent use, like the listener driving it.
type writer struct {
	s    *Store
	ctx  context.Context
	defn index.Definition

	workspace string
	tx        *sql.Tx
	// err is the first failure of the change set; once set every later
	// operation returns it and End rolls back.
	err error
}

func (w *writer) start(workspace string, isLocal bool) bool {
	if !w.defn.Enabled || !w.defn.UsedInWorkspace(workspace) {
		slog.Debug("index skips workspace", "index", w.defn.Name, "workspace", workspace)
		return false
	}
	w.workspace = workspace
	w.err = nil
	tx, err := w.s.db.BeginTx(w.ctx, nil)
	if err != nil {
		w.err = fmt.Errorf("begin tx: %w", err)
		return true
	}
	w.tx = tx
	slog.Debug("index change set", "index", w.defn.Name, "workspace", workspace, "local", isLocal)
	return true
}

func (w *writer) end() error {
	tx := w.tx
	w.tx = nil
	if tx == nil {
		if w.err != nil {
			return w.err
		}
		return errNotStarted
	}
	if w.err != nil {
		_ = tx.Rollback()
		return w.err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// exec runs one statement in the change set's transaction.
func (w *writer) exec(query string, args ...any) error {
	if w.err != nil {
		return w.err
	}
	if w.tx == nil {
		return errNotStarted
	}
	if _, err := w.tx.ExecContext(w.ctx, query, args...); err != nil {
		w.err = fmt.Errorf("index %q: %w", w.defn.Name, err)
		return w.err
	}
	return nil
}

func (w *writer) fail(err error) error {
	if w.err == nil {
		w.err = fmt.Errorf("index %q: %w", w.defn.Name, err)
	}
	return w.err
}

func (w *writer) deleteNode(key change.NodeKey) error {
	return w.exec(`
		DELETE FROM index_values
		WHERE index_name = ? AND workspace = ? AND node_key = ?
	`, w.defn.Name, w.workspace, string(key))
}

func (w *writer) deleteColumn(key change.NodeKey, col int) error {
	return w.exec(`
		DELETE FROM index_values
		WHERE index_name = ? AND workspace = ? AND node_key = ? AND column_pos = ?
	`, w.defn.Name, w.workspace, string(key), col)
}

// insertColumn stores every value of one column of a node.
func (w *writer) insertColumn(key change.NodeKey, col int, values []any) error {
	typeName := w.defn.Columns[col].Type
	for pos, raw := range values {
		if raw == nil {
			continue
		}
		v, err := querysql.EncodeValue(w.s.types, typeName, raw)
		if err != nil {
			return w.fail(fmt.Errorf("column %q of node %s: %w", w.defn.Columns[col].Property, key, err))
		}
		err = w.exec(`
			INSERT INTO index_values
			(index_name, workspace, node_key, column_pos, value_pos, value_text, value_num)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(index_name, workspace, node_key, column_pos, value_pos)
			DO UPDATE SET value_text = excluded.value_text, value_num = excluded.value_num
		`, w.defn.Name, w.workspace, string(key), col, pos, v.Text, v.Num)
		if err != nil {
			return err
		}
	}
	return nil
}

// SingleOps writes a single-column index.
type SingleOps struct {
	w writer
}

// Single returns the write side of a single-column index. ctx bounds
// every statement of every change set applied through the result.
func (s *Store) Single(ctx context.Context, defn index.Definition) (*SingleOps, error) {
	if !defn.HasSingleColumn() {
		return nil, fmt.Errorf("index %q has %d columns, want 1", defn.Name, len(defn.Columns))
	}
	return &SingleOps{w: writer{s: s, ctx: ctx, defn: defn}}, nil
}

func (o *SingleOps) Start(workspace string, isLocal bool) bool {
	return o.w.start(workspace, isLocal)
}

// Add stores every value of the property, replacing what was stored.
func (o *SingleOps) Add(key change.NodeKey, value change.Property) error {
	if err := o.w.deleteNode(key); err != nil {
		return err
	}
	return o.w.insertColumn(key, 0, value.Values)
}

func (o *SingleOps) Change(key change.NodeKey, newValue, _ change.Property) error {
	return o.Add(key, newValue)
}

func (o *SingleOps) Remove(key change.NodeKey) error {
	return o.w.deleteNode(key)
}

func (o *SingleOps) End() error {
	return o.w.end()
}

// MultiOps writes a multi-column index.
type MultiOps struct {
	w writer
}

// Multi returns the write side of a multi-column index.
func (s *Store) Multi(ctx context.Context, defn index.Definition) *MultiOps {
	return &MultiOps{w: writer{s: s, ctx: ctx, defn: defn}}
}

func (o *MultiOps) Start(workspace string, isLocal bool) bool {
	return o.w.start(workspace, isLocal)
}

// Add stores the present columns of a node, replacing what was stored.
func (o *MultiOps) Add(key change.NodeKey, values []any) error {
	if err := o.w.deleteNode(key); err != nil {
		return err
	}
	return o.columns(key, values, nil)
}

// Change rewrites the columns with a new value and clears the columns
// that only lost their old value. Other columns are kept.
func (o *MultiOps) Change(key change.NodeKey, newValues, oldValues []any) error {
	return o.columns(key, newValues, oldValues)
}

func (o *MultiOps) columns(key change.NodeKey, newValues, oldValues []any) error {
	if len(newValues) > len(o.w.defn.Columns) {
		return o.w.fail(fmt.Errorf("%d values for %d columns", len(newValues), len(o.w.defn.Columns)))
	}
	for col := range o.w.defn.Columns {
		var nv, ov any
		if col < len(newValues) {
			nv = newValues[col]
		}
		if col < len(oldValues) {
			ov = oldValues[col]
		}
		switch {
		case nv != nil:
			if err := o.w.deleteColumn(key, col); err != nil {
				return err
			}
			if err := o.w.insertColumn(key, col, valueList(nv)); err != nil {
				return err
			}
		case ov != nil:
			if err := o.w.deleteColumn(key, col); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *MultiOps) Remove(key change.NodeKey) error {
	return o.w.deleteNode(key)
}

func (o *MultiOps) End() error {
	return o.w.end()
}

// valueList expands a multi-column value into its individual values.
func valueList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
