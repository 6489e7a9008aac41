package store

import (
	"context"
	"fmt"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/querysql"
)

// Name returns the provider name of the store.
func (s *Store) Name() string { return s.name }

// Cost returns the cost reported for each use of one of the store's indexes.
func (s *Store) Cost() int { return s.cost }

// EstimateTotalCount returns the number of nodes with a value in the index.
func (s *Store) EstimateTotalCount(ctx context.Context, defn index.Definition, workspace string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT node_key) FROM index_values
		WHERE index_name = ? AND workspace = ?
	`, defn.Name, workspace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", defn.Name, err)
	}
	return n, nil
}

// EstimateCardinality counts the nodes satisfying every constraint. The
// count is exact.
func (s *Store) EstimateCardinality(ctx context.Context, defn index.Definition, workspace string, constraints []model.Constraint, vars map[string]any) (int64, error) {
	where, params, err := querysql.NewCompiler(defn, s.types, vars).Where(workspace, constraints)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT e.node_key) FROM index_values e WHERE "+where, params...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("cardinality of %q: %w", defn.Name, err)
	}
	return n, nil
}

// Filter returns a cursor over the nodes satisfying every constraint, in
// key order. The constraints are compiled once; each batch re-runs the
// query from the last key returned.
func (s *Store) Filter(_ context.Context, defn index.Definition, workspace string, constraints []model.Constraint, vars map[string]any) (index.Results, error) {
	where, params, err := querysql.NewCompiler(defn, s.types, vars).Where(workspace, constraints)
	if err != nil {
		return nil, err
	}
	return &results{s: s, where: where, params: params}, nil
}

// NodeValues returns the stored text values of a node by column.
func (s *Store) NodeValues(ctx context.Context, defn index.Definition, workspace string, key change.NodeKey) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_pos, value_text FROM index_values
		WHERE index_name = ? AND workspace = ? AND node_key = ?
		ORDER BY column_pos ASC, value_pos ASC
	`, defn.Name, workspace, string(key))
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	out := make([][]string, len(defn.Columns))
	for rows.Next() {
		var col int
		var text string
		if err := rows.Scan(&col, &text); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if col >= 0 && col < len(out) {
			out[col] = append(out[col], text)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return out, nil
}

// results pages through a compiled index query by node key.
type results struct {
	s      *Store
	where  string
	params []any
	last   string
	done   bool
}

func (r *results) GetNextBatch(ctx context.Context, w index.ResultWriter, batchSize int) (bool, error) {
	if r.done {
		return false, nil
	}
	if batchSize <= 0 {
		batchSize = r.s.batchSize
	}
	// One extra row tells whether another batch follows.
	args := append(append([]any{}, r.params...), r.last, batchSize+1)
	rows, err := r.s.db.QueryContext(ctx, "SELECT DISTINCT e.node_key FROM index_values e WHERE "+r.where+
		" AND e.node_key > ? ORDER BY e.node_key COLLATE BINARY LIMIT ?", args...)
	if err != nil {
		return false, fmt.Errorf("query batch: %w", err)
	}
	defer rows.Close()

	var keys []change.NodeKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return false, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, change.NodeKey(key))
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate keys: %w", err)
	}

	more := len(keys) > batchSize
	if more {
		keys = keys[:batchSize]
	}
	if len(keys) > 0 {
		r.last = string(keys[len(keys)-1])
	}
	w.AddAll(keys, 1)
	r.done = !more
	return more, nil
}

func (r *results) Close() error {
	r.done = true
	return nil
}
