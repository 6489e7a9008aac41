package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/contentql/internal/index"
)

// marshalDefinition converts a definition to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what users wrote.
func marshalDefinition(defn index.Definition) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(defn); err != nil {
		return "", fmt.Errorf("marshal definition: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalDefinition parses JSON TEXT to a definition.
func unmarshalDefinition(data string) (index.Definition, error) {
	var defn index.Definition
	if err := json.Unmarshal([]byte(data), &defn); err != nil {
		return index.Definition{}, fmt.Errorf("unmarshal definition: %w", err)
	}
	return defn, nil
}

// SaveDefinition stores defn, replacing any definition with the same name.
func (s *Store) SaveDefinition(ctx context.Context, defn index.Definition) error {
	if err := defn.Validate(); err != nil {
		return err
	}
	data, err := marshalDefinition(defn)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO index_definitions (name, provider, kind, node_type, definition)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			provider = excluded.provider,
			kind = excluded.kind,
			node_type = excluded.node_type,
			definition = excluded.definition
	`, defn.Name, defn.ProviderName, string(defn.Kind), defn.NodeTypeName, data)
	if err != nil {
		return fmt.Errorf("save definition %q: %w", defn.Name, err)
	}
	return nil
}

// LoadDefinitions returns every stored definition ordered by name.
func (s *Store) LoadDefinitions(ctx context.Context) ([]index.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT definition FROM index_definitions
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	defs := []index.Definition{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defn, err := unmarshalDefinition(data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, defn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}

// DeleteDefinition removes a definition and every value of its index.
func (s *Store) DeleteDefinition(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete definition: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `DELETE FROM index_definitions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete definition %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &index.NoSuchIndexError{Name: name}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_values WHERE index_name = ?`, name); err != nil {
		return fmt.Errorf("delete values of %q: %w", name, err)
	}
	return tx.Commit()
}
