package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// DefaultBatchSize is used when a caller asks for a batch of size zero.
const DefaultBatchSize = 100

// DefaultProviderName is the provider name the store registers under.
const DefaultProviderName = "sqlite"

// Store keeps index definitions and values in SQLite. It is the index
// provider named "sqlite" and implements the write-side operations of the
// single- and multi-column listeners.
type Store struct {
	db        *sql.DB
	types     types.TypeSystem
	name      string
	cost      int
	batchSize int
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets the batch size used when callers pass zero.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithTypeSystem sets the type system used to canonicalize values.
func WithTypeSystem(ts types.TypeSystem) Option {
	return func(s *Store) { s.types = ts }
}

// WithProviderName sets the name the store reports as an index provider.
func WithProviderName(name string) Option {
	return func(s *Store) { s.name = name }
}

// WithCost sets the cost reported for each use of one of the store's
// indexes.
func WithCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// Open opens the index database at path, creating it when missing, and
// brings its schema up to date. Opening an existing database again is
// harmless.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:        db,
		types:     types.NewStandard(),
		name:      DefaultProviderName,
		cost:      index.LocalCost,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, pragmas are per
	// connection and an in-memory database lives only as long as its
	// connection does.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	setup := []struct {
		what string
		fn   func(*sql.DB) error
	}{
		{"connect to database", func(db *sql.DB) error { return db.Ping() }},
		{"configure connection", configure},
		{"create tables", func(db *sql.DB) error { _, err := db.Exec(schemaSQL); return err }},
		{"migrate", migrate},
	}
	for _, step := range setup {
		if err := step.fn(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to %s: %w", step.what, err)
		}
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// connectionPragmas are applied to the connection before any statement.
// case_sensitive_like makes LIKE match the index's comparison rules.
var connectionPragmas = []string{
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"busy_timeout = 5000",
	"case_sensitive_like = ON",
}

func configure(db *sql.DB) error {
	for _, p := range connectionPragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			return fmt.Errorf("PRAGMA %s: %w", p, err)
		}
	}
	return nil
}

// migrations upgrade a database from user_version i to i+1.
var migrations = []string{
	// 1: lookup index for value comparisons
	`CREATE INDEX IF NOT EXISTS idx_index_values_lookup
		ON index_values(index_name, workspace, column_pos, value_text)`,
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("migration %d: set user_version: %w", v+1, err)
		}
	}
	return nil
}

// pragma returns the current value of a pragma on the store's connection.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}
