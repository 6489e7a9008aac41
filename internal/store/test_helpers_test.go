package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/types"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// titleIndex is a single-column STRING index.
func titleIndex() index.Definition {
	return index.Definition{
		Name:         "titles",
		ProviderName: DefaultProviderName,
		Kind:         index.Duplicates,
		NodeTypeName: "app:page",
		Columns:      []index.ColumnDefinition{{Property: "title", Type: types.String}},
		Enabled:      true,
	}
}

// pageIndex is a multi-column index over title and rank.
func pageIndex() index.Definition {
	return index.Definition{
		Name:         "pages",
		ProviderName: DefaultProviderName,
		Kind:         index.Duplicates,
		NodeTypeName: "app:page",
		Columns: []index.ColumnDefinition{
			{Property: "title", Type: types.String},
			{Property: "rank", Type: types.Long},
		},
		Enabled: true,
	}
}

// addTitles stores one title per node in a single change set.
func addTitles(t *testing.T, s *Store, workspace string, titles map[change.NodeKey]string) {
	t.Helper()
	ops, err := s.Single(context.Background(), titleIndex())
	if err != nil {
		t.Fatalf("Single() failed: %v", err)
	}
	if !ops.Start(workspace, true) {
		t.Fatal("Start() rejected workspace")
	}
	for key, title := range titles {
		if err := ops.Add(key, change.NewProperty("title", title)); err != nil {
			t.Fatalf("Add(%s) failed: %v", key, err)
		}
	}
	if err := ops.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
}
