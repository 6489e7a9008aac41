// Package index describes secondary indexes and the protocols an index
// provider uses during planning and retrieval.
//
// A Definition says what an index covers. During planning a provider
// reports candidate usages with their cost to a CostCollector; during
// execution it returns matching node keys in batches through Results.
package index

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is what an index guarantees or targets.
type Kind string

const (
	// Duplicates is a plain value index that tolerates repeated values.
	Duplicates     Kind = "DUPLICATES"
	Unique         Kind = "UNIQUE"
	Enumerated     Kind = "ENUMERATED"
	FullTextSearch Kind = "FULLTEXTSEARCH"
	// NodeType indexes the node types of every node.
	NodeType Kind = "NODETYPE"
)

// Kinds lists every index kind.
var Kinds = []Kind{Duplicates, Unique, Enumerated, FullTextSearch, NodeType}

// ParseKind returns the kind with the given name, ignoring case.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(Kinds, k) {
		return k, true
	}
	return "", false
}

// ColumnDefinition is one indexed property.
type ColumnDefinition struct {
	Property string `json:"property" yaml:"property"`
	Type     string `json:"type" yaml:"type"`
}

// Definition describes one index. Definitions are values; a changed
// definition is registered as a new value.
type Definition struct {
	Name         string             `json:"name" yaml:"name"`
	ProviderName string             `json:"provider" yaml:"provider"`
	Kind         Kind               `json:"kind" yaml:"kind"`
	NodeTypeName string             `json:"nodeType" yaml:"nodeType"`
	Columns      []ColumnDefinition `json:"columns" yaml:"columns"`
	Enabled      bool               `json:"enabled" yaml:"enabled"`
	Description  string             `json:"description,omitempty" yaml:"description,omitempty"`
	// Workspaces restricts the index to the named workspaces. Empty means
	// every workspace.
	Workspaces []string `json:"workspaces,omitempty" yaml:"workspaces,omitempty"`
	// Properties holds provider-specific settings.
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// HasSingleColumn reports whether the index has exactly one column.
func (d Definition) HasSingleColumn() bool {
	return len(d.Columns) == 1
}

// ColumnNames returns the indexed property names in column order.
func (d Definition) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Property
	}
	return names
}

// ColumnIndex returns the position of the column for property, or -1.
func (d Definition) ColumnIndex(property string) int {
	for i, c := range d.Columns {
		if c.Property == property {
			return i
		}
	}
	return -1
}

// UsedInWorkspace reports whether the index covers the workspace.
func (d Definition) UsedInWorkspace(workspace string) bool {
	return len(d.Workspaces) == 0 || slices.Contains(d.Workspaces, workspace)
}

// Validate checks the definition and returns an *InvalidDefinitionError
// listing every problem.
func (d Definition) Validate() error {
	var problems []string
	if d.Name == "" {
		problems = append(problems, "name is required")
	}
	if d.ProviderName == "" {
		problems = append(problems, "provider is required")
	}
	if d.NodeTypeName == "" {
		problems = append(problems, "node type is required")
	}
	if !slices.Contains(Kinds, d.Kind) {
		problems = append(problems, fmt.Sprintf("unknown kind %q", d.Kind))
	}
	if len(d.Columns) == 0 {
		problems = append(problems, "at least one column is required")
	}
	seen := make(map[string]bool, len(d.Columns))
	for i, c := range d.Columns {
		switch {
		case c.Property == "":
			problems = append(problems, fmt.Sprintf("column %d has no property", i))
		case seen[c.Property]:
			problems = append(problems, fmt.Sprintf("property %q is indexed twice", c.Property))
		}
		seen[c.Property] = true
	}
	switch d.Kind {
	case Enumerated, NodeType, FullTextSearch:
		if len(d.Columns) > 1 {
			problems = append(problems, fmt.Sprintf("%s indexes must have a single column", d.Kind))
		}
	}
	if len(problems) > 0 {
		return &InvalidDefinitionError{Name: d.Name, Problems: problems}
	}
	return nil
}
