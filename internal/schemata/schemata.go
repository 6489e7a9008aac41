// Package schemata describes the tables and views a query may select from.
//
// A Schemata is an immutable snapshot produced by a Builder. Tables list
// explicit columns; views are defined by a query and get their columns by
// resolving that query against the other tables and views of the same
// build. Published snapshots are never modified: With returns a new one.
package schemata

import (
	"slices"
	"sort"
	"strings"

	"github.com/roach88/contentql/internal/model"
)

// Column describes one column of a table or view.
type Column struct {
	Name string `json:"name"`
	// TypeName is the declared property type, such as STRING or LONG.
	TypeName string `json:"type"`
	// RequiredType is the semantic type values must have, or empty when
	// any type is accepted.
	RequiredType       string `json:"requiredType,omitempty"`
	FullTextSearchable bool   `json:"fullTextSearchable"`
	Orderable          bool   `json:"orderable"`
	// Operators lists the comparison operators allowed on the column. An
	// empty list allows every operator.
	Operators []model.Operator `json:"operators,omitempty"`
	Minimum   any              `json:"minimum,omitempty"`
	Maximum   any              `json:"maximum,omitempty"`
}

// NewColumn returns an orderable, non-searchable column that allows every
// operator.
func NewColumn(name, typeName string) Column {
	return Column{Name: name, TypeName: typeName, Orderable: true}
}

// AllowsOperator reports whether op may be used on the column.
func (c Column) AllowsOperator(op model.Operator) bool {
	return len(c.Operators) == 0 || slices.Contains(c.Operators, op)
}

// Key is a set of columns that together identify a row.
type Key struct {
	Columns []string `json:"columns"`
}

// Has reports whether the key consists of exactly the named columns, in
// any order.
func (k Key) Has(columns ...string) bool {
	if len(columns) != len(k.Columns) {
		return false
	}
	for _, c := range columns {
		if !slices.Contains(k.Columns, c) {
			return false
		}
	}
	return true
}

// Table is a table or, when Definition is non-nil, a view.
type Table struct {
	name         string
	columns      []Column
	byName       map[string]int
	selectStar   []string
	keys         []Key
	extraColumns bool
	definition   model.QueryCommand
}

func newTable(name string, columns []Column, selectStar []string, keys []Key, extra bool, def model.QueryCommand) *Table {
	t := &Table{
		name:         name,
		columns:      columns,
		byName:       make(map[string]int, len(columns)),
		selectStar:   selectStar,
		keys:         keys,
		extraColumns: extra,
		definition:   def,
	}
	for i, c := range columns {
		t.byName[c.Name] = i
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []Column { return slices.Clone(t.columns) }

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// SelectStarColumns returns the columns included in SELECT *, in
// declaration order.
func (t *Table) SelectStarColumns() []Column {
	cols := make([]Column, 0, len(t.selectStar))
	for _, n := range t.selectStar {
		cols = append(cols, t.columns[t.byName[n]])
	}
	return cols
}

// SelectStarColumnNames returns the names of the SELECT * columns.
func (t *Table) SelectStarColumnNames() []string { return slices.Clone(t.selectStar) }

// Keys returns the keys of the table.
func (t *Table) Keys() []Key { return slices.Clone(t.keys) }

// HasKey reports whether some key consists of exactly the named columns.
func (t *Table) HasKey(columns ...string) bool {
	for _, k := range t.keys {
		if k.Has(columns...) {
			return true
		}
	}
	return false
}

// HasExtraColumns reports whether queries may reference columns the table
// does not declare.
func (t *Table) HasExtraColumns() bool { return t.extraColumns }

// IsView reports whether the table is a view.
func (t *Table) IsView() bool { return t.definition != nil }

// Definition returns the query defining a view, or nil for a table.
func (t *Table) Definition() model.QueryCommand { return t.definition }

// FullTextSearchable reports whether any column is full-text searchable.
func (t *Table) FullTextSearchable() bool {
	for _, c := range t.columns {
		if c.FullTextSearchable {
			return true
		}
	}
	return false
}

// Schemata is an immutable set of tables and views.
type Schemata struct {
	tables map[string]*Table
}

// Table returns the named table or view.
func (s *Schemata) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns every table and view sorted by name.
func (s *Schemata) Tables() []*Table {
	tables := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].name < tables[j].name })
	return tables
}

// SelectStarColumnNames returns the SELECT * columns of the named table.
// It lets a Schemata expand SELECT * during parsing.
func (s *Schemata) SelectStarColumnNames(table string) ([]string, bool) {
	t, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	return t.SelectStarColumnNames(), true
}

// With returns a new Schemata that also contains t, replacing any table
// with the same name.
func (s *Schemata) With(t *Table) *Schemata {
	tables := make(map[string]*Table, len(s.tables)+1)
	for name, existing := range s.tables {
		tables[name] = existing
	}
	tables[t.name] = t
	return &Schemata{tables: tables}
}

// String lists the tables and their columns, one table per line.
func (s *Schemata) String() string {
	var sb strings.Builder
	for _, t := range s.Tables() {
		sb.WriteString(t.name)
		sb.WriteString("(")
		for i, c := range t.columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.Name)
			sb.WriteString(" ")
			sb.WriteString(c.TypeName)
		}
		sb.WriteString(")")
		if t.definition != nil {
			sb.WriteString(" AS ")
			sb.WriteString(model.Readable(t.definition))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
