package schemata

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/types"
)

// Builder accumulates tables and views and builds a Schemata.
//
// Methods return the Builder for chaining. The first invalid argument is
// recorded and every later call is ignored; Err reports it and Build
// returns it. A Builder is not safe for concurrent use.
type Builder struct {
	types   types.TypeSystem
	planner Planner

	tables    map[string]*mutableTable
	views     map[string]model.QueryCommand
	extra     map[string]bool
	orderable map[string]map[string]bool
	operators map[string]map[string][]model.Operator

	err error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPlanner sets the planner used to resolve view definitions. The
// default is ProjectionPlanner.
func WithPlanner(p Planner) BuilderOption {
	return func(b *Builder) {
		b.planner = p
	}
}

// NewBuilder creates an empty Builder. Columns added without a type get
// ts.DefaultType().
func NewBuilder(ts types.TypeSystem, opts ...BuilderOption) *Builder {
	b := &Builder{
		types:     ts,
		planner:   ProjectionPlanner{},
		tables:    make(map[string]*mutableTable),
		views:     make(map[string]model.QueryCommand),
		extra:     make(map[string]bool),
		orderable: make(map[string]map[string]bool),
		operators: make(map[string]map[string][]model.Operator),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Err returns the first argument error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(method, arg, format string, args ...any) *Builder {
	if b.err == nil {
		b.err = &ArgumentError{Method: method, Argument: arg, Message: fmt.Sprintf(format, args...)}
	}
	return b
}

// AddTable adds a table whose columns have the default type, replacing any
// table with the same name.
func (b *Builder) AddTable(name string, columnNames ...string) *Builder {
	typeNames := make([]string, len(columnNames))
	for i := range typeNames {
		typeNames[i] = b.types.DefaultType()
	}
	return b.addTable("AddTable", name, columnNames, typeNames)
}

// AddTableWithTypes adds a table with typed columns, replacing any table
// with the same name. The two slices must have the same length.
func (b *Builder) AddTableWithTypes(name string, columnNames, typeNames []string) *Builder {
	if b.err == nil && len(columnNames) != len(typeNames) {
		return b.fail("AddTableWithTypes", "typeNames", "got %d types for %d columns", len(typeNames), len(columnNames))
	}
	return b.addTable("AddTableWithTypes", name, columnNames, typeNames)
}

func (b *Builder) addTable(method, name string, columnNames, typeNames []string) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		return b.fail(method, "name", "must not be empty")
	}
	if len(columnNames) == 0 {
		return b.fail(method, "columnNames", "at least one column is required")
	}
	t := &mutableTable{name: name}
	for i, c := range columnNames {
		if c == "" {
			return b.fail(method, fmt.Sprintf("columnNames[%d]", i), "must not be empty")
		}
		t.put(NewColumn(c, typeNames[i]))
	}
	b.tables[name] = t
	return b
}

// AddView adds a view defined by a SQL query. The definition is parsed
// immediately; a parse error is recorded and returned by Build.
func (b *Builder) AddView(name, definition string) *Builder {
	if b.err != nil {
		return b
	}
	if definition == "" {
		return b.fail("AddView", "definition", "must not be empty")
	}
	cmd, err := parser.ParseQuery(definition, b.types)
	if err != nil {
		b.err = fmt.Errorf("view %q: %w", name, err)
		return b
	}
	return b.AddViewCommand(name, cmd)
}

// AddViewCommand adds a view defined by an already parsed query.
func (b *Builder) AddViewCommand(name string, definition model.QueryCommand) *Builder {
	if b.err != nil {
		return b
	}
	if name == "" {
		return b.fail("AddView", "name", "must not be empty")
	}
	if definition == nil {
		return b.fail("AddView", "definition", "must not be nil")
	}
	b.views[name] = definition
	return b
}

// AddColumn adds a column with default flags to a table, creating the table
// if needed. A column with the same name is replaced.
func (b *Builder) AddColumn(table, column, typeName string) *Builder {
	if b.err == nil && typeName == "" {
		return b.fail("AddColumn", "typeName", "must not be empty")
	}
	return b.AddColumnWith(table, NewColumn(column, typeName))
}

// AddColumnWith adds a fully described column to a table, creating the
// table if needed. A column with the same name is replaced.
func (b *Builder) AddColumnWith(table string, column Column) *Builder {
	if b.err != nil {
		return b
	}
	if table == "" {
		return b.fail("AddColumn", "table", "must not be empty")
	}
	if column.Name == "" {
		return b.fail("AddColumn", "column", "must not be empty")
	}
	if column.TypeName == "" {
		column.TypeName = b.types.DefaultType()
	}
	b.table(table).put(column)
	return b
}

// MakeSearchable marks a column as full-text searchable, adding it with the
// default type if the table does not exist yet.
func (b *Builder) MakeSearchable(table, column string) *Builder {
	if b.err != nil {
		return b
	}
	if table == "" || column == "" {
		return b.fail("MakeSearchable", "table/column", "must not be empty")
	}
	t, ok := b.tables[table]
	if !ok {
		c := NewColumn(column, b.types.DefaultType())
		c.FullTextSearchable = true
		b.table(table).put(c)
		return b
	}
	if c, ok := t.get(column); ok {
		c.FullTextSearchable = true
		t.put(c)
	}
	return b
}

// MarkOrderable overrides whether a column is orderable. It applies to view
// columns when the view is resolved.
func (b *Builder) MarkOrderable(table, column string, orderable bool) *Builder {
	if b.err != nil {
		return b
	}
	if table == "" {
		return b.fail("MarkOrderable", "table", "must not be empty")
	}
	if b.orderable[table] == nil {
		b.orderable[table] = make(map[string]bool)
	}
	b.orderable[table][column] = orderable
	if t, ok := b.tables[table]; ok {
		if c, ok := t.get(column); ok {
			c.Orderable = orderable
			t.put(c)
		}
	}
	return b
}

// MarkOperators overrides the operators allowed on a column. Passing no
// operators restores the column's own set.
func (b *Builder) MarkOperators(table, column string, ops ...model.Operator) *Builder {
	if b.err != nil {
		return b
	}
	if table == "" {
		return b.fail("MarkOperators", "table", "must not be empty")
	}
	if len(ops) == 0 {
		delete(b.operators[table], column)
		if len(b.operators[table]) == 0 {
			delete(b.operators, table)
		}
		return b
	}
	if b.operators[table] == nil {
		b.operators[table] = make(map[string][]model.Operator)
	}
	b.operators[table][column] = slices.Clone(ops)
	return b
}

// MarkExtraColumns lets queries reference columns the table or view does
// not declare.
func (b *Builder) MarkExtraColumns(table string) *Builder {
	if b.err != nil {
		return b
	}
	if table == "" {
		return b.fail("MarkExtraColumns", "table", "must not be empty")
	}
	b.extra[table] = true
	return b
}

// ExcludeFromSelectStar leaves a column out of SELECT *, adding it with the
// default type if the table does not exist yet.
func (b *Builder) ExcludeFromSelectStar(table, column string) *Builder {
	if b.err != nil {
		return b
	}
	if table == "" || column == "" {
		return b.fail("ExcludeFromSelectStar", "table/column", "must not be empty")
	}
	t := b.table(table)
	if _, ok := t.get(column); !ok {
		t.put(NewColumn(column, b.types.DefaultType()))
	}
	t.exclude(column)
	return b
}

// AddKey adds a key over existing columns of an existing table.
func (b *Builder) AddKey(table string, columns ...string) *Builder {
	if b.err != nil {
		return b
	}
	if len(columns) == 0 {
		return b.fail("AddKey", "columns", "at least one column is required")
	}
	t, ok := b.tables[table]
	if !ok {
		return b.fail("AddKey", "table", "table %q does not exist", table)
	}
	for _, c := range columns {
		if _, ok := t.get(c); !ok {
			return b.fail("AddKey", "columns", "table %q has no column %q", table, c)
		}
	}
	t.keys = append(t.keys, Key{Columns: slices.Clone(columns)})
	return b
}

func (b *Builder) table(name string) *mutableTable {
	t, ok := b.tables[name]
	if !ok {
		t = &mutableTable{name: name}
		b.tables[name] = t
	}
	return t
}

// Build snapshots the tables and resolves the views.
//
// Views are resolved in passes. Each pass tries every pending view against
// the schema built so far and publishes the ones whose references all
// resolve, so a view may use views declared after it. Build fails with a
// *parser.InvalidQueryError when a pass makes no progress while views are
// still pending, or when a view names a column its source does not have.
func (b *Builder) Build() (*Schemata, error) {
	if b.err != nil {
		return nil, b.err
	}

	tables := make(map[string]*Table, len(b.tables)+len(b.views))
	for name, t := range b.tables {
		tables[name] = t.freeze(b.orderable[name], b.operators[name], b.extra[name])
	}
	s := &Schemata{tables: tables}

	pending := make(map[string]model.QueryCommand, len(b.views))
	for name, cmd := range b.views {
		pending[name] = cmd
	}

	for pass := 1; len(pending) > 0; pass++ {
		progress := false
		for _, name := range sortedKeys(pending) {
			cmd := pending[name]
			projected, err := b.planner.ProjectedColumns(s, cmd)
			if errors.Is(err, ErrUnresolved) {
				continue
			}
			if err != nil {
				return nil, &parser.InvalidQueryError{Query: model.Readable(cmd), Message: "view " + name, Err: err}
			}
			view, err := b.view(s, name, cmd, projected)
			if err != nil {
				return nil, err
			}
			s = s.With(view)
			delete(pending, name)
			progress = true
		}
		slog.Debug("view resolution pass", "pass", pass, "pending", len(pending))
		if !progress {
			break
		}
	}

	if len(pending) > 0 {
		name := sortedKeys(pending)[0]
		readable := model.Readable(pending[name])
		return nil, &parser.InvalidQueryError{
			Query:   readable,
			Message: fmt.Sprintf("the definition of view %q cannot be resolved", name),
		}
	}
	return s, nil
}

func (b *Builder) view(s *Schemata, name string, cmd model.QueryCommand, projected []ProjectedColumn) (*Table, error) {
	var columns []Column
	var selectStar []string
	seen := make(map[string]bool, len(projected))

	for _, pc := range projected {
		source, ok := s.Table(pc.Table)
		if !ok {
			continue
		}
		viewColumn := pc.ColumnName
		if viewColumn == "" {
			viewColumn = pc.Property
		}
		if seen[viewColumn] {
			continue
		}

		sourceColumn, ok := source.Column(pc.Property)
		if !ok {
			return nil, &parser.InvalidQueryError{
				Query: model.Readable(cmd),
				Message: fmt.Sprintf("view %q references column %q that does not exist in %q",
					name, pc.Property, source.Name()),
			}
		}

		c := sourceColumn
		c.Name = viewColumn
		if o, ok := b.orderable[name][viewColumn]; ok {
			c.Orderable = o
		}
		if ops, ok := b.operators[name][viewColumn]; ok {
			c.Operators = ops
		}
		columns = append(columns, c)
		if slices.Contains(source.selectStar, sourceColumn.Name) {
			selectStar = append(selectStar, viewColumn)
		}
		seen[viewColumn] = true
	}

	slog.Debug("resolved view", "view", name, "columns", len(columns))
	return newTable(name, columns, selectStar, nil, b.extra[name], cmd), nil
}

func sortedKeys(m map[string]model.QueryCommand) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mutableTable is a table under construction.
type mutableTable struct {
	name     string
	columns  []Column
	excluded map[string]bool
	keys     []Key
}

func (t *mutableTable) get(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// put adds c, replacing a column with the same name in place.
func (t *mutableTable) put(c Column) {
	for i := range t.columns {
		if t.columns[i].Name == c.Name {
			t.columns[i] = c
			return
		}
	}
	t.columns = append(t.columns, c)
}

func (t *mutableTable) exclude(name string) {
	if t.excluded == nil {
		t.excluded = make(map[string]bool)
	}
	t.excluded[name] = true
}

func (t *mutableTable) freeze(orderable map[string]bool, operators map[string][]model.Operator, extra bool) *Table {
	columns := make([]Column, len(t.columns))
	var selectStar []string
	for i, c := range t.columns {
		if o, ok := orderable[c.Name]; ok {
			c.Orderable = o
		}
		if ops, ok := operators[c.Name]; ok {
			c.Operators = ops
		}
		columns[i] = c
		if !t.excluded[c.Name] {
			selectStar = append(selectStar, c.Name)
		}
	}
	keys := make([]Key, len(t.keys))
	for i, k := range t.keys {
		keys[i] = Key{Columns: slices.Clone(k.Columns)}
	}
	return newTable(t.name, columns, selectStar, keys, extra, nil)
}
