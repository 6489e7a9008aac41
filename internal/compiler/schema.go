// Package compiler turns CUE schema files into the tables, views and index
// definitions of a repository.
//
// A schema file has three optional top-level structs:
//
//	table: "app:page": {
//		columns: {
//			title: "STRING"
//			rank: {type: "LONG", orderable: false, operators: ["=", "<"]}
//			"jcr:score": {type: "DOUBLE", selectStar: false}
//		}
//		keys: [["jcr:path"]]
//		extraColumns: true
//	}
//	view: pages: "SELECT title FROM [app:page]"
//	index: titles: {
//		provider: "sqlite"
//		kind:     "DUPLICATES"
//		nodeType: "app:page"
//		columns: ["title"]
//	}
//
// CompileSchema uses the CUE SDK directly and reports problems as
// *CompileError with the CUE position of the offending field.
package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/schemata"
	"github.com/roach88/contentql/internal/types"
)

// Schema is the compiled content of one or more schema files.
type Schema struct {
	Tables  []TableSpec        `json:"tables,omitempty"`
	Views   []ViewSpec         `json:"views,omitempty"`
	Indexes []index.Definition `json:"indexes,omitempty"`

	// positions of index definitions by name, for validation messages
	indexPos map[string]token.Pos
}

// TableSpec describes a table declared in a schema file.
type TableSpec struct {
	Name         string       `json:"name"`
	Columns      []ColumnSpec `json:"columns"`
	Keys         [][]string   `json:"keys,omitempty"`
	ExtraColumns bool         `json:"extraColumns,omitempty"`
	Pos          token.Pos    `json:"-"`
}

// ColumnSpec describes one declared column.
type ColumnSpec struct {
	Name       string           `json:"name"`
	Type       string           `json:"type"`
	Searchable bool             `json:"searchable,omitempty"`
	Orderable  bool             `json:"orderable"`
	SelectStar bool             `json:"selectStar"`
	Operators  []model.Operator `json:"operators,omitempty"`
	Pos        token.Pos        `json:"-"`
}

// ViewSpec is a view declared by its SQL definition.
type ViewSpec struct {
	Name       string    `json:"name"`
	Definition string    `json:"definition"`
	Pos        token.Pos `json:"-"`
}

// CompileSource compiles the text of a single schema file.
func CompileSource(filename string, src []byte) (*Schema, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return CompileSchema(v)
}

// CompileSchema parses a CUE value holding table, view and index structs.
// Entries keep their declaration order.
func CompileSchema(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{indexPos: make(map[string]token.Pos)}

	err := eachField(v, "table", func(name string, tv cue.Value) error {
		t, err := compileTable(name, tv)
		if err != nil {
			return err
		}
		s.Tables = append(s.Tables, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "view", func(name string, vv cue.Value) error {
		def, err := vv.String()
		if err != nil {
			return &CompileError{Field: "view." + name, Message: "view definition must be a string", Pos: vv.Pos()}
		}
		s.Views = append(s.Views, ViewSpec{Name: name, Definition: def, Pos: vv.Pos()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "index", func(name string, iv cue.Value) error {
		defn, err := compileIndex(name, iv)
		if err != nil {
			return err
		}
		s.Indexes = append(s.Indexes, defn)
		s.indexPos[name] = iv.Pos()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Merge appends the declarations of other to s.
func (s *Schema) Merge(other *Schema) {
	s.Tables = append(s.Tables, other.Tables...)
	s.Views = append(s.Views, other.Views...)
	s.Indexes = append(s.Indexes, other.Indexes...)
	if s.indexPos == nil {
		s.indexPos = make(map[string]token.Pos)
	}
	for name, pos := range other.indexPos {
		s.indexPos[name] = pos
	}
}

// Builder returns a schemata.Builder holding every table and view of the
// schema. Argument problems surface from the builder's Build.
func (s *Schema) Builder(ts types.TypeSystem, opts ...schemata.BuilderOption) *schemata.Builder {
	b := schemata.NewBuilder(ts, opts...)
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			col := schemata.NewColumn(c.Name, c.Type)
			col.Orderable = c.Orderable
			col.FullTextSearchable = c.Searchable
			col.Operators = c.Operators
			b.AddColumnWith(t.Name, col)
			if !c.SelectStar {
				b.ExcludeFromSelectStar(t.Name, c.Name)
			}
		}
		if t.ExtraColumns {
			b.MarkExtraColumns(t.Name)
		}
		for _, key := range t.Keys {
			b.AddKey(t.Name, key...)
		}
	}
	for _, v := range s.Views {
		b.AddView(v.Name, v.Definition)
	}
	return b
}

// eachField calls fn for every field of the struct at path, if present.
func eachField(v cue.Value, path string, fn func(name string, fv cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(unquote(iter.Selector().String()), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func compileTable(name string, v cue.Value) (TableSpec, error) {
	t := TableSpec{Name: name, Pos: v.Pos()}

	err := eachField(v, "columns", func(col string, cv cue.Value) error {
		c, err := compileColumn(name, col, cv)
		if err != nil {
			return err
		}
		t.Columns = append(t.Columns, c)
		return nil
	})
	if err != nil {
		return t, err
	}
	if len(t.Columns) == 0 {
		return t, &CompileError{Field: "table." + name + ".columns", Message: "at least one column is required", Pos: v.Pos()}
	}

	if kv := v.LookupPath(cue.ParsePath("keys")); kv.Exists() {
		iter, err := kv.List()
		if err != nil {
			return t, formatCUEError(err)
		}
		for iter.Next() {
			key, err := stringList(iter.Value())
			if err != nil {
				return t, err
			}
			t.Keys = append(t.Keys, key)
		}
	}

	t.ExtraColumns, err = optionalBool(v, "extraColumns", false)
	return t, err
}

// compileColumn accepts either a bare type name or a struct.
func compileColumn(table, name string, v cue.Value) (ColumnSpec, error) {
	c := ColumnSpec{Name: name, Orderable: true, SelectStar: true, Pos: v.Pos()}

	if typeName, err := v.String(); err == nil {
		c.Type = strings.ToUpper(typeName)
		return c, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return c, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns.%s", table, name),
			Message: "column must be a type name or a struct",
			Pos:     v.Pos(),
		}
	}

	var err error
	if tv := v.LookupPath(cue.ParsePath("type")); tv.Exists() {
		typeName, err := tv.String()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.Type = strings.ToUpper(typeName)
	}
	if c.Searchable, err = optionalBool(v, "searchable", false); err != nil {
		return c, err
	}
	if c.Orderable, err = optionalBool(v, "orderable", true); err != nil {
		return c, err
	}
	if c.SelectStar, err = optionalBool(v, "selectStar", true); err != nil {
		return c, err
	}
	if ov := v.LookupPath(cue.ParsePath("operators")); ov.Exists() {
		symbols, err := stringList(ov)
		if err != nil {
			return c, err
		}
		for _, sym := range symbols {
			op, ok := model.ParseOperator(sym)
			if !ok {
				return c, &CompileError{
					Field:   fmt.Sprintf("table.%s.columns.%s.operators", table, name),
					Message: fmt.Sprintf("unknown operator %q", sym),
					Pos:     ov.Pos(),
				}
			}
			c.Operators = append(c.Operators, op)
		}
	}
	return c, nil
}

func optionalBool(v cue.Value, path string, def bool) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(path))
	if !bv.Exists() {
		return def, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return def, formatCUEError(err)
	}
	return b, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// unquote strips the quotes CUE keeps on labels such as "app:page".
func unquote(label string) string {
	return strings.Trim(label, `"`)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
