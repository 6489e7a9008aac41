package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/parser"
	"github.com/roach88/contentql/internal/types"
)

// Validation error codes (E100-E199)
const (
	// Table errors (E101-E109)
	ErrUnknownType      = "E101" // column type is not a property type
	ErrDuplicateTable   = "E102" // table or view declared twice
	ErrUnknownKeyColumn = "E103" // key names a column the table lacks
	ErrEmptyKey         = "E104" // key without columns

	// View errors (E110-E119)
	ErrInvalidView   = "E110" // view definition does not parse
	ErrViewCycle     = "E111" // views select from each other
	ErrUnknownSource = "E112" // view selects from an undeclared table

	// Index errors (E120-E129)
	ErrInvalidIndex     = "E120" // index definition is incomplete
	ErrDuplicateIndex   = "E121" // index declared twice
	ErrUnknownIndexType = "E122" // index column type is not a property type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema against ts. It returns every problem
// found instead of stopping at the first one. Views that select from
// sources that are neither declared tables nor views are reported, so a
// schema that validates cleanly also builds.
func Validate(s *Schema, ts types.TypeSystem) []ValidationError {
	var errs []ValidationError
	add := func(code, field string, pos token.Pos, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    line(pos),
		})
	}

	declared := make(map[string]bool)
	for _, t := range s.Tables {
		field := "table." + t.Name
		if declared[t.Name] {
			add(ErrDuplicateTable, field, t.Pos, "table %q is declared more than once", t.Name)
		}
		declared[t.Name] = true

		for _, c := range t.Columns {
			if c.Type != "" && !knownType(ts, c.Type) {
				add(ErrUnknownType, field+".columns."+c.Name, c.Pos, "unknown property type %q", c.Type)
			}
		}
		for i, key := range t.Keys {
			if len(key) == 0 {
				add(ErrEmptyKey, fmt.Sprintf("%s.keys[%d]", field, i), t.Pos, "key has no columns")
			}
			for _, col := range key {
				if !slices.ContainsFunc(t.Columns, func(c ColumnSpec) bool { return c.Name == col }) {
					add(ErrUnknownKeyColumn, fmt.Sprintf("%s.keys[%d]", field, i), t.Pos, "table has no column %q", col)
				}
			}
		}
	}

	views := make(map[string]model.QueryCommand, len(s.Views))
	for _, v := range s.Views {
		field := "view." + v.Name
		if declared[v.Name] {
			add(ErrDuplicateTable, field, v.Pos, "%q is already declared", v.Name)
			continue
		}
		declared[v.Name] = true
		cmd, err := parser.ParseQuery(v.Definition, ts)
		if err != nil {
			add(ErrInvalidView, field, v.Pos, "%v", err)
			continue
		}
		views[v.Name] = cmd
	}
	for _, v := range s.Views {
		cmd, ok := views[v.Name]
		if !ok {
			continue
		}
		for _, source := range commandSources(cmd) {
			if !declared[source] {
				add(ErrUnknownSource, "view."+v.Name, v.Pos, "selects from undeclared table %q", source)
			}
		}
	}
	for _, c := range FindViewCycles(views) {
		add(ErrViewCycle, "view."+c.Path[0], s.viewPos(c.Path[0]), "%s", c.Message)
	}

	seen := make(map[string]bool)
	for _, defn := range s.Indexes {
		field := "index." + defn.Name
		pos := s.indexPos[defn.Name]
		if seen[defn.Name] {
			add(ErrDuplicateIndex, field, pos, "index %q is declared more than once", defn.Name)
		}
		seen[defn.Name] = true
		if err := defn.Validate(); err != nil {
			if ide, ok := err.(*index.InvalidDefinitionError); ok {
				for _, p := range ide.Problems {
					add(ErrInvalidIndex, field, pos, "%s", p)
				}
			} else {
				add(ErrInvalidIndex, field, pos, "%v", err)
			}
		}
		for _, col := range defn.Columns {
			if !knownType(ts, col.Type) {
				add(ErrUnknownIndexType, field+".columns."+col.Property, pos, "unknown property type %q", col.Type)
			}
		}
	}

	return errs
}

func (s *Schema) viewPos(name string) token.Pos {
	for _, v := range s.Views {
		if v.Name == name {
			return v.Pos
		}
	}
	return token.NoPos
}

func knownType(ts types.TypeSystem, name string) bool {
	_, ok := ts.Factory(strings.TrimSpace(name))
	return ok
}

func line(pos token.Pos) int {
	if !pos.IsValid() {
		return 0
	}
	return pos.Line()
}
