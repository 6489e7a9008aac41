package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/types"
)

// compileIndex parses one entry of the index struct. Columns are either
// property names, which get the STRING type, or {property, type} structs.
// Indexes are enabled unless they say otherwise.
func compileIndex(name string, v cue.Value) (index.Definition, error) {
	defn := index.Definition{Name: name, Enabled: true}
	field := "index." + name

	var err error
	if defn.ProviderName, err = optionalString(v, "provider"); err != nil {
		return defn, err
	}
	if defn.NodeTypeName, err = optionalString(v, "nodeType"); err != nil {
		return defn, err
	}
	if defn.Description, err = optionalString(v, "description"); err != nil {
		return defn, err
	}
	if defn.Enabled, err = optionalBool(v, "enabled", true); err != nil {
		return defn, err
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		defn.Kind = index.Duplicates
	} else {
		s, err := kindVal.String()
		if err != nil {
			return defn, formatCUEError(err)
		}
		kind, ok := index.ParseKind(s)
		if !ok {
			return defn, &CompileError{Field: field + ".kind", Message: fmt.Sprintf("unknown index kind %q", s), Pos: kindVal.Pos()}
		}
		defn.Kind = kind
	}

	if wv := v.LookupPath(cue.ParsePath("workspaces")); wv.Exists() {
		if defn.Workspaces, err = stringList(wv); err != nil {
			return defn, err
		}
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return defn, &CompileError{Field: field + ".columns", Message: "columns are required", Pos: v.Pos()}
	}
	iter, err := colsVal.List()
	if err != nil {
		return defn, formatCUEError(err)
	}
	for iter.Next() {
		col, err := compileIndexColumn(field, iter.Value())
		if err != nil {
			return defn, err
		}
		defn.Columns = append(defn.Columns, col)
	}

	if pv := v.LookupPath(cue.ParsePath("properties")); pv.Exists() {
		var props map[string]any
		if err := pv.Decode(&props); err != nil {
			return defn, formatCUEError(err)
		}
		defn.Properties = props
	}

	return defn, nil
}

func compileIndexColumn(field string, v cue.Value) (index.ColumnDefinition, error) {
	if prop, err := v.String(); err == nil {
		return index.ColumnDefinition{Property: prop, Type: types.String}, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return index.ColumnDefinition{}, &CompileError{
			Field:   field + ".columns",
			Message: "column must be a property name or a struct",
			Pos:     v.Pos(),
		}
	}
	prop, err := optionalString(v, "property")
	if err != nil {
		return index.ColumnDefinition{}, err
	}
	typeName, err := optionalString(v, "type")
	if err != nil {
		return index.ColumnDefinition{}, err
	}
	if typeName == "" {
		typeName = types.String
	}
	return index.ColumnDefinition{Property: prop, Type: strings.ToUpper(typeName)}, nil
}
