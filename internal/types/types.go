// Package types is the property type system used by the query parser,
// the schemata and the index store.
//
// Every property type has a Factory that converts text (or a value of
// another type) into the Go representation of the type, renders its
// canonical string form and orders two values. Canonical forms make
// equivalent literals identical: CAST('+3' AS LONG) and CAST('3' AS LONG)
// both render as "3".
//
// Go representations:
//
//	STRING, NAME, PATH, URI,
//	REFERENCE, WEAKREFERENCE  string (NFC normalized)
//	BINARY                    []byte
//	LONG                      int64
//	DOUBLE                    float64
//	DECIMAL                   *apd.Decimal
//	BOOLEAN                   bool
//	DATE                      time.Time
package types

import (
	"fmt"
	"slices"
	"strings"
)

// Property type names.
const (
	String        = "STRING"
	Binary        = "BINARY"
	Date          = "DATE"
	Long          = "LONG"
	Double        = "DOUBLE"
	Decimal       = "DECIMAL"
	Boolean       = "BOOLEAN"
	Name          = "NAME"
	Path          = "PATH"
	Reference     = "REFERENCE"
	WeakReference = "WEAKREFERENCE"
	URI           = "URI"
)

// Factory converts, renders and orders the values of one property type.
type Factory interface {
	// TypeName returns the upper-case property type name.
	TypeName() string
	// Create converts text or a value of another type into this type.
	Create(value any) (any, error)
	// AsString renders a value created by this factory in canonical form.
	AsString(value any) string
	// Compare orders two values created by this factory.
	Compare(a, b any) int
}

// TypeSystem resolves property type names to factories.
type TypeSystem interface {
	// Factory returns the factory for a type name, matched case-insensitively.
	Factory(typeName string) (Factory, bool)
	// DefaultType is the type of untyped columns.
	DefaultType() string
	// IsNumeric reports whether values of the type take part in arithmetic.
	IsNumeric(typeName string) bool
	// TypeNames returns every known type name in sorted order.
	TypeNames() []string
}

// ConversionError reports a value that cannot be converted to a type.
type ConversionError struct {
	TypeName string
	Value    any
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %v to %s: %v", e.Value, e.TypeName, e.Err)
	}
	return fmt.Sprintf("cannot convert %v to %s", e.Value, e.TypeName)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Canonical converts value with the named factory and renders the result.
func Canonical(ts TypeSystem, typeName string, value any) (string, error) {
	f, ok := ts.Factory(typeName)
	if !ok {
		return "", fmt.Errorf("unknown property type %q", typeName)
	}
	v, err := f.Create(value)
	if err != nil {
		return "", err
	}
	return f.AsString(v), nil
}

// Standard is the built-in TypeSystem.
type Standard struct {
	factories map[string]Factory
	names     []string
}

// NewStandard creates the built-in type system.
func NewStandard() *Standard {
	all := []Factory{
		stringFactory(String),
		stringFactory(Name),
		stringFactory(Path),
		stringFactory(URI),
		stringFactory(Reference),
		stringFactory(WeakReference),
		binaryFactory{},
		longFactory{},
		doubleFactory{},
		decimalFactory{},
		booleanFactory{},
		dateFactory{},
	}
	s := &Standard{factories: make(map[string]Factory, len(all))}
	for _, f := range all {
		s.factories[f.TypeName()] = f
		s.names = append(s.names, f.TypeName())
	}
	slices.Sort(s.names)
	return s
}

func (s *Standard) Factory(typeName string) (Factory, bool) {
	f, ok := s.factories[strings.ToUpper(typeName)]
	return f, ok
}

func (s *Standard) DefaultType() string {
	return String
}

func (s *Standard) IsNumeric(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case Long, Double, Decimal, Date:
		return true
	default:
		return false
	}
}

func (s *Standard) TypeNames() []string {
	return slices.Clone(s.names)
}
