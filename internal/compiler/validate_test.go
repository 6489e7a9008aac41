package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentql/internal/types"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		src   string
		codes []string
	}{
		{
			name: "valid",
			src: `
table: t: {columns: {x: "LONG", y: "DATE"}, keys: [["x", "y"]]}
view: v: "SELECT x FROM t"
index: i: {provider: "sqlite", nodeType: "t", columns: [{property: "x", type: "LONG"}]}
`,
		},
		{
			name:  "unknown column type",
			src:   `table: t: columns: x: "INTEGER"`,
			codes: []string{ErrUnknownType},
		},
		{
			name:  "key names missing column",
			src:   `table: t: {columns: x: "STRING", keys: [["x", "z"], []]}`,
			codes: []string{ErrUnknownKeyColumn, ErrEmptyKey},
		},
		{
			name: "view shadows table",
			src: `
table: t: columns: x: "STRING"
view: t: "SELECT x FROM t"
`,
			codes: []string{ErrDuplicateTable},
		},
		{
			name:  "view does not parse",
			src:   `view: v: "SELECT FROM"`,
			codes: []string{ErrInvalidView},
		},
		{
			name:  "view selects from nothing",
			src:   `view: v: "SELECT * FROM missing"`,
			codes: []string{ErrUnknownSource},
		},
		{
			name: "views select from each other",
			src: `
view: a: "SELECT * FROM b"
view: b: "SELECT * FROM a"
`,
			codes: []string{ErrViewCycle},
		},
		{
			name:  "incomplete index",
			src:   `index: i: {kind: "ENUMERATED", columns: ["x", "y"]}`,
			codes: []string{ErrInvalidIndex, ErrInvalidIndex, ErrInvalidIndex},
		},
		{
			name:  "index column type",
			src:   `index: i: {provider: "p", nodeType: "t", columns: [{property: "x", type: "INTEGER"}]}`,
			codes: []string{ErrUnknownIndexType},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := compileString(t, tc.src)
			require.NoError(t, err)
			errs := Validate(s, types.NewStandard())
			if len(tc.codes) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tc.codes, codes(errs), "%v", errs)
		})
	}
}

func TestValidate_DuplicateIndex(t *testing.T) {
	a, err := compileString(t, `index: i: {provider: "p", nodeType: "t", columns: ["x"]}`)
	require.NoError(t, err)
	b, err := compileString(t, `index: i: {provider: "p", nodeType: "t", columns: ["y"]}`)
	require.NoError(t, err)
	a.Merge(b)

	errs := Validate(a, types.NewStandard())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateIndex, errs[0].Code)
	assert.Equal(t, "index.i", errs[0].Field)
}

func TestValidate_Lines(t *testing.T) {
	s, err := compileString(t, "table: t: columns: {\n\tx: \"STRING\"\n\ty: \"INTEGER\"\n}\n")
	require.NoError(t, err)
	errs := Validate(s, types.NewStandard())
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Line)
	assert.Equal(t, `[E101] line 3: table.t.columns.y: unknown property type "INTEGER"`, errs[0].Error())
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "view.v", Message: "bad", Code: ErrInvalidView}
	assert.Equal(t, "[E110] view.v: bad", err.Error())
}
