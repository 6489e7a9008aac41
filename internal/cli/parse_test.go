package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Readable(t *testing.T) {
	out, err := execute(t, "parse", "SELECT * FROM [app:page] WHERE title = 'Home'")
	require.NoError(t, err)
	assert.Contains(t, out, "[app:page]")
	assert.Contains(t, out, "'Home'")
}

func TestParse_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "parse",
		"SELECT p.title FROM [app:page] AS p UNION SELECT a.name FROM [app:asset] AS a")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   ParseResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "set-query", resp.Data.Kind)
	require.Len(t, resp.Data.Selectors, 2)
	assert.Equal(t, "app:page", resp.Data.Selectors[0].Name)
	assert.Equal(t, "app:asset", resp.Data.Selectors[1].Name)
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT * FROM [app:page]\n"), 0644))

	out, err := execute(t, "parse", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[app:page]")
}

func TestParse_SchemaValidation(t *testing.T) {
	out, err := execute(t, "parse", "--schema", "testdata/schema", "SELECT * FROM [app:page] WHERE missing = 1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ query has 1 problem(s)")
	assert.Contains(t, out, "missing")
}

func TestParse_SchemaExpandsView(t *testing.T) {
	out, err := execute(t, "parse", "--schema", "testdata/schema", "SELECT * FROM top_pages")
	require.NoError(t, err)
	assert.Contains(t, out, "top_pages")
}

func TestParse_SyntaxError(t *testing.T) {
	out, err := execute(t, "--format", "json", "parse", "SELECT * FROM")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}

func TestParse_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"no query", []string{"parse"}, "a query is required"},
		{"both", []string{"parse", "--file", "q.sql", "SELECT * FROM [a]"}, "not both"},
		{"missing file", []string{"parse", "--file", "does-not-exist.sql"}, "failed to read query file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.msg)
		})
	}
}

func TestParse_BadSchemaDir(t *testing.T) {
	_, err := execute(t, "parse", "--schema", "testdata/nowhere", "SELECT * FROM [app:page]")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
