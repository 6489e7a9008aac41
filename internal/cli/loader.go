package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/contentql/internal/compiler"
	"github.com/roach88/contentql/internal/schemata"
	"github.com/roach88/contentql/internal/types"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult is the merged schema of the CUE files of a directory.
type LoadResult struct {
	Schema *compiler.Schema
	Files  []string
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemaDir compiles every .cue file under dir and merges them in
// path order. A nil result means nothing could be loaded at all.
func LoadSchemaDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	var errs []error
	result := &LoadResult{Schema: &compiler.Schema{}, Files: files}
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)})
		} else if s, err := compiler.CompileSource(path, src); err != nil {
			errs = append(errs, convertCompileError(err, path))
		} else {
			result.Schema.Merge(s)
			continue
		}
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	s := result.Schema
	if len(s.Tables) == 0 && len(s.Views) == 0 && len(s.Indexes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no tables, views or indexes found in schema"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, path string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("%s: %v", path, err),
	}
}

// loadSchemata loads a schema directory, validates it and builds the
// schemata it declares. Any load, validation or build error fails.
func loadSchemata(dir string, ts types.TypeSystem) (*compiler.Schema, *schemata.Schemata, error) {
	result, errs := LoadSchemaDir(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, nil, errs[0]
	}
	if verrs := compiler.Validate(result.Schema, ts); len(verrs) > 0 {
		return nil, nil, verrs[0]
	}
	built, err := result.Schema.Builder(ts).Build()
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}
	return result.Schema, built, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Schema file unreadable
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE or schemata build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Database open or query failed

	// Schema compile errors
	ErrCodeInvalidTable = "E100" // malformed table declaration

	// Query errors
	ErrCodeParse        = "E201" // query does not parse
	ErrCodeInvalidQuery = "E202" // query fails validation against the schema
	ErrCodeUnsupported  = "E203" // query shape the command cannot use

	// Index errors
	ErrCodeReplay = "E301" // change set replay failed
)

// MapFieldToErrorCode maps a compiler error field to an error code by the
// kind of declaration the field belongs to.
func MapFieldToErrorCode(field string) string {
	kind, _, _ := strings.Cut(field, ".")
	switch kind {
	case "table":
		return ErrCodeInvalidTable
	case "view":
		return compiler.ErrInvalidView
	case "index":
		return compiler.ErrInvalidIndex
	default:
		return ErrCodeGeneric
	}
}
