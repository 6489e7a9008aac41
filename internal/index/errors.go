package index

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResultsClosed is returned by Results used after Close.
var ErrResultsClosed = errors.New("index results are closed")

// ExistsError reports an index registered under a name already in use.
type ExistsError struct {
	Name string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("index %q already exists", e.Name)
}

// InvalidDefinitionError reports a definition that cannot be registered.
type InvalidDefinitionError struct {
	Name     string
	Problems []string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid index definition %q: %s", e.Name, strings.Join(e.Problems, "; "))
}

// NoSuchIndexError reports a lookup of an unregistered index.
type NoSuchIndexError struct {
	Name string
}

func (e *NoSuchIndexError) Error() string {
	return fmt.Sprintf("no index named %q", e.Name)
}

// NoSuchProviderError reports a definition naming an unknown provider.
type NoSuchProviderError struct {
	Name string
}

func (e *NoSuchProviderError) Error() string {
	return fmt.Sprintf("no index provider named %q", e.Name)
}

// IsExists returns true if err is, or wraps, an ExistsError.
func IsExists(err error) bool {
	var e *ExistsError
	return errors.As(err, &e)
}

// IsInvalidDefinition returns true if err is, or wraps, an
// InvalidDefinitionError.
func IsInvalidDefinition(err error) bool {
	var e *InvalidDefinitionError
	return errors.As(err, &e)
}

// IsNoSuchIndex returns true if err is, or wraps, a NoSuchIndexError.
func IsNoSuchIndex(err error) bool {
	var e *NoSuchIndexError
	return errors.As(err, &e)
}

// IsNoSuchProvider returns true if err is, or wraps, a NoSuchProviderError.
func IsNoSuchProvider(err error) bool {
	var e *NoSuchProviderError
	return errors.As(err, &e)
}
