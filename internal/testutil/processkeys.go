package testutil

import "fmt"

// DefaultProcessKey is the process key used by scenarios that set none.
const DefaultProcessKey = "test-process-default"

// FixedProcessKey returns key, or DefaultProcessKey when key is empty.
//
// Scenarios pin the local process key so that the local flag passed to
// index operations is the same on every run:
//
//	process_key: "test-process-00000000-0000-0000-0000-000000000001"
func FixedProcessKey(key string) string {
	if key == "" {
		return DefaultProcessKey
	}
	return key
}

// ProcessKeys generates numbered process keys for replicated change sets.
//
// Thread-safety: ProcessKeys is safe for concurrent use.
type ProcessKeys struct {
	seq *Sequence
}

// NewProcessKeys creates a generator whose first key ends in 0001.
func NewProcessKeys() *ProcessKeys {
	return &ProcessKeys{seq: NewSequence()}
}

// Next returns the next key.
func (g *ProcessKeys) Next() string {
	return fmt.Sprintf("test-process-%04d", g.seq.Next())
}
