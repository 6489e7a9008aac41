package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/contentql/internal/change"
	"github.com/roach88/contentql/internal/compiler"
	"github.com/roach88/contentql/internal/index"
	"github.com/roach88/contentql/internal/store"
	"github.com/roach88/contentql/internal/testutil"
	"github.com/roach88/contentql/internal/types"
)

// Harness is the state of one scenario execution.
type Harness struct {
	replayer *Replayer
	keys     *testutil.ProcessKeys
	local    string
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Compile and validate the schema files
//  2. Register every index with the store as provider
//  3. Replay the change sets through the index listeners
//  4. Evaluate assertions against the trace and the store
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	ts := types.NewStandard()

	schema, err := LoadSchema(ts, scenario.Schema...)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithTypeSystem(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	registry := index.NewRegistry()
	if err := registry.RegisterProvider(st); err != nil {
		return nil, err
	}
	for _, defn := range schema.Indexes {
		if err := registry.Register(defn); err != nil {
			return nil, err
		}
		if err := st.SaveDefinition(ctx, defn); err != nil {
			return nil, err
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	local := testutil.FixedProcessKey(scenario.ProcessKey)
	replayer, err := NewReplayer(ctx, st, schema.Indexes,
		WithProcessKey(local),
		WithNodeTypes(change.NewNodeTypes(scenario.NodeTypes)),
		WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		replayer: replayer,
		keys:     testutil.NewProcessKeys(),
		local:    local,
		logger:   logger,
	}

	result := NewResult()
	if err := h.replay(scenario.ChangeSets); err != nil {
		return nil, err
	}
	result.AddCalls(replayer.Calls())

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    st,
		Registry: registry,
		Types:    ts,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// LoadSchema compiles and validates schema files into one schema.
func LoadSchema(ts types.TypeSystem, paths ...string) (*compiler.Schema, error) {
	schema := &compiler.Schema{}
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema: %w", err)
		}
		s, err := compiler.CompileSource(p, src)
		if err != nil {
			return nil, err
		}
		schema.Merge(s)
	}
	if errs := compiler.Validate(schema, ts); len(errs) > 0 {
		return nil, fmt.Errorf("invalid schema: %w", errs[0])
	}
	return schema, nil
}

func (h *Harness) replay(steps []ChangeSetStep) error {
	for i, step := range steps {
		key := h.local
		switch {
		case step.Replicated:
			key = h.keys.Next()
		case step.ProcessKey != "":
			key = step.ProcessKey
		}
		cs, err := step.ChangeSet(key)
		if err != nil {
			return fmt.Errorf("change_sets[%d].%w", i, err)
		}
		if err := h.replayer.Apply(cs); err != nil {
			return fmt.Errorf("change_sets[%d]: %w", i, err)
		}
		h.logger.Info("change set applied", "step", i, "workspace", cs.Workspace, "process_key", cs.ProcessKey)
	}
	return nil
}
