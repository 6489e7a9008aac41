package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contentql/internal/change"
)

// Scenario is a sequence of change sets applied to the indexes of a
// schema, followed by assertions on the resulting operations and values.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Schema lists CUE schema files declaring the indexes under test.
	// Paths are relative to the scenario file once loaded.
	Schema []string `yaml:"schema"`

	// ProcessKey is the local process key of the listeners. Empty means
	// testutil.DefaultProcessKey.
	ProcessKey string `yaml:"process_key,omitempty"`

	// NodeTypes maps a node type to its direct supertypes.
	NodeTypes map[string][]string `yaml:"node_types,omitempty"`

	ChangeSets []ChangeSetStep `yaml:"change_sets"`

	Assertions []Assertion `yaml:"assertions"`
}

// ChangeSetStep is one change set of a scenario.
type ChangeSetStep struct {
	Workspace string `yaml:"workspace"`

	// ProcessKey overrides the key the change set carries. By default a
	// change set carries the local key.
	ProcessKey string `yaml:"process_key,omitempty"`

	// Replicated gives the change set a fresh foreign process key.
	Replicated bool `yaml:"replicated,omitempty"`

	Changes []ChangeStep `yaml:"changes"`
}

// ChangeStep is one change of a change set. Which fields apply depends on Op.
type ChangeStep struct {
	Op         string         `yaml:"op"`
	Key        string         `yaml:"key,omitempty"`
	Type       string         `yaml:"type,omitempty"`
	Mixins     []string       `yaml:"mixins,omitempty"`
	Path       string         `yaml:"path,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Property   string         `yaml:"property,omitempty"`
	Value      any            `yaml:"value,omitempty"`
	Old        any            `yaml:"old,omitempty"`
	Workspace  string         `yaml:"workspace,omitempty"`
}

// Change operation names.
const (
	OpNodeAdded       = "node_added"
	OpNodeRemoved     = "node_removed"
	OpPropertyAdded   = "property_added"
	OpPropertyChanged = "property_changed"
	OpPropertyRemoved = "property_removed"
	OpWorkspaceAdded  = "workspace_added"
)

// Assertion checks the trace or the indexes after replay.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Index     string `yaml:"index,omitempty"`
	Workspace string `yaml:"workspace,omitempty"` // defaults to "default"

	// Line is a trace line (trace_contains).
	Line string `yaml:"line,omitempty"`
	// Lines are trace lines expected in order (trace_order).
	Lines []string `yaml:"lines,omitempty"`
	// Op and Count are used by trace_count.
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Key and Values are used by stored_values. A nil column lists no
	// values.
	Key    string     `yaml:"key,omitempty"`
	Values [][]string `yaml:"values,omitempty"`

	// Query and Variables are used by query; Expect lists the node keys
	// the index returns, in key order.
	Query     string         `yaml:"query,omitempty"`
	Variables map[string]any `yaml:"variables,omitempty"`
	Expect    []string       `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStoredValues  = "stored_values"
	AssertQuery         = "query"
)

// DefaultWorkspace is used by assertions that name no workspace.
const DefaultWorkspace = "default"

// LoadScenario reads and parses a scenario YAML file. Schema paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving schema paths against
// baseDir when it is not empty.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Schema {
		if !filepath.IsAbs(p) && baseDir != "" {
			scenario.Schema[i] = filepath.Join(baseDir, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}
	if len(s.ChangeSets) == 0 {
		return fmt.Errorf("change_sets list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, p := range s.Schema {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	if err := validateChangeSets(s.ChangeSets); err != nil {
		return err
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateChangeSets(steps []ChangeSetStep) error {
	for i, cs := range steps {
		if cs.Workspace == "" {
			return fmt.Errorf("change_sets[%d]: workspace is required", i)
		}
		if cs.Replicated && cs.ProcessKey != "" {
			return fmt.Errorf("change_sets[%d]: process_key and replicated are exclusive", i)
		}
		if _, err := cs.ChangeSet(""); err != nil {
			return fmt.Errorf("change_sets[%d].%w", i, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(i int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", i)
	}
	if a.Index == "" {
		return fmt.Errorf("assertions[%d]: index is required", i)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for trace_contains", i)
		}
	case AssertTraceOrder:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for trace_order", i)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", i)
		}
	case AssertStoredValues:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for stored_values", i)
		}
	case AssertQuery:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for query", i)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}

// ChangeSet converts the step into a change set carrying processKey.
func (s ChangeSetStep) ChangeSet(processKey string) (change.ChangeSet, error) {
	cs := change.ChangeSet{Workspace: s.Workspace, ProcessKey: processKey}
	for j, step := range s.Changes {
		ch, err := step.toChange()
		if err != nil {
			return change.ChangeSet{}, fmt.Errorf("changes[%d]: %w", j, err)
		}
		cs.Changes = append(cs.Changes, ch)
	}
	return cs, nil
}

// ChangeLog is a list of change sets without a schema or assertions, as
// replayed into a database by the CLI.
type ChangeLog struct {
	// ProcessKey is the local process key. Change sets that carry no key
	// of their own carry this one.
	ProcessKey string              `yaml:"process_key,omitempty"`
	NodeTypes  map[string][]string `yaml:"node_types,omitempty"`
	ChangeSets []ChangeSetStep     `yaml:"change_sets"`
}

// LoadChangeLog reads and validates a change log YAML file.
func LoadChangeLog(path string) (*ChangeLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	var log ChangeLog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&log); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(log.ChangeSets) == 0 {
		return nil, fmt.Errorf("invalid change log: change_sets list is required and must be non-empty")
	}
	if err := validateChangeSets(log.ChangeSets); err != nil {
		return nil, fmt.Errorf("invalid change log: %w", err)
	}
	return &log, nil
}

// toChange converts a step to the change it describes.
func (c ChangeStep) toChange() (change.Change, error) {
	if c.Op == OpWorkspaceAdded {
		if c.Workspace == "" {
			return nil, fmt.Errorf("workspace is required for %s", c.Op)
		}
		return change.WorkspaceAdded{Workspace: c.Workspace}, nil
	}

	if c.Key == "" {
		return nil, fmt.Errorf("key is required for %s", c.Op)
	}
	if c.Type == "" {
		return nil, fmt.Errorf("type is required for %s", c.Op)
	}
	node := change.Node{
		NodeKey:     change.NodeKey(c.Key),
		PrimaryType: c.Type,
		MixinTypes:  c.Mixins,
		Path:        c.Path,
	}

	switch c.Op {
	case OpNodeAdded:
		props := make(map[string]change.Property, len(c.Properties))
		for name, v := range c.Properties {
			props[name] = property(name, v)
		}
		return change.NodeAdded{Node: node, Properties: props}, nil
	case OpNodeRemoved:
		return change.NodeRemoved{Node: node}, nil
	}

	if c.Property == "" {
		return nil, fmt.Errorf("property is required for %s", c.Op)
	}
	switch c.Op {
	case OpPropertyAdded:
		return change.PropertyAdded{Node: node, Property: property(c.Property, c.Value)}, nil
	case OpPropertyChanged:
		return change.PropertyChanged{
			Node: node,
			New:  property(c.Property, c.Value),
			Old:  property(c.Property, c.Old),
		}, nil
	case OpPropertyRemoved:
		return change.PropertyRemoved{Node: node, Property: property(c.Property, c.Value)}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", c.Op)
	}
}

// property builds a property from a YAML value: nil has no values, a list
// is multi-valued, anything else is a single value.
func property(name string, v any) change.Property {
	switch v := v.(type) {
	case nil:
		return change.NewProperty(name)
	case []any:
		return change.NewProperty(name, v...)
	default:
		return change.NewProperty(name, v)
	}
}
