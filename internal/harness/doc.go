// Package harness replays change-set scenarios through index listeners
// and checks what the indexes end up holding.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: page_titles
//	description: "Titles are indexed as pages change"
//	schema:
//	  - schema.cue
//	process_key: test-process-local
//	node_types:
//	  "app:article": ["app:page"]
//	change_sets:
//	  - workspace: default
//	    changes:
//	      - op: node_added
//	        key: n1
//	        type: "app:page"
//	        properties: { title: Home, tags: [a, b] }
//	      - op: property_changed
//	        key: n1
//	        type: "app:page"
//	        property: title
//	        value: Start
//	        old: Home
//	  - workspace: default
//	    replicated: true
//	    changes:
//	      - op: node_removed
//	        key: n1
//	        type: "app:page"
//	assertions:
//	  - type: trace_contains
//	    index: titles
//	    line: "change n1 new=title=Start old=title=Home"
//	  - type: query
//	    index: titles
//	    query: "SELECT * FROM [app:page] AS p WHERE p.title = 'Start'"
//	    expect: [n1]
//
// Schema paths are relative to the scenario file. Every index the schema
// declares gets a listener writing to a fresh in-memory store.
//
// # Change Operations
//
//   - node_added: key, type, mixins, path, properties
//   - node_removed: key, type
//   - property_added, property_removed: key, type, property, value
//   - property_changed: key, type, property, value, old
//   - workspace_added: workspace
//
// A value is a scalar or a list; a list is a multi-valued property.
//
// # Assertion Types
//
//   - trace_contains: a call line appears in the trace of an index
//   - trace_order: call lines appear in order (others may intervene)
//   - trace_count: an operation happens exactly count times on an index
//   - stored_values: the values stored for a node, by column
//   - query: the nodes an index returns for the WHERE clause of a query
//
// # Deterministic Testing
//
// Listeners use a fixed local process key (scenario.process_key or
// testutil.DefaultProcessKey) and replicated change sets get numbered keys,
// so the local flag and every trace line are the same on each run. Traces
// compare against golden files with goldie.
package harness
