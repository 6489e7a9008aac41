// Package change models the content mutation events delivered to index
// listeners.
//
// A ChangeSet is an ordered batch of events for one workspace. Events for
// the same node are contiguous within a change set; listeners rely on
// this and do not reorder.
package change

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// NodeKey is an opaque stable identifier for one content node.
type NodeKey string

// Property is a named, possibly multi-valued node property.
type Property struct {
	Name   string `json:"name" yaml:"name"`
	Values []any  `json:"values" yaml:"values"`
}

// NewProperty returns a property holding the given values.
func NewProperty(name string, values ...any) Property {
	return Property{Name: name, Values: values}
}

// IsMultiple reports whether the property holds more than one value.
func (p Property) IsMultiple() bool { return len(p.Values) > 1 }

// IsEmpty reports whether the property holds no values.
func (p Property) IsEmpty() bool { return len(p.Values) == 0 }

// First returns the first value, or nil when the property is empty.
func (p Property) First() any {
	if len(p.Values) == 0 {
		return nil
	}
	return p.Values[0]
}

func (p Property) String() string {
	vals := make([]string, len(p.Values))
	for i, v := range p.Values {
		vals[i] = fmt.Sprint(v)
	}
	if len(vals) == 1 {
		return p.Name + "=" + vals[0]
	}
	return p.Name + "=[" + strings.Join(vals, ",") + "]"
}

// Change is one mutation event.
//
// This is a sealed interface - only types in this package can implement it.
type Change interface {
	changeMarker()
}

// NodeChange is an event about a specific node.
type NodeChange interface {
	Change
	Key() NodeKey
	// Types returns the primary and mixin types of the node.
	Types() (primary string, mixins []string)
}

// Node identifies the node an event is about.
type Node struct {
	NodeKey     NodeKey  `json:"key" yaml:"key"`
	PrimaryType string   `json:"primaryType" yaml:"primaryType"`
	MixinTypes  []string `json:"mixinTypes,omitempty" yaml:"mixinTypes,omitempty"`
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
}

func (n Node) Key() NodeKey { return n.NodeKey }

func (n Node) Types() (string, []string) { return n.PrimaryType, n.MixinTypes }

// NodeAdded reports a new node together with its initial properties.
type NodeAdded struct {
	Node
	Properties map[string]Property
}

// NodeRemoved reports a removed node.
type NodeRemoved struct {
	Node
}

// PropertyAdded reports a property set on an existing node.
type PropertyAdded struct {
	Node
	Property Property
}

// PropertyChanged reports a property whose value changed.
type PropertyChanged struct {
	Node
	New Property
	Old Property
}

// PropertyRemoved reports a property removed from a node.
type PropertyRemoved struct {
	Node
	Property Property
}

// WorkspaceAdded reports a new workspace. It is not about any node.
type WorkspaceAdded struct {
	Workspace string
}

func (NodeAdded) changeMarker()       {}
func (NodeRemoved) changeMarker()     {}
func (PropertyAdded) changeMarker()   {}
func (PropertyChanged) changeMarker() {}
func (PropertyRemoved) changeMarker() {}
func (WorkspaceAdded) changeMarker()  {}

// ChangeSet is an ordered batch of events for one workspace.
type ChangeSet struct {
	Workspace string
	// ProcessKey identifies the process that made the changes. Change sets
	// from other processes were replicated to this one.
	ProcessKey string
	Changes    []Change
}

// Listener receives change sets.
//
// Implementations are not required to be safe for concurrent use.
type Listener interface {
	Notify(cs ChangeSet) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(cs ChangeSet) error

func (f ListenerFunc) Notify(cs ChangeSet) error { return f(cs) }

// NewProcessKey returns a fresh random process key.
func NewProcessKey() string {
	return uuid.NewString()
}

// ContiguityError reports a change set whose events for one node are
// interleaved with events for another.
type ContiguityError struct {
	Key   NodeKey
	Index int
}

func (e *ContiguityError) Error() string {
	return fmt.Sprintf("events for node %q resume at change %d after events for other nodes", e.Key, e.Index)
}

// CheckContiguous verifies that all events for each node are adjacent.
func CheckContiguous(cs ChangeSet) error {
	done := make(map[NodeKey]bool)
	var current NodeKey
	started := false
	for i, c := range cs.Changes {
		nc, ok := c.(NodeChange)
		if !ok {
			continue
		}
		key := nc.Key()
		if started && key == current {
			continue
		}
		if done[key] {
			return &ContiguityError{Key: key, Index: i}
		}
		if started {
			done[current] = true
		}
		current, started = key, true
	}
	return nil
}

// Keys returns the distinct node keys of a change set in first-seen order.
func Keys(cs ChangeSet) []NodeKey {
	var keys []NodeKey
	for _, c := range cs.Changes {
		if nc, ok := c.(NodeChange); ok && !slices.Contains(keys, nc.Key()) {
			keys = append(keys, nc.Key())
		}
	}
	return keys
}
