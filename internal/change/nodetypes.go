package change

import "slices"

// NodeTypes answers whether a node's types satisfy a node type, taking
// supertypes into account.
type NodeTypes struct {
	supertypes map[string][]string
}

// NewNodeTypes returns a predicate over the given type hierarchy, keyed by
// type name with the direct supertypes as values.
func NewNodeTypes(supertypes map[string][]string) *NodeTypes {
	copied := make(map[string][]string, len(supertypes))
	for k, v := range supertypes {
		copied[k] = slices.Clone(v)
	}
	return &NodeTypes{supertypes: copied}
}

// IsTypeOrSubtype reports whether typeName is target or inherits from it.
func (n *NodeTypes) IsTypeOrSubtype(typeName, target string) bool {
	seen := make(map[string]bool)
	pending := []string{typeName}
	for len(pending) > 0 {
		t := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if t == target {
			return true
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		if n != nil {
			pending = append(pending, n.supertypes[t]...)
		}
	}
	return false
}

// Matches reports whether the primary type or any mixin satisfies target.
func (n *NodeTypes) Matches(primary string, mixins []string, target string) bool {
	if n.IsTypeOrSubtype(primary, target) {
		return true
	}
	for _, m := range mixins {
		if n.IsTypeOrSubtype(m, target) {
			return true
		}
	}
	return false
}
