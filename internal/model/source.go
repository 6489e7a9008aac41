package model

// Source is what a query selects from.
//
// This is a sealed interface - only Selector and Join implement it.
type Source interface {
	sourceNode()
}

// Selector names a table or view, optionally under an alias.
type Selector struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

func (Selector) sourceNode() {}

// AliasOrName returns the name constraints and columns use to refer to the
// selector.
func (s Selector) AliasOrName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// JoinType is the kind of a join.
type JoinType string

const (
	InnerJoin      JoinType = "INNER"
	LeftOuterJoin  JoinType = "LEFT OUTER"
	RightOuterJoin JoinType = "RIGHT OUTER"
	FullOuterJoin  JoinType = "FULL OUTER"
	CrossJoin      JoinType = "CROSS"
)

// Join combines two sources. Joins chain to the left: A JOIN B JOIN C is
// Join{Join{A, B}, C}.
type Join struct {
	Left      Source        `json:"left"`
	Type      JoinType      `json:"type"`
	Right     Source        `json:"right"`
	Condition JoinCondition `json:"condition,omitempty"` // nil for CROSS joins
}

func (Join) sourceNode() {}

// JoinCondition relates the rows of the two sides of a join.
//
// This is a sealed interface - only types in this package implement it.
type JoinCondition interface {
	joinConditionNode()
}

// EquiJoin matches rows whose property values are equal:
//
//	s1.p1 = s2.p2
type EquiJoin struct {
	Selector1 string `json:"selector1"`
	Property1 string `json:"property1"`
	Selector2 string `json:"selector2"`
	Property2 string `json:"property2"`
}

// SameNodeJoin matches rows that are the same node, or, with a Path, where
// the node of Selector1 is found at Path relative to the node of Selector2.
type SameNodeJoin struct {
	Selector1 string `json:"selector1"`
	Selector2 string `json:"selector2"`
	Path      string `json:"path,omitempty"`
}

// ChildNodeJoin matches rows where the child node is a child of the parent.
type ChildNodeJoin struct {
	ChildSelector  string `json:"childSelector"`
	ParentSelector string `json:"parentSelector"`
}

// DescendantNodeJoin matches rows where one node is below the other.
type DescendantNodeJoin struct {
	DescendantSelector string `json:"descendantSelector"`
	AncestorSelector   string `json:"ancestorSelector"`
}

func (EquiJoin) joinConditionNode()           {}
func (SameNodeJoin) joinConditionNode()       {}
func (ChildNodeJoin) joinConditionNode()      {}
func (DescendantNodeJoin) joinConditionNode() {}

// Selectors returns every selector of a source, left to right.
func Selectors(source Source) []Selector {
	switch s := source.(type) {
	case Selector:
		return []Selector{s}
	case Join:
		return append(Selectors(s.Left), Selectors(s.Right)...)
	default:
		return nil
	}
}

// SelectorsByName indexes the selectors of a source by AliasOrName.
func SelectorsByName(source Source) map[string]Selector {
	all := Selectors(source)
	out := make(map[string]Selector, len(all))
	for _, sel := range all {
		out[sel.AliasOrName()] = sel
	}
	return out
}
