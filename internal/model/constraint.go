package model

import (
	"strings"

	"github.com/roach88/contentql/internal/fulltext"
)

// Constraint is a predicate in a WHERE clause.
//
// This is a sealed interface - only types in this package implement it.
type Constraint interface {
	constraintNode()
}

// And is satisfied when both sides are.
type And struct {
	Left  Constraint `json:"left"`
	Right Constraint `json:"right"`
}

// Or is satisfied when either side is.
type Or struct {
	Left  Constraint `json:"left"`
	Right Constraint `json:"right"`
}

// Not negates a constraint.
type Not struct {
	Constraint Constraint `json:"constraint"`
}

// Comparison compares a per-row value with a static value:
//
//	<operand> <operator> <value>
type Comparison struct {
	Operand  DynamicOperand `json:"operand"`
	Operator Operator       `json:"operator"`
	Value    StaticOperand  `json:"value"`
}

// Between tests a value against a range. Bounds are inclusive unless
// marked EXCLUSIVE in the query.
type Between struct {
	Operand        DynamicOperand `json:"operand"`
	Lower          StaticOperand  `json:"lower"`
	Upper          StaticOperand  `json:"upper"`
	LowerInclusive bool           `json:"lowerInclusive"`
	UpperInclusive bool           `json:"upperInclusive"`
}

// PropertyExistence is satisfied when the property has a value:
//
//	<selector>.<property> IS NOT NULL
//
// IS NULL parses as Not{PropertyExistence}.
type PropertyExistence struct {
	Selector string `json:"selector"`
	Property string `json:"property"`
}

// SetCriteria is satisfied when the operand equals any of the values:
//
//	<operand> IN (<values>)
type SetCriteria struct {
	Operand DynamicOperand  `json:"operand"`
	Values  []StaticOperand `json:"values"`
}

// FullTextSearch matches nodes against a full-text expression. An empty
// Property searches every full-text searchable column of the selector.
type FullTextSearch struct {
	Selector   string        `json:"selector"`
	Property   string        `json:"property,omitempty"`
	Expression string        `json:"expression"`
	Term       fulltext.Term `json:"term,omitempty"`
}

// SameNode is satisfied by the node at Path.
type SameNode struct {
	Selector string `json:"selector"`
	Path     string `json:"path"`
}

// ChildNode is satisfied by the children of the node at ParentPath.
type ChildNode struct {
	Selector   string `json:"selector"`
	ParentPath string `json:"parentPath"`
}

// DescendantNode is satisfied by every node below AncestorPath.
type DescendantNode struct {
	Selector     string `json:"selector"`
	AncestorPath string `json:"ancestorPath"`
}

func (And) constraintNode()               {}
func (Or) constraintNode()                {}
func (Not) constraintNode()               {}
func (Comparison) constraintNode()        {}
func (Between) constraintNode()           {}
func (PropertyExistence) constraintNode() {}
func (SetCriteria) constraintNode()       {}
func (FullTextSearch) constraintNode()    {}
func (SameNode) constraintNode()          {}
func (ChildNode) constraintNode()         {}
func (DescendantNode) constraintNode()    {}

// Operator is a comparison operator.
type Operator string

const (
	EqualTo              Operator = "="
	NotEqualTo           Operator = "!="
	LessThan             Operator = "<"
	LessThanOrEqualTo    Operator = "<="
	GreaterThan          Operator = ">"
	GreaterThanOrEqualTo Operator = ">="
	Like                 Operator = "LIKE"
)

// Operators lists every comparison operator.
var Operators = []Operator{EqualTo, NotEqualTo, LessThan, LessThanOrEqualTo, GreaterThan, GreaterThanOrEqualTo, Like}

// ParseOperator maps query text to an Operator. "<>" is accepted as NotEqualTo.
func ParseOperator(symbol string) (Operator, bool) {
	switch symbol {
	case "=":
		return EqualTo, true
	case "!=", "<>":
		return NotEqualTo, true
	case "<":
		return LessThan, true
	case "<=":
		return LessThanOrEqualTo, true
	case ">":
		return GreaterThan, true
	case ">=":
		return GreaterThanOrEqualTo, true
	default:
		if strings.EqualFold(symbol, string(Like)) {
			return Like, true
		}
		return "", false
	}
}

// ConstraintSelectors returns the selector names a constraint refers to,
// in first-seen order.
func ConstraintSelectors(c Constraint) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var walk func(Constraint)
	walk = func(c Constraint) {
		switch c := c.(type) {
		case And:
			walk(c.Left)
			walk(c.Right)
		case Or:
			walk(c.Left)
			walk(c.Right)
		case Not:
			walk(c.Constraint)
		case Comparison:
			for _, n := range OperandSelectors(c.Operand) {
				add(n)
			}
		case Between:
			for _, n := range OperandSelectors(c.Operand) {
				add(n)
			}
		case SetCriteria:
			for _, n := range OperandSelectors(c.Operand) {
				add(n)
			}
		case PropertyExistence:
			add(c.Selector)
		case FullTextSearch:
			add(c.Selector)
		case SameNode:
			add(c.Selector)
		case ChildNode:
			add(c.Selector)
		case DescendantNode:
			add(c.Selector)
		}
	}
	walk(c)
	return names
}
