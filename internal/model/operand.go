package model

import "slices"

// DynamicOperand is a value computed for each row.
//
// This is a sealed interface - only types in this package implement it.
type DynamicOperand interface {
	dynamicOperandNode()
}

// PropertyValue is the value of a property: selector.property.
type PropertyValue struct {
	Selector string `json:"selector"`
	Property string `json:"property"`
}

// ReferenceValue is the value of a reference property, or of any reference
// property of the node when Property is empty.
type ReferenceValue struct {
	Selector string `json:"selector"`
	Property string `json:"property,omitempty"`
}

// Length is the length of a property value: LENGTH(selector.property).
type Length struct {
	PropertyValue PropertyValue `json:"propertyValue"`
}

// NodeName is the qualified name of the node: NAME(selector).
type NodeName struct {
	Selector string `json:"selector"`
}

// NodeLocalName is the local part of the node name: LOCALNAME(selector).
type NodeLocalName struct {
	Selector string `json:"selector"`
}

// NodePath is the path of the node: PATH(selector).
type NodePath struct {
	Selector string `json:"selector"`
}

// NodeDepth is the depth of the node: DEPTH(selector).
type NodeDepth struct {
	Selector string `json:"selector"`
}

// FullTextSearchScore is the relevance score of the row: SCORE(selector).
type FullTextSearchScore struct {
	Selector string `json:"selector"`
}

// LowerCase is LOWER(operand).
type LowerCase struct {
	Operand DynamicOperand `json:"operand"`
}

// UpperCase is UPPER(operand).
type UpperCase struct {
	Operand DynamicOperand `json:"operand"`
}

// ArithmeticOperand combines two operands: left <op> right.
type ArithmeticOperand struct {
	Left     DynamicOperand     `json:"left"`
	Operator ArithmeticOperator `json:"operator"`
	Right    DynamicOperand     `json:"right"`
}

func (PropertyValue) dynamicOperandNode()       {}
func (ReferenceValue) dynamicOperandNode()      {}
func (Length) dynamicOperandNode()              {}
func (NodeName) dynamicOperandNode()            {}
func (NodeLocalName) dynamicOperandNode()       {}
func (NodePath) dynamicOperandNode()            {}
func (NodeDepth) dynamicOperandNode()           {}
func (FullTextSearchScore) dynamicOperandNode() {}
func (LowerCase) dynamicOperandNode()           {}
func (UpperCase) dynamicOperandNode()           {}
func (ArithmeticOperand) dynamicOperandNode()   {}

// ArithmeticOperator is one of + - * /.
type ArithmeticOperator string

const (
	Add      ArithmeticOperator = "+"
	Subtract ArithmeticOperator = "-"
	Multiply ArithmeticOperator = "*"
	Divide   ArithmeticOperator = "/"
)

// ParseArithmeticOperator maps a symbol to an ArithmeticOperator.
func ParseArithmeticOperator(symbol string) (ArithmeticOperator, bool) {
	switch op := ArithmeticOperator(symbol); op {
	case Add, Subtract, Multiply, Divide:
		return op, true
	default:
		return "", false
	}
}

// Precedence is 2 for * and /, 1 for + and -.
func (o ArithmeticOperator) Precedence() int {
	if o == Multiply || o == Divide {
		return 2
	}
	return 1
}

// Precedes reports whether o binds tighter than other.
func (o ArithmeticOperator) Precedes(other ArithmeticOperator) bool {
	return o.Precedence() > other.Precedence()
}

// StaticOperand is a value known without evaluating a row.
//
// This is a sealed interface - only types in this package implement it.
type StaticOperand interface {
	staticOperandNode()
}

// Literal is a typed constant. Value is the canonical string form produced
// by the type system, so equal values written differently compare equal.
type Literal struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// BindVariableName is a $name placeholder supplied at execution time.
type BindVariableName struct {
	Name string `json:"name"`
}

// Subquery is a nested command whose results are used as values.
type Subquery struct {
	Command QueryCommand `json:"command"`
}

func (Literal) staticOperandNode()          {}
func (BindVariableName) staticOperandNode() {}
func (Subquery) staticOperandNode()         {}

// OperandSelectors returns the selector names a dynamic operand refers to.
func OperandSelectors(op DynamicOperand) []string {
	switch op := op.(type) {
	case PropertyValue:
		return []string{op.Selector}
	case ReferenceValue:
		return []string{op.Selector}
	case Length:
		return []string{op.PropertyValue.Selector}
	case NodeName:
		return []string{op.Selector}
	case NodeLocalName:
		return []string{op.Selector}
	case NodePath:
		return []string{op.Selector}
	case NodeDepth:
		return []string{op.Selector}
	case FullTextSearchScore:
		return []string{op.Selector}
	case LowerCase:
		return OperandSelectors(op.Operand)
	case UpperCase:
		return OperandSelectors(op.Operand)
	case ArithmeticOperand:
		left := OperandSelectors(op.Left)
		for _, name := range OperandSelectors(op.Right) {
			if !slices.Contains(left, name) {
				left = append(left, name)
			}
		}
		return left
	default:
		return nil
	}
}
