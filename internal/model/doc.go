// Package model defines the abstract syntax tree produced by the SQL parser.
//
// The tree is a set of sealed interfaces. Each interface has a marker
// method so that only types in this package implement it and consumers
// (the validator, the view resolver, the index store) can write exhaustive
// type switches:
//
//   - QueryCommand: Query | SetQuery
//   - Source: Selector | Join
//   - JoinCondition: EquiJoin | SameNodeJoin | ChildNodeJoin | DescendantNodeJoin
//   - Constraint: And | Or | Not | Comparison | Between | PropertyExistence |
//     SetCriteria | FullTextSearch | SameNode | ChildNode | DescendantNode
//   - DynamicOperand: PropertyValue | ReferenceValue | Length | NodeName |
//     NodeLocalName | NodePath | NodeDepth | FullTextSearchScore | LowerCase |
//     UpperCase | ArithmeticOperand
//   - StaticOperand: Literal | BindVariableName | Subquery
//
// Nodes are plain values. Nothing in this package mutates a node after it
// has been built, and callers must not either: trees are shared between the
// parser, the schemata and the validator.
//
// Selector names are case-sensitive and unique within one query. Readable
// renders any node back into query text.
package model
