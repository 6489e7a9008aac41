package model

import "math"

// QueryCommand is a complete, executable query.
//
// This is a sealed interface - only Query and SetQuery implement it.
type QueryCommand interface {
	commandNode()
}

// Query is a single SELECT statement.
//
// Semantics:
//
//	SELECT [DISTINCT] <columns> FROM <source>
//	  [WHERE <constraint>] [ORDER BY <orderings>] [LIMIT <limit>]
//
// An empty Columns slice means every column of the source (SELECT *).
type Query struct {
	Source     Source     `json:"source"`
	Constraint Constraint `json:"constraint,omitempty"` // nil when there is no WHERE clause
	Orderings  []Ordering `json:"orderings,omitempty"`
	Columns    []Column   `json:"columns,omitempty"`
	Limit      *Limit     `json:"limit,omitempty"` // nil when unlimited
	Distinct   bool       `json:"distinct,omitempty"`
}

func (Query) commandNode() {}

// SetOperation combines the results of two commands.
type SetOperation string

const (
	Union     SetOperation = "UNION"
	Intersect SetOperation = "INTERSECT"
	Except    SetOperation = "EXCEPT"
)

// SetQuery combines two commands with a set operation.
//
// A chain such as A UNION B EXCEPT C associates to the left:
// SetQuery{Left: SetQuery{A, UNION, B}, EXCEPT, C}.
type SetQuery struct {
	Left      QueryCommand `json:"left"`
	Operation SetOperation `json:"operation"`
	Right     QueryCommand `json:"right"`
	All       bool         `json:"all,omitempty"`
}

func (SetQuery) commandNode() {}

// Column is one entry of the SELECT list.
//
// ColumnName is the name the column is known by in results: the alias
// given with AS, or the property name otherwise.
type Column struct {
	Selector   string `json:"selector"`
	Property   string `json:"property"`
	ColumnName string `json:"columnName"`
}

// Aliased reports whether the column was renamed with AS.
func (c Column) Aliased() bool {
	return c.ColumnName != "" && c.ColumnName != c.Property
}

// Order is the direction of an ordering.
type Order string

const (
	Ascending  Order = "ASC"
	Descending Order = "DESC"
)

// NullOrder places NULL values before or after all others.
type NullOrder string

const (
	NullsDefault NullOrder = ""
	NullsFirst   NullOrder = "NULLS FIRST"
	NullsLast    NullOrder = "NULLS LAST"
)

// Ordering is one entry of the ORDER BY list.
type Ordering struct {
	Operand   DynamicOperand `json:"operand"`
	Order     Order          `json:"order"`
	NullOrder NullOrder      `json:"nullOrder,omitempty"`
}

// Limit bounds the rows returned by a query.
type Limit struct {
	RowLimit int `json:"rowLimit"`
	Offset   int `json:"offset,omitempty"`
}

// Unlimited is the RowLimit of a LIMIT that only sets an offset.
const Unlimited = math.MaxInt

// IsUnlimited reports whether the limit places no bound on the row count.
func (l Limit) IsUnlimited() bool {
	return l.RowLimit == Unlimited
}
