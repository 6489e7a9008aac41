// Package validate checks a parsed query against a schemata.
//
// Validation never stops at the first violation. Every node of the query is
// visited and each problem is recorded, so callers can report all of them
// at once. A query with problems is still a complete tree; rejecting it is
// up to the caller.
package validate

import (
	"github.com/roach88/contentql/internal/model"
	"github.com/roach88/contentql/internal/schemata"
	"github.com/roach88/contentql/internal/types"
)

// Validate checks cmd against s. Set queries and subqueries are checked
// with their own selectors.
func Validate(s *schemata.Schemata, ts types.TypeSystem, cmd model.QueryCommand) *Problems {
	v := &validator{schemata: s, types: ts, problems: &Problems{}}
	v.command(cmd)
	return v.problems
}

type validator struct {
	schemata *schemata.Schemata
	types    types.TypeSystem
	problems *Problems
}

// scope holds the selectors of one query.
type scope struct {
	// tables maps selector names and aliases to their table, or to nil
	// when the table is unknown.
	tables  map[string]*schemata.Table
	aliases map[string]bool
}

func (v *validator) command(cmd model.QueryCommand) {
	switch c := cmd.(type) {
	case model.Query:
		v.query(c)
	case model.SetQuery:
		v.command(c.Left)
		v.command(c.Right)
	}
}

func (v *validator) query(q model.Query) {
	sc := &scope{
		tables:  make(map[string]*schemata.Table),
		aliases: make(map[string]bool),
	}
	for _, sel := range model.Selectors(q.Source) {
		t, ok := v.schemata.Table(sel.Name)
		if !ok {
			v.problems.add(UnknownTable, "table %q does not exist", sel.Name)
		}
		sc.tables[sel.AliasOrName()] = t
	}
	for _, c := range q.Columns {
		if c.Aliased() {
			sc.aliases[c.ColumnName] = true
		}
	}

	for _, c := range q.Columns {
		v.property(sc, c.Selector, c.Property)
	}
	v.source(sc, q.Source)
	if q.Constraint != nil {
		v.constraint(sc, q.Constraint)
	}
	for _, o := range q.Orderings {
		v.operand(sc, o.Operand)
		if pv, ok := o.Operand.(model.PropertyValue); ok {
			if c, ok := v.column(sc, pv); ok && !c.Orderable {
				v.problems.add(NotOrderable, "column %q of %q cannot be used to order results", pv.Property, pv.Selector)
			}
		}
	}
}

func (v *validator) source(sc *scope, source model.Source) {
	j, ok := source.(model.Join)
	if !ok {
		return
	}
	v.source(sc, j.Left)
	switch c := j.Condition.(type) {
	case model.EquiJoin:
		v.property(sc, c.Selector1, c.Property1)
		v.property(sc, c.Selector2, c.Property2)
	case model.SameNodeJoin:
		v.selector(sc, c.Selector1)
		v.selector(sc, c.Selector2)
	case model.ChildNodeJoin:
		v.selector(sc, c.ChildSelector)
		v.selector(sc, c.ParentSelector)
	case model.DescendantNodeJoin:
		v.selector(sc, c.DescendantSelector)
		v.selector(sc, c.AncestorSelector)
	}
}

func (v *validator) constraint(sc *scope, c model.Constraint) {
	switch c := c.(type) {
	case model.And:
		v.constraint(sc, c.Left)
		v.constraint(sc, c.Right)
	case model.Or:
		v.constraint(sc, c.Left)
		v.constraint(sc, c.Right)
	case model.Not:
		v.constraint(sc, c.Constraint)
	case model.Comparison:
		v.operand(sc, c.Operand)
		v.operator(sc, c.Operand, c.Operator)
		v.static(c.Value)
	case model.Between:
		v.operand(sc, c.Operand)
		v.static(c.Lower)
		v.static(c.Upper)
	case model.SetCriteria:
		v.operand(sc, c.Operand)
		v.operator(sc, c.Operand, model.EqualTo)
		for _, value := range c.Values {
			v.static(value)
		}
	case model.PropertyExistence:
		v.property(sc, c.Selector, c.Property)
	case model.FullTextSearch:
		v.fullTextSearch(sc, c)
	case model.SameNode:
		v.selector(sc, c.Selector)
	case model.ChildNode:
		v.selector(sc, c.Selector)
	case model.DescendantNode:
		v.selector(sc, c.Selector)
	}
}

func (v *validator) fullTextSearch(sc *scope, c model.FullTextSearch) {
	t, ok := v.selector(sc, c.Selector)
	if !ok || t == nil {
		return
	}
	if c.Property == "" {
		if !t.FullTextSearchable() {
			v.problems.add(NotSearchable, "table %q has no full-text searchable columns", t.Name())
		}
		return
	}
	col, ok := v.column(sc, model.PropertyValue{Selector: c.Selector, Property: c.Property})
	if ok && !col.FullTextSearchable {
		v.problems.add(NotSearchable, "column %q of %q is not full-text searchable", c.Property, c.Selector)
	}
}

// operator checks that op is allowed on the column behind operand.
func (v *validator) operator(sc *scope, operand model.DynamicOperand, op model.Operator) {
	pv, ok := operand.(model.PropertyValue)
	if !ok {
		return
	}
	if c, ok := v.column(sc, pv); ok && !c.AllowsOperator(op) {
		v.problems.add(OperatorNotAllowed, "operator %s cannot be used on column %q of %q", op, pv.Property, pv.Selector)
	}
}

func (v *validator) static(op model.StaticOperand) {
	if sub, ok := op.(model.Subquery); ok {
		v.command(sub.Command)
	}
}

func (v *validator) operand(sc *scope, op model.DynamicOperand) {
	switch op := op.(type) {
	case model.PropertyValue:
		v.property(sc, op.Selector, op.Property)
	case model.ReferenceValue:
		if op.Property == "" {
			v.selector(sc, op.Selector)
			return
		}
		v.property(sc, op.Selector, op.Property)
	case model.Length:
		v.property(sc, op.PropertyValue.Selector, op.PropertyValue.Property)
	case model.NodeName:
		v.selector(sc, op.Selector)
	case model.NodeLocalName:
		v.selector(sc, op.Selector)
	case model.NodePath:
		v.selector(sc, op.Selector)
	case model.NodeDepth:
		v.selector(sc, op.Selector)
	case model.FullTextSearchScore:
		v.selector(sc, op.Selector)
	case model.LowerCase:
		v.operand(sc, op.Operand)
	case model.UpperCase:
		v.operand(sc, op.Operand)
	case model.ArithmeticOperand:
		v.operand(sc, op.Left)
		v.operand(sc, op.Right)
		v.numeric(sc, op.Left)
		v.numeric(sc, op.Right)
	}
}

// numeric records a problem when op cannot be converted to a number.
func (v *validator) numeric(sc *scope, op model.DynamicOperand) {
	switch op := op.(type) {
	case model.Length, model.NodeDepth, model.FullTextSearchScore, model.ArithmeticOperand:
	case model.PropertyValue:
		c, ok := v.column(sc, op)
		if ok && !v.types.IsNumeric(c.TypeName) {
			v.problems.add(NonNumericOperand, "column %q of %q has type %s and cannot be used in arithmetic",
				op.Property, op.Selector, c.TypeName)
		}
	default:
		v.problems.add(NonNumericOperand, "%s cannot be used in arithmetic", model.Readable(op))
	}
}

// selector returns the table of a selector. The table is nil when the
// selector names an unknown table.
func (v *validator) selector(sc *scope, name string) (*schemata.Table, bool) {
	t, ok := sc.tables[name]
	if !ok {
		v.problems.add(UnknownSelector, "selector %q is not used in the query", name)
	}
	return t, ok
}

func (v *validator) property(sc *scope, selector, property string) {
	t, ok := v.selector(sc, selector)
	if !ok || t == nil || property == "*" || t.HasExtraColumns() || sc.aliases[property] {
		return
	}
	if _, ok := t.Column(property); !ok {
		v.problems.add(UnknownColumn, "column %q does not exist in table %q", property, t.Name())
	}
}

// column looks up the column behind pv without recording problems.
func (v *validator) column(sc *scope, pv model.PropertyValue) (schemata.Column, bool) {
	t := sc.tables[pv.Selector]
	if t == nil {
		return schemata.Column{}, false
	}
	return t.Column(pv.Property)
}
