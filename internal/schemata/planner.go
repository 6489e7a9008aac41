package schemata

import (
	"fmt"

	"github.com/roach88/contentql/internal/model"
)

// ProjectedColumn is one column produced by a view definition.
type ProjectedColumn struct {
	// Selector is the selector name or alias used in the definition.
	Selector string
	// Table is the table or view the selector reads from.
	Table    string
	Property string
	// ColumnName is the name the view exposes the column under.
	ColumnName string
}

// Planner computes the columns a view definition produces.
type Planner interface {
	// ProjectedColumns resolves cmd against s. It returns an error
	// wrapping ErrUnresolved when cmd references a table s does not
	// contain yet.
	ProjectedColumns(s *Schemata, cmd model.QueryCommand) ([]ProjectedColumn, error)
}

// ProjectionPlanner is the default Planner. It projects the SELECT list of
// a query, or every SELECT * column of its selectors, and for a set query
// the columns of the left side.
type ProjectionPlanner struct{}

// ProjectedColumns implements Planner.
func (p ProjectionPlanner) ProjectedColumns(s *Schemata, cmd model.QueryCommand) ([]ProjectedColumn, error) {
	switch c := cmd.(type) {
	case model.Query:
		return projectQuery(s, c)
	case model.SetQuery:
		left, err := p.ProjectedColumns(s, c.Left)
		if err != nil {
			return nil, err
		}
		if _, err := p.ProjectedColumns(s, c.Right); err != nil {
			return nil, err
		}
		return left, nil
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

func projectQuery(s *Schemata, q model.Query) ([]ProjectedColumn, error) {
	selectors := model.Selectors(q.Source)
	tables := make(map[string]*Table, len(selectors))
	for _, sel := range selectors {
		t, ok := s.Table(sel.Name)
		if !ok {
			return nil, fmt.Errorf("%w: table %q", ErrUnresolved, sel.Name)
		}
		tables[sel.AliasOrName()] = t
	}

	if len(q.Columns) == 0 {
		var cols []ProjectedColumn
		for _, sel := range selectors {
			t := tables[sel.AliasOrName()]
			for _, name := range t.selectStar {
				cols = append(cols, ProjectedColumn{
					Selector:   sel.AliasOrName(),
					Table:      t.name,
					Property:   name,
					ColumnName: name,
				})
			}
		}
		return cols, nil
	}

	cols := make([]ProjectedColumn, 0, len(q.Columns))
	for _, c := range q.Columns {
		t, ok := tables[c.Selector]
		if !ok {
			return nil, fmt.Errorf("%w: selector %q", ErrUnresolved, c.Selector)
		}
		name := c.ColumnName
		if name == "" {
			name = c.Property
		}
		cols = append(cols, ProjectedColumn{
			Selector:   c.Selector,
			Table:      t.name,
			Property:   c.Property,
			ColumnName: name,
		})
	}
	return cols, nil
}
