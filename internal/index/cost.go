package index

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/contentql/internal/model"
)

// Cost estimates for one use of an index. Lower is better.
const (
	// LocalCost is the cost of an index held in this process.
	LocalCost = 100
	// RemoteCost is the cost of an index behind a network hop.
	RemoteCost = 1000
)

// Usage is one candidate use of an index reported during planning.
type Usage struct {
	IndexName      string                `json:"index"`
	Workspace      string                `json:"workspace"`
	ProviderName   string                `json:"provider"`
	Constraints    []model.Constraint    `json:"constraints,omitempty"`
	JoinConditions []model.JoinCondition `json:"joinConditions,omitempty"`
	Cost           int                   `json:"cost"`
	Cardinality    int64                 `json:"cardinality"`
	// Selectivity is the fraction of all rows expected to match, when known.
	Selectivity *float64       `json:"selectivity,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CostCalculator is what the planner hands a provider so that it can
// describe the query and collect candidate index usages.
type CostCalculator interface {
	// SelectedNodeTypes returns the node types the selector is limited to.
	// Empty means any node type.
	SelectedNodeTypes() []string
	// AndedConstraints returns the constraints that must all hold.
	AndedConstraints() []model.Constraint
	JoinConditions() []model.JoinCondition
	// Variables returns the bind variable values of the query.
	Variables() map[string]any
	// AddIndex records a candidate usage.
	AddIndex(u Usage) error
}

// Collector is a CostCalculator that keeps every usage it is given.
type Collector struct {
	nodeTypes      []string
	constraints    []model.Constraint
	joinConditions []model.JoinCondition
	variables      map[string]any
	reports        []Usage
}

// NewCollector returns a collector for the given query description. The
// constraint is flattened into its top-level conjuncts.
func NewCollector(nodeTypes []string, constraint model.Constraint, joins []model.JoinCondition, vars map[string]any) *Collector {
	return &Collector{
		nodeTypes:      slices.Clone(nodeTypes),
		constraints:    AndedConstraints(constraint),
		joinConditions: slices.Clone(joins),
		variables:      maps.Clone(vars),
	}
}

func (c *Collector) SelectedNodeTypes() []string          { return c.nodeTypes }
func (c *Collector) AndedConstraints() []model.Constraint { return c.constraints }
func (c *Collector) JoinConditions() []model.JoinCondition {
	return c.joinConditions
}
func (c *Collector) Variables() map[string]any { return c.variables }

// AddIndex validates and records a usage.
func (c *Collector) AddIndex(u Usage) error {
	if u.IndexName == "" {
		return fmt.Errorf("index usage: index name is required")
	}
	if u.Cost < 0 {
		return fmt.Errorf("index usage %q: cost %d is negative", u.IndexName, u.Cost)
	}
	if u.Cardinality < 0 {
		return fmt.Errorf("index usage %q: cardinality %d is negative", u.IndexName, u.Cardinality)
	}
	if u.Selectivity != nil && (*u.Selectivity < 0 || *u.Selectivity > 1) {
		return fmt.Errorf("index usage %q: selectivity %g is outside [0,1]", u.IndexName, *u.Selectivity)
	}
	c.reports = append(c.reports, u)
	return nil
}

// Reports returns the recorded usages in the order they were added.
func (c *Collector) Reports() []Usage {
	return slices.Clone(c.reports)
}

// Best returns the usage with the lowest cost, breaking ties by the lowest
// cardinality and then by index name.
func (c *Collector) Best() (Usage, bool) {
	if len(c.reports) == 0 {
		return Usage{}, false
	}
	return slices.MinFunc(c.reports, compareUsage), true
}

func compareUsage(a, b Usage) int {
	switch {
	case a.Cost != b.Cost:
		return a.Cost - b.Cost
	case a.Cardinality < b.Cardinality:
		return -1
	case a.Cardinality > b.Cardinality:
		return 1
	case a.IndexName < b.IndexName:
		return -1
	case a.IndexName > b.IndexName:
		return 1
	}
	return 0
}

// AndedConstraints flattens nested And nodes into their conjuncts.
func AndedConstraints(c model.Constraint) []model.Constraint {
	if c == nil {
		return nil
	}
	if and, ok := c.(model.And); ok {
		return append(AndedConstraints(and.Left), AndedConstraints(and.Right)...)
	}
	return []model.Constraint{c}
}

// ApplicableConstraints returns the constraints an index over defn can
// answer: those restricting one of its columns.
func ApplicableConstraints(defn Definition, constraints []model.Constraint) []model.Constraint {
	var out []model.Constraint
	for _, c := range constraints {
		if applies(defn, c) {
			out = append(out, c)
		}
	}
	return out
}

func applies(defn Definition, c model.Constraint) bool {
	switch c := c.(type) {
	case model.Comparison:
		return indexedOperand(defn, c.Operand)
	case model.Between:
		return indexedOperand(defn, c.Operand)
	case model.SetCriteria:
		return indexedOperand(defn, c.Operand)
	case model.PropertyExistence:
		return defn.ColumnIndex(c.Property) >= 0
	case model.FullTextSearch:
		if defn.Kind != FullTextSearch {
			return false
		}
		return c.Property == "" || defn.ColumnIndex(c.Property) >= 0
	case model.Not:
		return applies(defn, c.Constraint)
	case model.Or:
		return applies(defn, c.Left) && applies(defn, c.Right)
	}
	return false
}

func indexedOperand(defn Definition, op model.DynamicOperand) bool {
	switch op := op.(type) {
	case model.PropertyValue:
		return defn.ColumnIndex(op.Property) >= 0
	case model.ReferenceValue:
		return op.Property != "" && defn.ColumnIndex(op.Property) >= 0
	case model.Length:
		return defn.ColumnIndex(op.PropertyValue.Property) >= 0
	case model.LowerCase:
		return indexedOperand(defn, op.Operand)
	case model.UpperCase:
		return indexedOperand(defn, op.Operand)
	}
	return false
}

// Estimator counts the rows of an index.
type Estimator interface {
	// EstimateCardinality returns the number of rows expected to satisfy
	// every constraint.
	EstimateCardinality(ctx context.Context, defn Definition, workspace string, constraints []model.Constraint, vars map[string]any) (int64, error)
	// EstimateTotalCount returns the number of rows in the index.
	EstimateTotalCount(ctx context.Context, defn Definition, workspace string) (int64, error)
}

// PlanOption configures Plan.
type PlanOption func(*planConfig)

type planConfig struct {
	cost int
}

// WithCost sets the cost reported for the index. The default is LocalCost.
func WithCost(cost int) PlanOption {
	return func(c *planConfig) { c.cost = cost }
}

// Plan reports a usage of the index to calc when the index can answer part
// of the query. Constraints are preferred; when none apply but join
// conditions exist the whole index is offered at its total count. It
// returns whether a usage was added.
func Plan(ctx context.Context, calc CostCalculator, est Estimator, defn Definition, workspace string, opts ...PlanOption) (bool, error) {
	cfg := planConfig{cost: LocalCost}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !defn.Enabled || !defn.UsedInWorkspace(workspace) {
		return false, nil
	}
	if types := calc.SelectedNodeTypes(); len(types) > 0 && !slices.Contains(types, defn.NodeTypeName) {
		return false, nil
	}

	usage := Usage{
		IndexName:    defn.Name,
		Workspace:    workspace,
		ProviderName: defn.ProviderName,
		Cost:         cfg.cost,
	}
	applicable := ApplicableConstraints(defn, calc.AndedConstraints())
	total, err := est.EstimateTotalCount(ctx, defn, workspace)
	if err != nil {
		return false, fmt.Errorf("index %q: total count: %w", defn.Name, err)
	}

	switch {
	case len(applicable) > 0:
		card, err := est.EstimateCardinality(ctx, defn, workspace, applicable, calc.Variables())
		if err != nil {
			return false, fmt.Errorf("index %q: cardinality: %w", defn.Name, err)
		}
		usage.Constraints = applicable
		usage.Cardinality = card
	case len(calc.JoinConditions()) > 0:
		usage.JoinConditions = calc.JoinConditions()
		usage.Cardinality = total
	default:
		return false, nil
	}

	if total > 0 {
		s := min(float64(usage.Cardinality)/float64(total), 1)
		usage.Selectivity = &s
	}
	if err := calc.AddIndex(usage); err != nil {
		return false, err
	}
	return true, nil
}
