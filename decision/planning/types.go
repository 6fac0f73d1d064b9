// Package planning assigns resources to project activities under a budget ceiling.
// Plans come from an external planning service when it is reachable and from a
// local heuristic otherwise; both produce the same result shape.
package planning

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Source identifies which planner produced a result
type Source string

const (
	SourcePlanner   Source = "planner"
	SourceHeuristic Source = "heuristic"
)

// Activity is a project activity that resources can be assigned to
type Activity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Resource is a candidate resource with a unit cost
type Resource struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Cost      decimal.Decimal `json:"cost"`
	Available bool            `json:"available"`
}

// ResourceAssignment binds one resource to one activity at a cost
type ResourceAssignment struct {
	ActivityID   int64           `json:"activityId"`
	ResourceID   int64           `json:"resourceId"`
	ResourceName string          `json:"resourceName"`
	AssignedCost decimal.Decimal `json:"assignedCost"`
}

// BudgetPlanRequest is the input to every planner
type BudgetPlanRequest struct {
	Activities    []Activity      `json:"activities"`
	Resources     []Resource      `json:"resources"`
	BudgetCeiling decimal.Decimal `json:"budgetCeiling"`
}

// Validate checks the request before it reaches a planner
func (r BudgetPlanRequest) Validate() error {
	if r.BudgetCeiling.IsNegative() {
		return fmt.Errorf("budget ceiling must be non-negative, got %s", r.BudgetCeiling.String())
	}
	for _, res := range r.Resources {
		if res.Cost.IsNegative() {
			return fmt.Errorf("resource %d has negative cost %s", res.ID, res.Cost.String())
		}
	}
	return nil
}

// BudgetPlanResult is the unified plan returned to callers.
// The sum of AssignedCost never exceeds the request's ceiling.
type BudgetPlanResult struct {
	Assignments []ResourceAssignment `json:"assignments"`
	Summary     string               `json:"summary"`
	Criteria    []string             `json:"criteria"`
	Confidence  float64              `json:"confidence"`

	// Source is kept out of the wire format; callers only see confidence and criteria.
	Source Source `json:"-"`
}

// TotalCost sums the assigned cost of every assignment
func (r BudgetPlanResult) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Assignments {
		total = total.Add(a.AssignedCost)
	}
	return total
}

// WithinCeiling reports whether the plan respects the ceiling
func (r BudgetPlanResult) WithinCeiling(ceiling decimal.Decimal) bool {
	return r.TotalCost().LessThanOrEqual(ceiling)
}

// empty reports a plan with no assignments, summary or criteria
func (r BudgetPlanResult) empty() bool {
	return len(r.Assignments) == 0 && r.Summary == "" && len(r.Criteria) == 0
}
