package planning

import (
	"fmt"

	"github.com/shopspring/decimal"

	"research-budget/pkg/confidence"
)

const (
	noResourcesSummary   = "No available resources to assign"
	CriterionNoResources = "no resources available"
	CriterionFirstFit    = "first available resource"
	CriterionCeiling     = "budget ceiling constraint"
)

// HeuristicCriteria are reported on every heuristic plan that had resources to work with
func HeuristicCriteria() []string {
	return []string{CriterionFirstFit, CriterionCeiling}
}

// Allocate builds a plan without any external service.
//
// Every activity, in input order, is offered the first available resource. The
// assignment is kept when the running cost stays within the ceiling and the
// activity is skipped otherwise. The same resource is offered to every activity.
func Allocate(activities []Activity, resources []Resource, ceiling decimal.Decimal) BudgetPlanResult {
	available := make([]Resource, 0, len(resources))
	for _, r := range resources {
		if r.Available {
			available = append(available, r)
		}
	}

	if len(available) == 0 {
		return BudgetPlanResult{
			Assignments: []ResourceAssignment{},
			Summary:     noResourcesSummary,
			Criteria:    []string{CriterionNoResources},
			Confidence:  confidence.None,
			Source:      SourceHeuristic,
		}
	}

	pick := available[0]
	running := decimal.Zero
	assignments := make([]ResourceAssignment, 0, len(activities))

	for _, activity := range activities {
		next := running.Add(pick.Cost)
		if next.GreaterThan(ceiling) {
			continue
		}
		assignments = append(assignments, ResourceAssignment{
			ActivityID:   activity.ID,
			ResourceID:   pick.ID,
			ResourceName: pick.Name,
			AssignedCost: pick.Cost,
		})
		running = next
	}

	return BudgetPlanResult{
		Assignments: assignments,
		Summary: fmt.Sprintf("Heuristic plan assigned %d of %d activities within a budget ceiling of %s",
			len(assignments), len(activities), ceiling.StringFixed(2)),
		Criteria:   HeuristicCriteria(),
		Confidence: confidence.Heuristic,
		Source:     SourceHeuristic,
	}
}
