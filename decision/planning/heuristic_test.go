package planning

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAllocate_SkipsActivitiesOverCeiling(t *testing.T) {
	activities := []Activity{{ID: 1, Name: "A1"}, {ID: 2, Name: "A2"}}
	resources := []Resource{{ID: 1, Name: "Laptop", Cost: d(100), Available: true}}

	result := Allocate(activities, resources, d(150))

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, int64(1), result.Assignments[0].ActivityID)
	assert.Equal(t, int64(1), result.Assignments[0].ResourceID)
	assert.Equal(t, "Laptop", result.Assignments[0].ResourceName)
	assert.True(t, result.Assignments[0].AssignedCost.Equal(d(100)))
	assert.Contains(t, result.Summary, "1")
	assert.Equal(t, []string{"first available resource", "budget ceiling constraint"}, result.Criteria)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, SourceHeuristic, result.Source)
}

func TestAllocate_NoAvailableResources(t *testing.T) {
	activities := []Activity{{ID: 1, Name: "A1"}}
	resources := []Resource{{ID: 1, Name: "Server", Cost: d(10), Available: false}}

	for name, res := range map[string][]Resource{"unavailable": resources, "empty": nil} {
		t.Run(name, func(t *testing.T) {
			result := Allocate(activities, res, d(1000))
			assert.Empty(t, result.Assignments)
			assert.NotNil(t, result.Assignments)
			assert.Equal(t, 0.0, result.Confidence)
			assert.Equal(t, []string{"no resources available"}, result.Criteria)
			assert.Equal(t, "No available resources to assign", result.Summary)
		})
	}
}

func TestAllocate_UsesFirstAvailableResourceForEveryActivity(t *testing.T) {
	activities := []Activity{{ID: 10}, {ID: 20}, {ID: 30}}
	resources := []Resource{
		{ID: 1, Name: "Busy", Cost: d(1), Available: false},
		{ID: 2, Name: "Analyst", Cost: d(40), Available: true},
		{ID: 3, Name: "Cheap", Cost: d(5), Available: true},
	}

	result := Allocate(activities, resources, d(1000))

	require.Len(t, result.Assignments, 3)
	for i, a := range result.Assignments {
		assert.Equal(t, activities[i].ID, a.ActivityID)
		assert.Equal(t, int64(2), a.ResourceID)
	}
}

func TestAllocate_ZeroCeiling(t *testing.T) {
	activities := []Activity{{ID: 1}, {ID: 2}}

	free := Allocate(activities, []Resource{{ID: 1, Cost: decimal.Zero, Available: true}}, decimal.Zero)
	assert.Len(t, free.Assignments, 2)

	paid := Allocate(activities, []Resource{{ID: 1, Cost: d(1), Available: true}}, decimal.Zero)
	assert.Empty(t, paid.Assignments)
	assert.Equal(t, 0.5, paid.Confidence)
}

func TestAllocate_NeverExceedsCeiling(t *testing.T) {
	costs := []string{"0.01", "3.33", "17", "99.99", "250", "1000"}
	ceilings := []string{"0", "10", "100", "333.33", "999.99", "5000"}

	activities := make([]Activity, 25)
	for i := range activities {
		activities[i] = Activity{ID: int64(i + 1)}
	}

	for _, c := range costs {
		for _, ceil := range ceilings {
			cost := decimal.RequireFromString(c)
			ceiling := decimal.RequireFromString(ceil)
			result := Allocate(activities, []Resource{{ID: 7, Cost: cost, Available: true}}, ceiling)

			assert.True(t, result.WithinCeiling(ceiling), "cost=%s ceiling=%s total=%s", c, ceil, result.TotalCost())
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	activities := []Activity{{ID: 3}, {ID: 1}, {ID: 2}}
	resources := []Resource{{ID: 9, Name: "Kit", Cost: d(30), Available: true}}

	first := Allocate(activities, resources, d(70))
	second := Allocate(activities, resources, d(70))

	assert.Equal(t, first, second)
	require.Len(t, first.Assignments, 2)
	assert.Equal(t, int64(3), first.Assignments[0].ActivityID)
	assert.Equal(t, int64(1), first.Assignments[1].ActivityID)
}

func TestBudgetPlanRequest_Validate(t *testing.T) {
	assert.NoError(t, BudgetPlanRequest{BudgetCeiling: decimal.Zero}.Validate())
	assert.Error(t, BudgetPlanRequest{BudgetCeiling: d(-1)}.Validate())
	assert.Error(t, BudgetPlanRequest{
		BudgetCeiling: d(10),
		Resources:     []Resource{{ID: 1, Cost: d(-5)}},
	}.Validate())
}
