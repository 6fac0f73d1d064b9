package clickhouse

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"research-budget/decision/planning"
)

func TestFromOutcome(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	row := fromOutcome(planning.Outcome{
		ID:              id,
		Source:          planning.SourceHeuristic,
		Confidence:      0.5,
		ActivityCount:   3,
		AssignmentCount: 2,
		TotalCost:       decimal.RequireFromString("200.005"),
		BudgetCeiling:   decimal.NewFromInt(250),
		FailureReason:   "planner returned status 503",
		PlannedAt:       at,
	})

	assert.Equal(t, id, row.ID)
	assert.Equal(t, "heuristic", row.Source)
	assert.Equal(t, uint32(3), row.ActivityCount)
	assert.Equal(t, uint32(2), row.AssignmentCount)
	assert.Equal(t, "200.01", row.TotalCost.StringFixed(2))
	assert.Equal(t, at, row.PlannedAt)
}

func TestFromOutcome_FillsDefaults(t *testing.T) {
	row := fromOutcome(planning.Outcome{Source: planning.SourcePlanner})

	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.False(t, row.PlannedAt.IsZero())
	assert.True(t, row.TotalCost.IsZero())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "budget", cfg.Database)
}
