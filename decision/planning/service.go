package planning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Planner obtains a plan from an external service
type Planner interface {
	RequestPlan(ctx context.Context, req BudgetPlanRequest) (*BudgetPlanResult, error)
}

// Outcome is the audit record of a single planning call
type Outcome struct {
	ID              uuid.UUID
	Source          Source
	Confidence      float64
	ActivityCount   int
	AssignmentCount int
	TotalCost       decimal.Decimal
	BudgetCeiling   decimal.Decimal
	FailureReason   string
	PlannedAt       time.Time
}

// AuditSink records plan outcomes
type AuditSink interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
}

// Service plans resources, falling back to the heuristic when the planner fails
type Service struct {
	planner Planner
	audit   AuditSink
	logger  zerolog.Logger
}

// NewService creates a plan service. planner may be nil, in which case every
// plan is heuristic.
func NewService(planner Planner, logger zerolog.Logger) *Service {
	return &Service{
		planner: planner,
		logger:  logger.With().Str("component", "planning").Logger(),
	}
}

// WithAuditSink records every outcome to sink
func (s *Service) WithAuditSink(sink AuditSink) *Service {
	s.audit = sink
	return s
}

// PlanResources always returns a usable plan. Planner failures are logged and
// replaced by the heuristic result; they never reach the caller.
func (s *Service) PlanResources(ctx context.Context, req BudgetPlanRequest) BudgetPlanResult {
	var failureReason string

	if s.planner != nil {
		result, err := s.planner.RequestPlan(ctx, req)
		if err == nil && result != nil {
			s.record(ctx, req, *result, "")
			return *result
		}

		event := s.logger.Warn().Err(err)
		var failure *PlannerFailure
		if errors.As(err, &failure) {
			event = event.Str("code", failure.AsBudgetError().Code)
			if failure.StatusCode != 0 {
				event = event.Int("status", failure.StatusCode)
			}
		}
		event.Int("activities", len(req.Activities)).
			Msg("Planning service failed, using heuristic plan")
		if err != nil {
			failureReason = err.Error()
		}
	}

	result := Allocate(req.Activities, req.Resources, req.BudgetCeiling)
	s.record(ctx, req, result, failureReason)
	return result
}

func (s *Service) record(ctx context.Context, req BudgetPlanRequest, result BudgetPlanResult, failureReason string) {
	s.logger.Info().
		Str("source", string(result.Source)).
		Float64("confidence", result.Confidence).
		Int("assignments", len(result.Assignments)).
		Str("total_cost", result.TotalCost().StringFixed(2)).
		Msg("Resource plan produced")

	if s.audit == nil {
		return
	}

	outcome := Outcome{
		ID:              uuid.New(),
		Source:          result.Source,
		Confidence:      result.Confidence,
		ActivityCount:   len(req.Activities),
		AssignmentCount: len(result.Assignments),
		TotalCost:       result.TotalCost(),
		BudgetCeiling:   req.BudgetCeiling,
		FailureReason:   failureReason,
		PlannedAt:       time.Now().UTC(),
	}
	if err := s.audit.RecordOutcome(ctx, outcome); err != nil {
		s.logger.Warn().Err(err).Str("outcome_id", outcome.ID.String()).Msg("Failed to record plan outcome")
	}
}
