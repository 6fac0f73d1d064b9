// Package clickhouse provides the ClickHouse plan-audit store.
// Every resource plan outcome is appended for later analysis of how often the
// planning service was available and how heuristic plans compare.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"research-budget/decision/planning"
)

// PlanOutcome is a row of the plan_outcomes table
type PlanOutcome struct {
	ID              uuid.UUID       `ch:"id"`
	Source          string          `ch:"source"`
	Confidence      float64         `ch:"confidence"`
	ActivityCount   uint32          `ch:"activity_count"`
	AssignmentCount uint32          `ch:"assignment_count"`
	TotalCost       decimal.Decimal `ch:"total_cost"`
	BudgetCeiling   decimal.Decimal `ch:"budget_ceiling"`
	FailureReason   string          `ch:"failure_reason"`
	PlannedAt       time.Time       `ch:"planned_at"`
}

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "budget",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements planning.AuditSink using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

var _ planning.AuditSink = (*Store)(nil)

// NewStore creates a new ClickHouse audit store
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the plan_outcomes table
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS plan_outcomes (
			id               UUID,
			source           LowCardinality(String),
			confidence       Float64,
			activity_count   UInt32,
			assignment_count UInt32,
			total_cost       Decimal(18, 2),
			budget_ceiling   Decimal(18, 2),
			failure_reason   String,
			planned_at       DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (planned_at, id)
	`
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create plan_outcomes: %w", err)
	}
	return nil
}

// RecordOutcome appends one plan outcome
func (s *Store) RecordOutcome(ctx context.Context, o planning.Outcome) error {
	row := fromOutcome(o)
	query := `
		INSERT INTO plan_outcomes (
			id, source, confidence, activity_count, assignment_count,
			total_cost, budget_ceiling, failure_reason, planned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if err := s.conn.Exec(ctx, query,
		row.ID,
		row.Source,
		row.Confidence,
		row.ActivityCount,
		row.AssignmentCount,
		row.TotalCost,
		row.BudgetCeiling,
		row.FailureReason,
		row.PlannedAt,
	); err != nil {
		return fmt.Errorf("failed to insert plan outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns the most recent outcomes, newest first
func (s *Store) ListOutcomes(ctx context.Context, limit int) ([]PlanOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, source, confidence, activity_count, assignment_count,
			   total_cost, budget_ceiling, failure_reason, planned_at
		FROM plan_outcomes
		ORDER BY planned_at DESC
		LIMIT ?
	`
	var outcomes []PlanOutcome
	if err := s.conn.Select(ctx, &outcomes, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list plan outcomes: %w", err)
	}
	return outcomes, nil
}

// FallbackRate is the share of plans since `since` that came from the heuristic
func (s *Store) FallbackRate(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT countIf(source = ?) AS heuristic, count() AS total
		FROM plan_outcomes
		WHERE planned_at >= ?
	`
	var heuristic, total uint64
	if err := s.conn.QueryRow(ctx, query, string(planning.SourceHeuristic), since).Scan(&heuristic, &total); err != nil {
		return 0, fmt.Errorf("failed to compute fallback rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(heuristic) / float64(total), nil
}

func fromOutcome(o planning.Outcome) PlanOutcome {
	id := o.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	plannedAt := o.PlannedAt
	if plannedAt.IsZero() {
		plannedAt = time.Now().UTC()
	}
	return PlanOutcome{
		ID:              id,
		Source:          string(o.Source),
		Confidence:      o.Confidence,
		ActivityCount:   uint32(o.ActivityCount),
		AssignmentCount: uint32(o.AssignmentCount),
		TotalCost:       o.TotalCost.Round(2),
		BudgetCeiling:   o.BudgetCeiling.Round(2),
		FailureReason:   o.FailureReason,
		PlannedAt:       plannedAt,
	}
}
