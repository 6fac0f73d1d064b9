// Package api provides the HTTP API server for budget planning and
// extracted budget ingestion.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"research-budget/db/clickhouse"
	"research-budget/decision/ingestion"
	"research-budget/decision/planning"
	bperrors "research-budget/pkg/errors"
)

var version = "1.0.0"

// Money goes over the wire as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutcomeLister reads recorded plan outcomes
type OutcomeLister interface {
	ListOutcomes(ctx context.Context, limit int) ([]clickhouse.PlanOutcome, error)
	FallbackRate(ctx context.Context, since time.Time) (float64, error)
}

// Config holds server configuration
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
}

// DefaultConfig returns default server configuration. Write and request
// timeouts sit above the planner's own timeout so a slow planner still
// leaves room for the heuristic fallback.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    6 * time.Minute,
		RequestTimeout:  6 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		MaxRequestSize:  10 * 1024 * 1024, // 10MB
	}
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	planner    *planning.Service
	ingestor   *ingestion.Ingestor
	table      *ingestion.DispatchTable
	outcomes   OutcomeLister
	readiness  map[string]Pinger
	config     *Config
	logger     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(planner *planning.Service, ingestor *ingestion.Ingestor, table *ingestion.DispatchTable, config *Config, logger zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		planner:   planner,
		ingestor:  ingestor,
		table:     table,
		readiness: make(map[string]Pinger),
		config:    config,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// WithReadinessCheck adds a dependency to the readiness probe
func (s *Server) WithReadinessCheck(name string, p Pinger) *Server {
	s.readiness[name] = p
	return s
}

// WithOutcomes enables the plan outcome listing endpoint
func (s *Server) WithOutcomes(lister OutcomeLister) *Server {
	s.outcomes = lister
	return s
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/resources/plan", s.handlePlan)
		r.Get("/resources/plan/outcomes", s.handleListOutcomes)
		r.Get("/resources/plan/fallback-rate", s.handleFallbackRate)
		r.Post("/budget/save-extracted", s.handleSaveExtracted)
		r.Get("/budget/categories", s.handleCategories)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", s.config.Port).Str("version", version).Msg("Starting budget API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, p := range s.readiness {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			s.jsonError(w, http.StatusServiceUnavailable, name+" not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// PLAN ENDPOINT
// =============================================================================

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planning.BudgetPlanRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.budgetError(w, http.StatusBadRequest, bperrors.NewInvalidRequestError(err.Error()))
		return
	}

	result := s.planner.PlanResources(r.Context(), req)
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.outcomes == nil {
		s.jsonError(w, http.StatusNotFound, "plan auditing is not enabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	outcomes, err := s.outcomes.ListOutcomes(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list plan outcomes")
		s.jsonError(w, http.StatusInternalServerError, "failed to list plan outcomes")
		return
	}

	type OutcomeResponse struct {
		ID              string  `json:"id"`
		Source          string  `json:"source"`
		Confidence      float64 `json:"confidence"`
		ActivityCount   uint32  `json:"activityCount"`
		AssignmentCount uint32  `json:"assignmentCount"`
		TotalCost       string  `json:"totalCost"`
		BudgetCeiling   string  `json:"budgetCeiling"`
		FailureReason   string  `json:"failureReason,omitempty"`
		PlannedAt       string  `json:"plannedAt"`
	}

	resp := make([]OutcomeResponse, len(outcomes))
	for i, o := range outcomes {
		resp[i] = OutcomeResponse{
			ID:              o.ID.String(),
			Source:          o.Source,
			Confidence:      o.Confidence,
			ActivityCount:   o.ActivityCount,
			AssignmentCount: o.AssignmentCount,
			TotalCost:       o.TotalCost.StringFixed(2),
			BudgetCeiling:   o.BudgetCeiling.StringFixed(2),
			FailureReason:   o.FailureReason,
			PlannedAt:       o.PlannedAt.Format(time.RFC3339),
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleFallbackRate(w http.ResponseWriter, r *http.Request) {
	if s.outcomes == nil {
		s.jsonError(w, http.StatusNotFound, "plan auditing is not enabled")
		return
	}

	window := 24 * time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.jsonError(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	rate, err := s.outcomes.FallbackRate(r.Context(), time.Now().UTC().Add(-window))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute fallback rate")
		s.jsonError(w, http.StatusInternalServerError, "failed to compute fallback rate")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"window":       window.String(),
		"fallbackRate": rate,
	})
}

// =============================================================================
// INGESTION ENDPOINTS
// =============================================================================

// SaveExtractedRequest is the body of the save-extracted endpoint
type SaveExtractedRequest struct {
	ActivityID int64                           `json:"activityId"`
	Items      []ingestion.ExtractedBudgetItem `json:"items"`
}

func (s *Server) handleSaveExtracted(w http.ResponseWriter, r *http.Request) {
	var req SaveExtractedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ActivityID <= 0 {
		s.jsonError(w, http.StatusBadRequest, "activityId is required")
		return
	}

	summary := s.ingestor.Ingest(r.Context(), req.Items, req.ActivityID)
	s.jsonResponse(w, http.StatusOK, summary)
}

// CategoryResponse describes one budget category
type CategoryResponse struct {
	Tag          string   `json:"tag"`
	Aliases      []string `json:"aliases"`
	ClassifierID int64    `json:"classifierId"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories := ingestion.AllCategories()
	resp := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = CategoryResponse{
			Tag:          c.String(),
			Aliases:      c.Aliases(),
			ClassifierID: s.table.ClassifierID(c),
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) budgetError(w http.ResponseWriter, status int, err *bperrors.BudgetError) {
	s.logger.Warn().
		Str("code", err.Code).
		Str("severity", err.Severity.String()).
		Msg(err.Message)
	s.jsonResponse(w, status, map[string]string{
		"error": err.Message,
		"code":  err.Code,
	})
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
