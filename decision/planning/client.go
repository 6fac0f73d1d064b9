package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"research-budget/pkg/confidence"
	bperrors "research-budget/pkg/errors"
)

// DefaultPlannerTimeout bounds a single call to the planning service
const DefaultPlannerTimeout = 5 * time.Minute

const planPath = "/resources/plan"

// maxErrorBody caps how much of a failed response is kept for logging
const maxErrorBody = 2048

// PlannerFailure describes why the planning service could not produce a plan.
// It is always recoverable: callers fall back to the heuristic.
type PlannerFailure struct {
	StatusCode int    // zero when no response was received
	Detail     string // response body excerpt or transport detail
	Err        error
}

func (f *PlannerFailure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("planner returned status %d: %s", f.StatusCode, f.Detail)
	}
	if f.Err != nil {
		return fmt.Sprintf("planner unavailable: %v", f.Err)
	}
	return "planner unavailable: " + f.Detail
}

func (f *PlannerFailure) Unwrap() error {
	return f.Err
}

// AsBudgetError converts the failure into the shared structured error
func (f *PlannerFailure) AsBudgetError() *bperrors.BudgetError {
	return &bperrors.BudgetError{
		Code:        bperrors.ErrCodePlannerUnavailable,
		Message:     f.Error(),
		Severity:    bperrors.SeverityWarning,
		Recoverable: true,
		Err:         f,
	}
}

// Client calls the external planning service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a planning client. An empty baseURL leaves the client
// unconfigured and every request fails immediately.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultPlannerTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a planning service URL was supplied
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// RequestPlan makes exactly one attempt to obtain a plan from the service.
// Every error it returns is a *PlannerFailure.
func (c *Client) RequestPlan(ctx context.Context, req BudgetPlanRequest) (*BudgetPlanResult, error) {
	if !c.Configured() {
		return nil, &PlannerFailure{Detail: "planning service URL not configured"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &PlannerFailure{Detail: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+planPath, bytes.NewReader(body))
	if err != nil {
		return nil, &PlannerFailure{Detail: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &PlannerFailure{Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &PlannerFailure{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(excerpt)),
		}
	}

	var decoded *BudgetPlanResult
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &PlannerFailure{Detail: "failed to decode plan", Err: err}
	}
	if decoded == nil || decoded.empty() {
		return nil, &PlannerFailure{Detail: "empty plan in response"}
	}
	result := *decoded

	if !result.WithinCeiling(req.BudgetCeiling) {
		return nil, &PlannerFailure{
			Detail: fmt.Sprintf("plan total %s exceeds budget ceiling %s",
				result.TotalCost().String(), req.BudgetCeiling.String()),
		}
	}

	if result.Assignments == nil {
		result.Assignments = []ResourceAssignment{}
	}
	if result.Criteria == nil {
		result.Criteria = []string{}
	}
	result.Confidence = confidence.Clamp(result.Confidence)
	result.Source = SourcePlanner
	return &result, nil
}
