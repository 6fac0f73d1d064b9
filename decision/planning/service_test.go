package planning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() BudgetPlanRequest {
	return BudgetPlanRequest{
		Activities:    []Activity{{ID: 1, Name: "A1"}, {ID: 2, Name: "A2"}},
		Resources:     []Resource{{ID: 1, Name: "Laptop", Cost: d(100), Available: true}},
		BudgetCeiling: d(150),
	}
}

type recordingSink struct {
	outcomes []Outcome
	err      error
}

func (s *recordingSink) RecordOutcome(_ context.Context, o Outcome) error {
	s.outcomes = append(s.outcomes, o)
	return s.err
}

func TestClient_RequestPlan_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/resources/plan", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req BudgetPlanRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Activities, 2)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"assignments": [{"activityId": 2, "resourceId": 1, "resourceName": "Laptop", "assignedCost": 100}],
			"summary": "AI plan",
			"criteria": ["skill match"],
			"confidence": 1.7
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	result, err := client.RequestPlan(context.Background(), sampleRequest())

	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, int64(2), result.Assignments[0].ActivityID)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, SourcePlanner, result.Source)
}

func TestClient_RequestPlan_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "service unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("overloaded"))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
		},
		{
			name: "null body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("null"))
			},
		},
		{
			name: "empty object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{}"))
			},
		},
		{
			name: "over ceiling",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"assignments":[{"activityId":1,"resourceId":1,"assignedCost":100},{"activityId":2,"resourceId":1,"assignedCost":100}],"confidence":0.9}`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				w.Write([]byte(`{}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, 50*time.Millisecond)
			result, err := client.RequestPlan(context.Background(), sampleRequest())

			assert.Nil(t, result)
			var failure *PlannerFailure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.wantStatus, failure.StatusCode)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("", 0)
	assert.False(t, client.Configured())

	_, err := client.RequestPlan(context.Background(), sampleRequest())
	var failure *PlannerFailure
	require.True(t, errors.As(err, &failure))
	assert.Contains(t, failure.Error(), "not configured")
}

func TestClient_SingleAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).RequestPlan(context.Background(), sampleRequest())
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestService_FallsBackOn503(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := &recordingSink{}
	svc := NewService(NewClient(server.URL, time.Second), zerolog.Nop()).WithAuditSink(sink)

	result := svc.PlanResources(context.Background(), sampleRequest())

	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, []string{"first available resource", "budget ceiling constraint"}, result.Criteria)
	assert.Len(t, result.Assignments, 1)

	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, SourceHeuristic, sink.outcomes[0].Source)
	assert.Contains(t, sink.outcomes[0].FailureReason, "503")
}

func TestService_UsesPlannerResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"assignments":[],"summary":"nothing fits","criteria":["model"],"confidence":0.82}`))
	}))
	defer server.Close()

	sink := &recordingSink{}
	svc := NewService(NewClient(server.URL, time.Second), zerolog.Nop()).WithAuditSink(sink)
	result := svc.PlanResources(context.Background(), sampleRequest())

	assert.Equal(t, 0.82, result.Confidence)
	assert.Equal(t, "nothing fits", result.Summary)
	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, SourcePlanner, sink.outcomes[0].Source)
	assert.Empty(t, sink.outcomes[0].FailureReason)
}

func TestService_NilPlannerAndFailingSink(t *testing.T) {
	sink := &recordingSink{err: errors.New("clickhouse down")}
	svc := NewService(nil, zerolog.Nop()).WithAuditSink(sink)

	result := svc.PlanResources(context.Background(), sampleRequest())

	assert.Equal(t, SourceHeuristic, result.Source)
	assert.Len(t, sink.outcomes, 1)
}

func TestService_FallsBackOnEmptyPlan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer server.Close()

	result := NewService(NewClient(server.URL, time.Second), zerolog.Nop()).
		PlanResources(context.Background(), sampleRequest())

	assert.Equal(t, SourceHeuristic, result.Source)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Len(t, result.Assignments, 1)
}
