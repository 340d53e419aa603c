package canary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeOpenSearch answers _search requests on the span index with the given
// span documents.
func fakeOpenSearch(t *testing.T, docs []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits := make([]map[string]any, 0, len(docs))
		for _, doc := range docs {
			hits = append(hits, map[string]any{"_source": doc})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{"hits": hits},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChecker(t *testing.T, url string) *TraceChecker {
	t.Helper()
	checker, err := NewTraceChecker(url, "admin", "admin")
	if err != nil {
		t.Fatalf("NewTraceChecker failed: %v", err)
	}
	return checker
}

func TestCheckTraceValid(t *testing.T) {
	srv := fakeOpenSearch(t, []map[string]any{
		{
			"traceId": "t1", "spanId": "root", "parentSpanId": "",
			"name":        "invoke_agent TravelPlannerAgent",
			"serviceName": "travel-planner",
			fieldAgentID:  "travel-planner", fieldConversationID: "conv-1",
		},
		{
			"traceId": "t1", "spanId": "child", "parentSpanId": "root",
			"name":        "invoke_agent WeatherAgent",
			"serviceName": "weather-agent",
			fieldAgentID:  "weather-agent", fieldConversationID: "conv-1",
		},
	})
	checker := newChecker(t, srv.URL)

	report, err := checker.CheckTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("CheckTrace failed: %v", err)
	}
	if !report.Valid() {
		t.Errorf("expected valid trace, problems: %v", report.Problems)
	}
	if report.SpanCount != 2 {
		t.Errorf("span count = %d, want 2", report.SpanCount)
	}
	if len(report.AgentIDs) != 2 {
		t.Errorf("agent ids = %v, want two distinct agents", report.AgentIDs)
	}
	if len(report.ConversationIDs) != 1 {
		t.Errorf("conversation ids = %v, want one shared id", report.ConversationIDs)
	}
}

func TestCheckTraceMissingParent(t *testing.T) {
	srv := fakeOpenSearch(t, []map[string]any{
		{"traceId": "t1", "spanId": "root", "parentSpanId": ""},
		{"traceId": "t1", "spanId": "orphan", "parentSpanId": "gone"},
	})
	checker := newChecker(t, srv.URL)

	report, err := checker.CheckTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("CheckTrace failed: %v", err)
	}
	if report.Valid() {
		t.Error("expected a problem for the orphaned span")
	}
}

func TestCheckTraceEmpty(t *testing.T) {
	srv := fakeOpenSearch(t, nil)
	checker := newChecker(t, srv.URL)

	report, err := checker.CheckTrace(context.Background(), "missing")
	if err != nil {
		t.Fatalf("CheckTrace failed: %v", err)
	}
	if report.Valid() || report.SpanCount != 0 {
		t.Errorf("expected empty invalid report, got %+v", report)
	}
}

func TestWaitForConversationValidatesLandedTrace(t *testing.T) {
	docs := []map[string]any{
		{
			"traceId": "t9", "spanId": "root", "parentSpanId": "",
			"name":        "invoke_agent TravelPlannerAgent",
			"serviceName": "travel-planner",
			fieldAgentID:  "travel-planner", fieldConversationID: "plan-9",
		},
		{
			"traceId": "t9", "spanId": "child", "parentSpanId": "root",
			"name":        "invoke_agent EventsAgent",
			"serviceName": "events-agent",
			fieldAgentID:  "events-agent", fieldConversationID: "plan-9",
		},
	}

	// Spans land with indexing lag: the first search comes back empty.
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		hits := []map[string]any{}
		if requests > 1 {
			for _, doc := range docs {
				hits = append(hits, map[string]any{"_source": doc})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{"hits": hits},
		})
	}))
	t.Cleanup(srv.Close)
	checker := newChecker(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := checker.WaitForConversation(ctx, "plan-9", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForConversation failed: %v", err)
	}
	if report.TraceID != "t9" {
		t.Errorf("trace id = %q, want t9", report.TraceID)
	}
	if !report.Valid() || report.SpanCount != 2 {
		t.Errorf("expected valid two-span report, got %+v", report)
	}
	if requests < 2 {
		t.Errorf("expected the checker to poll past the empty result, got %d requests", requests)
	}
}

func TestWaitForConversationTimesOut(t *testing.T) {
	srv := fakeOpenSearch(t, nil)
	checker := newChecker(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := checker.WaitForConversation(ctx, "never-lands", 10*time.Millisecond); err == nil {
		t.Fatal("expected an error when the conversation never lands")
	}
}

func TestCheckTraceNoRoot(t *testing.T) {
	srv := fakeOpenSearch(t, []map[string]any{
		{"traceId": "t1", "spanId": "a", "parentSpanId": "b"},
		{"traceId": "t1", "spanId": "b", "parentSpanId": "a"},
	})
	checker := newChecker(t, srv.URL)

	report, err := checker.CheckTrace(context.Background(), "t1")
	if err != nil {
		t.Fatalf("CheckTrace failed: %v", err)
	}
	if report.Valid() {
		t.Error("a trace without a root span should be flagged")
	}
}
