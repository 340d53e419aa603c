package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atlasops/atlas/pkg/fault"
)

// fakeAgents spins up stand-ins for the weather and events agents. The
// returned trackers count invocations and honor forwarded faults.
type fakeAgents struct {
	weather      *httptest.Server
	events       *httptest.Server
	weatherCalls int
	eventsCalls  int
}

func newFakeAgents(t *testing.T) *fakeAgents {
	t.Helper()
	f := &fakeAgents{}

	f.weather = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.weatherCalls++
		var req weatherInvokeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Fault != nil && req.Fault.Type == fault.TypeToolError {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error": {"type": "tool_error", "message": "weather backend failed"}}`))
			return
		}
		json.NewEncoder(w).Encode(weatherInvokeResponse{
			Response:       "Sunny, 22°C in the afternoon.",
			ConversationID: req.ConversationID,
		})
	}))
	t.Cleanup(f.weather.Close)

	f.events = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.eventsCalls++
		var req eventsRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Fault != nil && req.Fault.Type == fault.TypeError {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error": {"type": "tool_error", "message": "events backend failed"}}`))
			return
		}
		json.NewEncoder(w).Encode(eventsResponse{
			Destination: req.Destination,
			Events: []Event{
				{Name: "Jazz Night", Venue: "Riverside", Date: "2026-09-05"},
			},
			AgentID: "events-agent",
		})
	}))
	t.Cleanup(f.events.Close)

	return f
}

func newTestPlanner(t *testing.T, f *fakeAgents, history *HistoryStore) *Planner {
	t.Helper()
	p, err := New(Options{
		WeatherURL: f.weather.URL,
		EventsURL:  f.events.URL,
		History:    history,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewHistoryStore(db)
	if err != nil {
		t.Fatalf("NewHistoryStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPlanSuccess(t *testing.T) {
	f := newFakeAgents(t)
	p := newTestPlanner(t, f, nil)

	resp, err := p.Plan(context.Background(), PlanRequest{Destination: "Paris"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if resp.Partial {
		t.Errorf("expected complete plan, got partial with errors %+v", resp.Errors)
	}
	if resp.Weather == "" {
		t.Error("expected weather in the plan")
	}
	if len(resp.Events) != 1 {
		t.Errorf("expected one event, got %d", len(resp.Events))
	}
	if !strings.Contains(resp.Recommendation, "Paris") {
		t.Errorf("recommendation should mention the destination: %q", resp.Recommendation)
	}
	if f.weatherCalls != 1 || f.eventsCalls != 1 {
		t.Errorf("expected one call per branch, got weather=%d events=%d", f.weatherCalls, f.eventsCalls)
	}
}

func TestPlanPartialOnBranchFailure(t *testing.T) {
	f := newFakeAgents(t)
	p := newTestPlanner(t, f, nil)

	resp, err := p.Plan(context.Background(), PlanRequest{
		Destination:  "Paris",
		WeatherFault: &fault.Config{Type: fault.TypeToolError},
	})
	if err != nil {
		t.Fatalf("partial plans must not fail the request: %v", err)
	}
	if !resp.Partial {
		t.Fatal("expected partial plan")
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Agent != subAgentWeather {
		t.Fatalf("expected one weather branch error, got %+v", resp.Errors)
	}
	if resp.Errors[0].Type != "tool_error" {
		t.Errorf("branch error should carry the wire type, got %q", resp.Errors[0].Type)
	}
	if len(resp.Events) != 1 {
		t.Errorf("surviving branch should still contribute, got %+v", resp.Events)
	}
	if resp.Weather != "" {
		t.Errorf("failed branch should contribute nothing, got %q", resp.Weather)
	}
}

func TestPlanFanOutTimeoutFault(t *testing.T) {
	f := newFakeAgents(t)
	p := newTestPlanner(t, f, nil)

	resp, err := p.Plan(context.Background(), PlanRequest{
		Destination: "Paris",
		Fault:       &fault.Config{Type: fault.TypeFanOutTimeout},
	})
	if err != nil {
		t.Fatalf("fan_out_timeout should degrade, not fail: %v", err)
	}
	if !resp.Partial || len(resp.Errors) != 2 {
		t.Fatalf("expected both branches to miss the budget, got %+v", resp.Errors)
	}
}

func TestPlanRecordsHistory(t *testing.T) {
	f := newFakeAgents(t)
	store := newTestHistory(t)
	p := newTestPlanner(t, f, store)

	resp, err := p.Plan(context.Background(), PlanRequest{Destination: "Tokyo"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	entries, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	if entries[0].ID != resp.PlanID || entries[0].Destination != "Tokyo" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if entries[0].Partial || entries[0].ErrorCount != 0 {
		t.Errorf("complete plan recorded as partial: %+v", entries[0])
	}
}

func TestHistoryListOrderAndLimit(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := store.Record(ctx, HistoryEntry{
			ID:          string(rune('a' + i)),
			Destination: "Paris",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "e" || entries[2].ID != "c" {
		t.Errorf("expected newest-first ordering, got %+v", entries)
	}
}

func TestPlanEndpoint(t *testing.T) {
	f := newFakeAgents(t)
	store := newTestHistory(t)
	p := newTestPlanner(t, f, store)
	srv := httptest.NewServer(NewHandler(p, store, nil).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/plan", "application/json",
		strings.NewReader(`{"destination": "Berlin"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var plan PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if plan.Destination != "Berlin" || plan.PlanID == "" {
		t.Errorf("unexpected plan %+v", plan)
	}

	listResp, err := http.Get(srv.URL + "/plans?limit=5")
	if err != nil {
		t.Fatalf("plans request failed: %v", err)
	}
	defer listResp.Body.Close()
	var listing struct {
		Plans []HistoryEntry `json:"plans"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listing); err != nil {
		t.Fatalf("bad plans body: %v", err)
	}
	if len(listing.Plans) != 1 {
		t.Errorf("expected one recorded plan, got %d", len(listing.Plans))
	}
}

func TestPlanEndpointValidation(t *testing.T) {
	f := newFakeAgents(t)
	p := newTestPlanner(t, f, nil)
	srv := httptest.NewServer(NewHandler(p, nil, nil).Routes())
	defer srv.Close()

	resp, _ := http.Post(srv.URL+"/plan", "application/json", strings.NewReader(`{}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing destination, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/plans?limit=nope")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestPlanBreakerOpensAfterRepeatedFailures(t *testing.T) {
	f := newFakeAgents(t)
	p := newTestPlanner(t, f, nil)

	for i := 0; i < 5; i++ {
		p.Plan(context.Background(), PlanRequest{
			Destination:  "Paris",
			WeatherFault: &fault.Config{Type: fault.TypeToolError},
		})
	}
	if p.weatherBreaker.StateValue() != 0 {
		t.Errorf("expected weather breaker open after repeated failures, state=%s", p.weatherBreaker.State())
	}

	// With the breaker open the weather branch is rejected locally.
	calls := f.weatherCalls
	resp, err := p.Plan(context.Background(), PlanRequest{Destination: "Paris"})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !resp.Partial {
		t.Error("expected partial plan while breaker is open")
	}
	if f.weatherCalls != calls {
		t.Errorf("open breaker should short-circuit, got %d extra calls", f.weatherCalls-calls)
	}
}
