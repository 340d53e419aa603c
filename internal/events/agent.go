// Package events implements the mock events agent. Each request simulates a
// model call (rotating through a catalog of models so dashboards show a mix
// of providers) and then fetches listings through the MCP tool server.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atlasops/atlas/pkg/errors"
	"github.com/atlasops/atlas/pkg/fault"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	agentID          = "events-agent"
	agentName        = "EventsAgent"
	agentDescription = "Finds local events for a destination through the events API"
)

// modelCatalog is rotated per request so the telemetry shows traffic across
// providers, matching what a routing layer would produce.
var modelCatalog = []struct {
	system string
	model  string
}{
	{"anthropic", "claude-sonnet-4-20250514"},
	{"openai", "gpt-4o"},
	{"gcp.gemini", "gemini-2.0-flash"},
	{"aws.bedrock", "amazon.nova-pro-v1:0"},
}

// ToolCaller is the slice of the MCP client the agent needs.
type ToolCaller interface {
	CallToolText(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// EventsRequest is the body of POST /events.
type EventsRequest struct {
	Destination string        `json:"destination"`
	Date        string        `json:"date,omitempty"`
	Fault       *fault.Config `json:"fault,omitempty"`
}

// EventsResponse is the success body of POST /events.
type EventsResponse struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
	AgentID     string  `json:"agent_id"`
}

// Agent is the mock events agent.
type Agent struct {
	tools   ToolCaller
	tracer  trace.Tracer
	metrics *telemetry.AgentMetrics
	counter atomic.Uint64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAgent creates the events agent backed by the given MCP tool caller.
func NewAgent(tools ToolCaller) (*Agent, error) {
	metrics, err := telemetry.NewAgentMetrics("atlas/events")
	if err != nil {
		return nil, err
	}
	return &Agent{
		tools:   tools,
		tracer:  otel.Tracer("atlas/events"),
		metrics: metrics,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// GetEvents handles one events lookup with fault injection.
func (a *Agent) GetEvents(ctx context.Context, req EventsRequest) (resp *EventsResponse, err error) {
	start := time.Now()
	system, model := a.nextModel()
	conversationID := uuid.NewString()

	ctx, span := a.tracer.Start(ctx, "invoke_agent "+agentName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AgentAttributes(agentID, agentName, agentDescription, conversationID)...),
		trace.WithAttributes(telemetry.ChatAttributes(system, model, 512, 0.5)...),
	)
	defer span.End()

	defer func() {
		if err != nil {
			ae := errors.AsAgentError(err)
			span.SetAttributes(attribute.String(telemetry.AttrErrorType, ae.WireType()))
			span.SetStatus(codes.Error, ae.Message)
			a.metrics.RecordInvocation(ctx, agentName, ae.WireType())
		} else {
			span.SetStatus(codes.Ok, "")
			a.metrics.RecordInvocation(ctx, agentName, "success")
		}
		a.metrics.RecordOperationDuration(ctx, telemetry.OpInvokeAgent, system, model, time.Since(start))
	}()

	injected := a.activeFault(req.Fault)

	switch injected {
	case fault.TypeHighLatency:
		a.sleep(ctx, req.Fault.Delay())
	case fault.TypeTimeout:
		a.sleep(ctx, 2*time.Second)
		return nil, errors.New(errors.CodeTimeout, "events lookup timed out", nil).WithRecoverable(true)
	case fault.TypeError:
		return nil, errors.New(errors.CodeToolFailure, "events backend returned an internal error", nil)
	case fault.TypeRateLimited:
		return nil, errors.New(errors.CodeRateLimit, "events API rate limit exceeded", nil).WithRecoverable(true)
	}

	// Simulated model turn planning the tool call
	a.chat(ctx, system, model, req.Destination)

	switch injected {
	case fault.TypeEmpty:
		return &EventsResponse{Destination: req.Destination, Events: []Event{}, AgentID: agentID}, nil
	case fault.TypeWrongCity:
		events := a.wrongCityEvents(req)
		return &EventsResponse{Destination: req.Destination, Events: events, AgentID: agentID}, nil
	}

	events, err := a.fetchEvents(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	return &EventsResponse{Destination: req.Destination, Events: events, AgentID: agentID}, nil
}

func (a *Agent) nextModel() (string, string) {
	idx := a.counter.Add(1) - 1
	entry := modelCatalog[idx%uint64(len(modelCatalog))]
	return entry.system, entry.model
}

// chat emits the synthetic chat span for the model turn.
func (a *Agent) chat(ctx context.Context, system, model, destination string) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "chat "+model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.ChatAttributes(system, model, 512, 0.5)...),
	)
	defer span.End()

	a.sleep(ctx, time.Duration(150+a.intn(350))*time.Millisecond)

	inputTokens := 30 + a.intn(60)
	outputTokens := 40 + a.intn(100)
	span.SetAttributes(telemetry.UsageAttributes("resp_"+uuid.NewString()[:8], model, inputTokens, outputTokens, "tool_use")...)
	span.SetAttributes(telemetry.MessageAttributes("",
		[]map[string]string{{"role": "user", "content": "Find events in " + destination}}, nil)...)

	a.metrics.RecordTokenUsage(ctx, system, model, int64(inputTokens), int64(outputTokens))
	a.metrics.RecordOperationDuration(ctx, telemetry.OpChat, system, model, time.Since(start))
}

// fetchEvents executes fetch_events_api on the tool server inside an
// execute_tool span. Trace context propagates over the MCP HTTP transport.
func (a *Agent) fetchEvents(ctx context.Context, destination string) ([]Event, error) {
	callID := "call_" + uuid.NewString()[:8]
	ctx, span := a.tracer.Start(ctx, "execute_tool fetch_events_api",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.ToolAttributes("fetch_events_api", "function", callID)...),
		trace.WithAttributes(telemetry.MCPAttributes("tools/call", "")...),
	)
	defer span.End()

	args := map[string]interface{}{"destination": destination}
	span.SetAttributes(telemetry.ToolPayloadAttributes(args, "", 0)...)

	text, err := a.tools.CallToolText(ctx, "fetch_events_api", args)
	if err != nil {
		ae := errors.New(errors.CodeToolFailure, fmt.Sprintf("fetch_events_api failed: %v", err), err)
		span.SetAttributes(attribute.String(telemetry.AttrErrorType, ae.WireType()))
		span.SetStatus(codes.Error, ae.Message)
		return nil, ae
	}
	span.SetAttributes(attribute.String(telemetry.AttrToolCallResult, text))

	var payload struct {
		Destination string  `json:"destination"`
		Events      []Event `json:"events"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		ae := errors.New(errors.CodeToolFailure, "fetch_events_api returned malformed data", err)
		span.SetStatus(codes.Error, ae.Message)
		return nil, ae
	}

	span.SetStatus(codes.Ok, "")
	return payload.Events, nil
}

// wrongCityEvents serves another city's canned listings.
func (a *Agent) wrongCityEvents(req EventsRequest) []Event {
	city := strings.ToLower(req.Fault.WrongCity)
	if _, ok := sampleEvents[city]; !ok {
		requested := strings.ToLower(req.Destination)
		candidates := make([]string, 0, len(sampleCities))
		for _, c := range sampleCities {
			if c != requested {
				candidates = append(candidates, c)
			}
		}
		city = candidates[a.intn(len(candidates))]
	}
	return sampleEvents[city]
}

func (a *Agent) activeFault(cfg *fault.Config) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.Triggered(a.rng) {
		return cfg.Type
	}
	return ""
}

func (a *Agent) intn(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Intn(n)
}

func (a *Agent) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
