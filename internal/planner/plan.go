// Package planner implements the travel planner orchestrator. A plan request
// fans out to the weather and events agents concurrently, assembles whatever
// came back into a recommendation, and degrades to a partial response when a
// branch fails instead of failing the whole plan.
package planner

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atlasops/atlas/pkg/errors"
	"github.com/atlasops/atlas/pkg/fault"
	"github.com/atlasops/atlas/pkg/httpx"
	"github.com/atlasops/atlas/pkg/resilience"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	agentID          = "travel-planner"
	agentName        = "TravelPlannerAgent"
	agentDescription = "Coordinates weather and events agents to assemble a travel plan"

	modelSystem  = "anthropic"
	requestModel = "claude-sonnet-4-20250514"

	subAgentWeather = "weather-agent"
	subAgentEvents  = "events-agent"

	// Budget for the whole fan-out. The fan_out_timeout fault shrinks this
	// to a value no sub-agent can meet.
	fanOutBudget       = 15 * time.Second
	fanOutFaultBudget  = time.Millisecond
	partialFailureProb = 0.5
)

// PlanRequest is the body of POST /plan. The orchestrator fault applies to
// the planner itself; the per-branch faults are forwarded verbatim to the
// sub-agents.
type PlanRequest struct {
	Destination  string        `json:"destination"`
	Date         string        `json:"date,omitempty"`
	Fault        *fault.Config `json:"fault,omitempty"`
	WeatherFault *fault.Config `json:"weather_fault,omitempty"`
	EventsFault  *fault.Config `json:"events_fault,omitempty"`
}

// PlanError describes a failed fan-out branch in the plan response.
type PlanError struct {
	Agent   string `json:"agent"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event mirrors the events agent's listing shape.
type Event struct {
	Name  string `json:"name"`
	Venue string `json:"venue"`
	Date  string `json:"date"`
}

// PlanResponse is the success body of POST /plan. Partial is set when at
// least one branch failed but the plan was still assembled.
type PlanResponse struct {
	PlanID         string      `json:"plan_id"`
	Destination    string      `json:"destination"`
	Weather        string      `json:"weather,omitempty"`
	Events         []Event     `json:"events"`
	Recommendation string      `json:"recommendation"`
	Partial        bool        `json:"partial"`
	Errors         []PlanError `json:"errors,omitempty"`
}

// weatherInvokeRequest / weatherInvokeResponse mirror the weather agent's
// /invoke wire contract.
type weatherInvokeRequest struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Fault          *fault.Config `json:"fault,omitempty"`
}

type weatherInvokeResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// eventsRequest / eventsResponse mirror the events agent's /events contract.
type eventsRequest struct {
	Destination string        `json:"destination"`
	Date        string        `json:"date,omitempty"`
	Fault       *fault.Config `json:"fault,omitempty"`
}

type eventsResponse struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
	AgentID     string  `json:"agent_id"`
}

// Planner is the travel planner orchestrator agent.
type Planner struct {
	weatherURL  string
	eventsURL   string
	client      *http.Client
	httpTimeout time.Duration
	tracer      trace.Tracer
	metrics     *telemetry.AgentMetrics
	history     *HistoryStore

	weatherBreaker *resilience.CircuitBreaker
	eventsBreaker  *resilience.CircuitBreaker

	mu  sync.Mutex
	rng *rand.Rand
}

// Options configures the planner.
type Options struct {
	WeatherURL string
	EventsURL  string
	History    *HistoryStore
	Timeout    time.Duration
}

// New creates the travel planner against the given sub-agent base URLs.
func New(opts Options) (*Planner, error) {
	metrics, err := telemetry.NewAgentMetrics("atlas/planner")
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = fanOutBudget
	}
	p := &Planner{
		weatherURL:  strings.TrimRight(opts.WeatherURL, "/"),
		eventsURL:   strings.TrimRight(opts.EventsURL, "/"),
		client:      httpx.NewClient(opts.Timeout),
		httpTimeout: opts.Timeout,
		tracer:      otel.Tracer("atlas/planner"),
		metrics:     metrics,
		history:     opts.History,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		weatherBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             subAgentWeather,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		}),
		eventsBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             subAgentEvents,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		}),
	}
	return p, nil
}

// Plan handles one travel plan request.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (resp *PlanResponse, err error) {
	start := time.Now()
	planID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "invoke_agent "+agentName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AgentAttributes(agentID, agentName, agentDescription, planID)...),
		trace.WithAttributes(telemetry.ChatAttributes(modelSystem, requestModel, 1024, 0.7)...),
	)
	defer span.End()

	defer func() {
		if err != nil {
			ae := errors.AsAgentError(err)
			span.SetAttributes(attribute.String(telemetry.AttrErrorType, ae.WireType()))
			span.SetStatus(codes.Error, ae.Message)
			p.metrics.RecordInvocation(ctx, agentName, ae.WireType())
		} else {
			p.metrics.RecordInvocation(ctx, agentName, "success")
		}
		p.metrics.RecordOperationDuration(ctx, telemetry.OpInvokeAgent, modelSystem, requestModel, time.Since(start))
	}()

	injected := p.activeFault(req.Fault)

	budget := p.httpTimeout
	if injected == fault.TypeFanOutTimeout {
		budget = fanOutFaultBudget
	}
	if injected == fault.TypePartialFailure {
		// Each branch independently gets an error fault so the failure is
		// visible in the sub-agent's own telemetry, not just here. The fault
		// type matches what each agent understands.
		if p.flip(partialFailureProb) {
			req.WeatherFault = &fault.Config{Type: fault.TypeToolError}
		}
		if p.flip(partialFailureProb) {
			req.EventsFault = &fault.Config{Type: fault.TypeError}
		}
	}

	// Simulated model turn planning the fan-out
	p.chat(ctx, req.Destination)

	weather, events, planErrors := p.fanOut(ctx, req, budget, planID)

	partial := len(planErrors) > 0
	span.SetAttributes(
		attribute.Bool("atlas.plan.partial", partial),
		attribute.Int("atlas.plan.error_count", len(planErrors)),
	)
	if partial {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of 2 branches failed", len(planErrors)))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	resp = &PlanResponse{
		PlanID:         planID,
		Destination:    req.Destination,
		Weather:        weather,
		Events:         events,
		Recommendation: p.recommend(req.Destination, weather, events, planErrors),
		Partial:        partial,
		Errors:         planErrors,
	}

	if p.history != nil {
		entry := HistoryEntry{
			ID:          planID,
			Destination: req.Destination,
			Partial:     partial,
			ErrorCount:  len(planErrors),
			DurationMs:  time.Since(start).Milliseconds(),
		}
		if herr := p.history.Record(ctx, entry); herr != nil {
			span.AddEvent("plan history write failed", trace.WithAttributes(
				attribute.String("error", herr.Error()),
			))
		}
	}
	return resp, nil
}

// fanOut invokes both sub-agents concurrently under the shared budget.
func (p *Planner) fanOut(ctx context.Context, req PlanRequest, budget time.Duration, planID string) (string, []Event, []PlanError) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		weather    string
		events     []Event
		planErrors []PlanError
	)

	record := func(agent string, err error) {
		ae := errors.AsAgentError(err)
		mu.Lock()
		planErrors = append(planErrors, PlanError{
			Agent:   agent,
			Type:    ae.WireType(),
			Message: ae.Message,
		})
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		result, err := p.callWeather(ctx, req, planID)
		if err != nil {
			record(subAgentWeather, err)
			return
		}
		mu.Lock()
		weather = result
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		result, err := p.callEvents(ctx, req)
		if err != nil {
			record(subAgentEvents, err)
			return
		}
		mu.Lock()
		events = result
		mu.Unlock()
	}()
	wg.Wait()

	if events == nil {
		events = []Event{}
	}
	return weather, events, planErrors
}

func (p *Planner) callWeather(ctx context.Context, req PlanRequest, planID string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "invoke_agent "+subAgentWeather,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(telemetry.AttrOperationName, telemetry.OpInvokeAgent),
			attribute.String(telemetry.AttrAgentID, subAgentWeather),
		),
	)
	defer span.End()

	var out weatherInvokeResponse
	call := func() error {
		return httpx.PostJSON(ctx, p.client, p.weatherURL+"/invoke", weatherInvokeRequest{
			Message:        "What's the weather in " + req.Destination + "?",
			ConversationID: planID,
			Fault:          req.WeatherFault,
		}, &out)
	}
	err := p.weatherBreaker.Call(ctx, call)
	p.metrics.RecordBreakerState(ctx, subAgentWeather, p.weatherBreaker.StateValue())
	if err != nil {
		ae := errors.AsAgentError(err)
		span.SetAttributes(attribute.String(telemetry.AttrErrorType, ae.WireType()))
		span.SetStatus(codes.Error, ae.Message)
		return "", ae
	}
	span.SetStatus(codes.Ok, "")
	return out.Response, nil
}

func (p *Planner) callEvents(ctx context.Context, req PlanRequest) ([]Event, error) {
	ctx, span := p.tracer.Start(ctx, "invoke_agent "+subAgentEvents,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(telemetry.AttrOperationName, telemetry.OpInvokeAgent),
			attribute.String(telemetry.AttrAgentID, subAgentEvents),
		),
	)
	defer span.End()

	var out eventsResponse
	call := func() error {
		return httpx.PostJSON(ctx, p.client, p.eventsURL+"/events", eventsRequest{
			Destination: req.Destination,
			Date:        req.Date,
			Fault:       req.EventsFault,
		}, &out)
	}
	err := p.eventsBreaker.Call(ctx, call)
	p.metrics.RecordBreakerState(ctx, subAgentEvents, p.eventsBreaker.StateValue())
	if err != nil {
		ae := errors.AsAgentError(err)
		span.SetAttributes(attribute.String(telemetry.AttrErrorType, ae.WireType()))
		span.SetStatus(codes.Error, ae.Message)
		return nil, ae
	}
	span.SetStatus(codes.Ok, "")
	return out.Events, nil
}

// chat emits the synthetic chat span for the planning model turn.
func (p *Planner) chat(ctx context.Context, destination string) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "chat "+requestModel,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.ChatAttributes(modelSystem, requestModel, 1024, 0.7)...),
	)
	defer span.End()

	p.sleep(ctx, time.Duration(100+p.intn(200))*time.Millisecond)

	inputTokens := 60 + p.intn(80)
	outputTokens := 80 + p.intn(160)
	span.SetAttributes(telemetry.UsageAttributes("resp_"+uuid.NewString()[:8], requestModel, inputTokens, outputTokens, "tool_use")...)
	span.SetAttributes(telemetry.MessageAttributes("",
		[]map[string]string{{"role": "user", "content": "Plan a trip to " + destination}}, nil)...)

	p.metrics.RecordTokenUsage(ctx, modelSystem, requestModel, int64(inputTokens), int64(outputTokens))
	p.metrics.RecordOperationDuration(ctx, telemetry.OpChat, modelSystem, requestModel, time.Since(start))
}

// recommend assembles the plan text from whatever the branches returned.
func (p *Planner) recommend(destination, weather string, events []Event, planErrors []PlanError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Travel plan for %s.", destination)
	if weather != "" {
		fmt.Fprintf(&b, " Weather outlook: %s", weather)
	}
	if len(events) > 0 {
		names := make([]string, 0, len(events))
		for _, e := range events {
			names = append(names, e.Name)
		}
		fmt.Fprintf(&b, " Worth catching: %s.", strings.Join(names, ", "))
	}
	for _, pe := range planErrors {
		fmt.Fprintf(&b, " (%s data unavailable: %s)", pe.Agent, pe.Type)
	}
	return b.String()
}

func (p *Planner) activeFault(cfg *fault.Config) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Triggered(p.rng) {
		return cfg.Type
	}
	return ""
}

func (p *Planner) flip(prob float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < prob
}

func (p *Planner) intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

func (p *Planner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
