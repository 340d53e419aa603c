// Package weather implements the mock weather agent: a simulated LLM that
// picks one of three weather tools, executes it, and emits Gen-AI
// semantic-convention telemetry for every step.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
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
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	agentID          = "weather-agent"
	agentName        = "WeatherAgent"
	agentDescription = "Answers weather questions using current, forecast, and historical weather tools"

	modelSystem  = "anthropic"
	requestModel = "claude-sonnet-4-20250514"

	systemInstructions = "You are a weather assistant. Use the provided tools to answer weather questions accurately. Do not invent data."
)

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Fault          *fault.Config `json:"fault,omitempty"`
}

// InvokeResponse is the success body of POST /invoke.
type InvokeResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// Agent is the mock weather agent.
type Agent struct {
	tracer  trace.Tracer
	metrics *telemetry.AgentMetrics

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAgent creates the weather agent and its metric instruments.
func NewAgent() (*Agent, error) {
	metrics, err := telemetry.NewAgentMetrics("atlas/weather")
	if err != nil {
		return nil, err
	}
	return &Agent{
		tracer:  otel.Tracer("atlas/weather"),
		metrics: metrics,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

var locationPattern = regexp.MustCompile(`(?i)\b(?:in|for|at)\s+([A-Za-zÀ-ÿ][A-Za-zÀ-ÿ .'-]*?)(?:[?.!,]|$)`)

func extractLocation(message string) string {
	if m := locationPattern.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "San Francisco"
}

// selectTool is the "LLM decision": forecast and historical keywords route
// to their tools, everything else gets current weather.
func selectTool(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "forecast") || strings.Contains(lower, "tomorrow") || strings.Contains(lower, "next week"):
		return toolForecast
	case strings.Contains(lower, "historical") || strings.Contains(lower, "history") || strings.Contains(lower, "last month") || strings.Contains(lower, "past"):
		return toolHistoricalWeather
	default:
		return toolCurrentWeather
	}
}

func wrongToolFor(selected string) string {
	// Deliberately pick a different tool than the request asked for.
	switch selected {
	case toolCurrentWeather:
		return toolHistoricalWeather
	case toolForecast:
		return toolCurrentWeather
	default:
		return toolForecast
	}
}

// Invoke runs one agent invocation: simulated LLM call, tool execution, and
// answer synthesis, with fault injection applied along the way.
func (a *Agent) Invoke(ctx context.Context, req InvokeRequest) (resp *InvokeResponse, err error) {
	start := time.Now()

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx, span := a.tracer.Start(ctx, "invoke_agent "+agentName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.AgentAttributes(agentID, agentName, agentDescription, conversationID)...),
	)
	defer span.End()

	span.SetAttributes(telemetry.ChatAttributes(modelSystem, requestModel, 1024, 0.7)...)
	if defs, encodeErr := json.Marshal(toolDefinitions()); encodeErr == nil {
		span.SetAttributes(attribute.String(telemetry.AttrRequestFunctions, string(defs)))
	}

	inputMessages := []map[string]string{{"role": "user", "content": req.Message}}
	span.SetAttributes(telemetry.MessageAttributes(systemInstructions, inputMessages, nil)...)

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
		a.metrics.RecordOperationDuration(ctx, telemetry.OpInvokeAgent, modelSystem, requestModel, time.Since(start))
	}()

	injected := a.activeFault(req.Fault)

	switch injected {
	case fault.TypeHighLatency:
		a.sleep(ctx, req.Fault.Delay())
	case fault.TypeRateLimited:
		return nil, errors.New(errors.CodeRateLimit, "model provider rate limit exceeded", nil).
			WithRecoverable(true)
	}

	location := extractLocation(req.Message)
	tool := selectTool(req.Message)
	if injected == fault.TypeWrongTool {
		if req.Fault.Tool != "" {
			tool = req.Fault.Tool
		} else {
			tool = wrongToolFor(tool)
		}
	}

	// Simulated LLM turn deciding on the tool call
	chatOut, chatErr := a.chat(ctx, req.Message, tool, injected)
	if chatErr != nil {
		return nil, chatErr
	}

	var answer string
	switch injected {
	case fault.TypeHallucination:
		// The model answers from nowhere: no tool call at all.
		answer = fmt.Sprintf("The weather in %s is a perfect 22°C with clear skies, as it has been for the last 40 days straight.", location)
	case fault.TypeTokenLimitExceeded:
		answer = chatOut.truncated
	default:
		result, toolErr := a.executeTool(ctx, tool, location, injected, req.Fault)
		if toolErr != nil {
			return nil, toolErr
		}
		answer = summarizeResult(tool, location, result)
	}

	outputMessages := []map[string]string{{"role": "assistant", "content": answer}}
	span.SetAttributes(telemetry.MessageAttributes("", nil, outputMessages)...)
	span.SetAttributes(telemetry.UsageAttributes(chatOut.responseID, requestModel, chatOut.inputTokens, chatOut.outputTokens, chatOut.finishReason)...)

	return &InvokeResponse{Response: answer, ConversationID: conversationID}, nil
}

type chatResult struct {
	responseID   string
	inputTokens  int
	outputTokens int
	finishReason string
	truncated    string
}

// chat simulates the model call and emits the chat span.
func (a *Agent) chat(ctx context.Context, message, tool, injected string) (*chatResult, error) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "chat "+requestModel,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.ChatAttributes(modelSystem, requestModel, 1024, 0.7)...),
	)
	defer span.End()

	a.sleep(ctx, time.Duration(200+a.intn(400))*time.Millisecond)

	out := &chatResult{
		responseID:   "resp_" + uuid.NewString()[:8],
		inputTokens:  len(message)/4 + 20 + a.intn(40),
		outputTokens: 60 + a.intn(120),
		finishReason: "tool_use",
	}

	switch injected {
	case fault.TypeHallucination:
		out.finishReason = "stop"
	case fault.TypeTokenLimitExceeded:
		out.finishReason = "length"
		out.outputTokens = 1024
		out.truncated = "The weather data for your location shows temperatures ranging from approximately fifteen to twenty-two degrees with conditions that can best be described as"
	}

	span.SetAttributes(telemetry.UsageAttributes(out.responseID, requestModel, out.inputTokens, out.outputTokens, out.finishReason)...)
	span.SetAttributes(attribute.String(telemetry.AttrToolName, tool))

	a.metrics.RecordTokenUsage(ctx, modelSystem, requestModel, int64(out.inputTokens), int64(out.outputTokens))
	a.metrics.RecordOperationDuration(ctx, telemetry.OpChat, modelSystem, requestModel, time.Since(start))

	return out, nil
}

// executeTool runs the selected tool inside an execute_tool span, applying
// tool-level faults.
func (a *Agent) executeTool(ctx context.Context, tool, location, injected string, cfg *fault.Config) (map[string]any, error) {
	callID := "call_" + uuid.NewString()[:8]
	ctx, span := a.tracer.Start(ctx, "execute_tool "+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(telemetry.ToolAttributes(tool, "function", callID)...),
	)
	defer span.End()

	args := map[string]any{"location": location}

	switch injected {
	case fault.TypeToolTimeout:
		a.sleep(ctx, 2*time.Second)
		err := errors.New(errors.CodeTimeout, fmt.Sprintf("tool %s timed out", tool), nil).
			WithContext("tool", tool).
			WithRecoverable(true)
		span.SetAttributes(telemetry.ToolPayloadAttributes(args, "", 0)...)
		span.SetAttributes(attribute.String(telemetry.AttrErrorType, err.WireType()))
		span.SetStatus(codes.Error, err.Message)
		return nil, err

	case fault.TypeToolError:
		err := errors.New(errors.CodeToolFailure, fmt.Sprintf("tool %s failed: upstream weather API returned 500", tool), nil).
			WithContext("tool", tool)
		span.SetAttributes(telemetry.ToolPayloadAttributes(args, "", 0)...)
		span.SetAttributes(attribute.String(telemetry.AttrErrorType, err.WireType()))
		span.SetStatus(codes.Error, err.Message)
		return nil, err
	}

	result, latency := a.runToolLocked(tool, location)
	a.sleep(ctx, latency)

	encoded, _ := json.Marshal(result)
	span.SetAttributes(telemetry.ToolPayloadAttributes(args, string(encoded), 0)...)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// activeFault rolls the probability gate and returns the fault type to
// apply, or "".
func (a *Agent) activeFault(cfg *fault.Config) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.Triggered(a.rng) {
		return cfg.Type
	}
	return ""
}

func (a *Agent) runToolLocked(tool, location string) (map[string]any, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return runTool(a.rng, tool, location)
}

func (a *Agent) intn(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Intn(n)
}

// sleep waits for d or until the context is done.
func (a *Agent) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
