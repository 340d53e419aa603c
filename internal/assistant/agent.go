// Package assistant implements the mock code assistant: a simulated LLM that
// chains project-reading, generation, review, and execution tools. Unlike the
// travel agents it carries no fault surface; it exists to produce clean
// multi-tool traces next to the noisy ones.
package assistant

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atlasops/atlas/pkg/errors"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	agentID          = "code-assistant"
	agentName        = "CodeAssistant"
	agentDescription = "Reads, writes, reviews, and executes code on request"

	modelSystem  = "anthropic"
	requestModel = "claude-sonnet-4-20250514"

	systemInstructions = "You are a coding assistant. Use the available tools to inspect the project before changing it, and execute code to verify your work."
)

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// InvokeResponse is the success body of POST /invoke.
type InvokeResponse struct {
	Response       string   `json:"response"`
	ToolsUsed      []string `json:"tools_used"`
	ConversationID string   `json:"conversation_id"`
}

// Agent is the mock code assistant.
type Agent struct {
	tracer  trace.Tracer
	metrics *telemetry.AgentMetrics

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAgent creates the code assistant and its metric instruments.
func NewAgent() (*Agent, error) {
	metrics, err := telemetry.NewAgentMetrics("atlas/assistant")
	if err != nil {
		return nil, err
	}
	return &Agent{
		tracer:  otel.Tracer("atlas/assistant"),
		metrics: metrics,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Invoke runs one assistant request: a simulated model turn followed by the
// selected tool chain, each step under its own span.
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

	span.SetAttributes(telemetry.ChatAttributes(modelSystem, requestModel, 2048, 0.2)...)
	if defs, encodeErr := json.Marshal(toolDefinitions()); encodeErr == nil {
		span.SetAttributes(attribute.String(telemetry.AttrRequestFunctions, string(defs)))
	}
	span.SetAttributes(telemetry.MessageAttributes(systemInstructions,
		[]map[string]string{{"role": "user", "content": req.Message}}, nil)...)

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

	tools := selectTools(req.Message)
	chatOut := a.chat(ctx, req.Message, tools)

	results := make(map[string]map[string]any, len(tools))
	for _, tool := range tools {
		result, toolErr := a.executeTool(ctx, tool, req.Message)
		if toolErr != nil {
			return nil, toolErr
		}
		results[tool] = result
	}

	answer := summarizeChain(req.Message, results)
	span.SetAttributes(telemetry.MessageAttributes("", nil,
		[]map[string]string{{"role": "assistant", "content": answer}})...)
	span.SetAttributes(telemetry.UsageAttributes(chatOut.responseID, requestModel, chatOut.inputTokens, chatOut.outputTokens, "tool_use")...)

	return &InvokeResponse{
		Response:       answer,
		ToolsUsed:      tools,
		ConversationID: conversationID,
	}, nil
}

type chatResult struct {
	responseID   string
	inputTokens  int
	outputTokens int
}

// chat simulates the model call and emits the chat span.
func (a *Agent) chat(ctx context.Context, message string, tools []string) *chatResult {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "chat "+requestModel,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.ChatAttributes(modelSystem, requestModel, 2048, 0.2)...),
	)
	defer span.End()

	a.sleep(ctx, time.Duration(200+a.intn(400))*time.Millisecond)

	out := &chatResult{
		responseID:   "resp_" + uuid.NewString()[:8],
		inputTokens:  len(message)/4 + 40 + a.intn(60),
		outputTokens: 100 + a.intn(300),
	}

	span.SetAttributes(telemetry.UsageAttributes(out.responseID, requestModel, out.inputTokens, out.outputTokens, "tool_use")...)
	span.SetAttributes(attribute.StringSlice("atlas.assistant.tool_chain", tools))

	a.metrics.RecordTokenUsage(ctx, modelSystem, requestModel, int64(out.inputTokens), int64(out.outputTokens))
	a.metrics.RecordOperationDuration(ctx, telemetry.OpChat, modelSystem, requestModel, time.Since(start))
	return out
}

// executeTool runs one tool of the chain inside an execute_tool span.
func (a *Agent) executeTool(ctx context.Context, tool, task string) (map[string]any, error) {
	callID := "call_" + uuid.NewString()[:8]
	ctx, span := a.tracer.Start(ctx, "execute_tool "+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(telemetry.ToolAttributes(tool, "function", callID)...),
	)
	defer span.End()

	args := map[string]any{"task": task}
	result, latency := a.runToolLocked(tool, task)
	a.sleep(ctx, latency)

	encoded, _ := json.Marshal(result)
	span.SetAttributes(telemetry.ToolPayloadAttributes(args, string(encoded), 0)...)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (a *Agent) runToolLocked(tool, task string) (map[string]any, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return runTool(a.rng, tool, task)
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
