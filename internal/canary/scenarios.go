package canary

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/atlas/pkg/errors"
	"github.com/atlasops/atlas/pkg/fault"
	"github.com/atlasops/atlas/pkg/httpx"
)

// Scenario names, in suite order.
const (
	ScenarioSimpleToolCall      = "simple_tool_call"
	ScenarioMultiToolChain      = "multi_tool_chain"
	ScenarioToolFailure         = "tool_failure"
	ScenarioHighTokenUsage      = "high_token_usage"
	ScenarioConversationContext = "conversation_context"
	ScenarioMultiAgent          = "multi_agent"
)

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Name           string        `json:"name"`
	Success        bool          `json:"success"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// Suite runs named trace-shape scenarios against the live agents.
type Suite struct {
	WeatherURL   string
	PlannerURL   string
	AssistantURL string
	Client       *http.Client
}

// NewSuite builds a scenario suite against the given agent base URLs.
func NewSuite(weatherURL, plannerURL, assistantURL string) *Suite {
	return &Suite{
		WeatherURL:   weatherURL,
		PlannerURL:   plannerURL,
		AssistantURL: assistantURL,
		Client:       httpx.NewClient(60 * time.Second),
	}
}

type invokeRequest struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Fault          *fault.Config `json:"fault,omitempty"`
}

type invokeResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// RunAll executes every scenario in order and returns their results.
func (s *Suite) RunAll(ctx context.Context) []ScenarioResult {
	runs := []struct {
		name string
		fn   func(context.Context) (string, error)
	}{
		{ScenarioSimpleToolCall, s.simpleToolCall},
		{ScenarioMultiToolChain, s.multiToolChain},
		{ScenarioToolFailure, s.toolFailure},
		{ScenarioHighTokenUsage, s.highTokenUsage},
		{ScenarioConversationContext, s.conversationContext},
		{ScenarioMultiAgent, s.multiAgent},
	}

	results := make([]ScenarioResult, 0, len(runs))
	for _, run := range runs {
		start := time.Now()
		conversationID, err := run.fn(ctx)
		result := ScenarioResult{
			Name:           run.name,
			Success:        err == nil,
			Duration:       time.Since(start),
			ConversationID: conversationID,
		}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results
}

// simpleToolCall produces the minimal trace: one agent, one tool.
func (s *Suite) simpleToolCall(ctx context.Context) (string, error) {
	var out invokeResponse
	err := httpx.PostJSON(ctx, s.Client, s.WeatherURL+"/invoke", invokeRequest{
		Message: "What's the weather in Paris?",
	}, &out)
	return out.ConversationID, err
}

// multiToolChain produces a trace with several tool spans under one
// invocation.
func (s *Suite) multiToolChain(ctx context.Context) (string, error) {
	var out invokeResponse
	err := httpx.PostJSON(ctx, s.Client, s.AssistantURL+"/invoke", invokeRequest{
		Message: "Review the storage layer and run the tests",
	}, &out)
	return out.ConversationID, err
}

// toolFailure produces a trace whose tool span errors. The scenario
// succeeds when the agent fails the expected way.
func (s *Suite) toolFailure(ctx context.Context) (string, error) {
	err := httpx.PostJSON(ctx, s.Client, s.WeatherURL+"/invoke", invokeRequest{
		Message: "What's the weather in Paris?",
		Fault:   &fault.Config{Type: fault.TypeToolError},
	}, nil)
	if err == nil {
		return "", fmt.Errorf("expected a tool failure, got success")
	}
	if ae := errors.AsAgentError(err); ae.Code != errors.CodeToolFailure {
		return "", fmt.Errorf("expected %s, got %s", errors.CodeToolFailure, ae.Code)
	}
	return "", nil
}

// highTokenUsage produces a trace whose chat span reports maxed-out output
// tokens and a length finish reason.
func (s *Suite) highTokenUsage(ctx context.Context) (string, error) {
	var out invokeResponse
	err := httpx.PostJSON(ctx, s.Client, s.WeatherURL+"/invoke", invokeRequest{
		Message: "Give me a detailed report of the weather in Paris",
		Fault:   &fault.Config{Type: fault.TypeTokenLimitExceeded},
	}, &out)
	return out.ConversationID, err
}

// conversationContext issues two invocations under the same conversation id
// so both traces carry it.
func (s *Suite) conversationContext(ctx context.Context) (string, error) {
	conversationID := uuid.NewString()

	var first invokeResponse
	if err := httpx.PostJSON(ctx, s.Client, s.WeatherURL+"/invoke", invokeRequest{
		Message:        "What's the weather in Tokyo?",
		ConversationID: conversationID,
	}, &first); err != nil {
		return conversationID, err
	}

	var second invokeResponse
	if err := httpx.PostJSON(ctx, s.Client, s.WeatherURL+"/invoke", invokeRequest{
		Message:        "And what's the forecast for tomorrow?",
		ConversationID: conversationID,
	}, &second); err != nil {
		return conversationID, err
	}

	if first.ConversationID != conversationID || second.ConversationID != conversationID {
		return conversationID, fmt.Errorf("conversation id not preserved across turns")
	}
	return conversationID, nil
}

// multiAgent produces the deepest trace: planner fanning out to both
// sub-agents, which call the tool server in turn.
func (s *Suite) multiAgent(ctx context.Context) (string, error) {
	var out planResponse
	err := httpx.PostJSON(ctx, s.Client, s.PlannerURL+"/plan", planRequest{
		Destination: "Berlin",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Partial {
		return out.PlanID, fmt.Errorf("expected a complete plan, got partial with %d errors", len(out.Errors))
	}
	return out.PlanID, nil
}
