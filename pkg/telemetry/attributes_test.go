// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()
	got := map[string]any{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.AsInterface()
	}
	for key, want := range expected {
		value, ok := got[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}
		switch w := want.(type) {
		case int:
			if value != int64(w) {
				t.Errorf("attribute %s = %v, want %v", key, value, w)
			}
		default:
			if value != want {
				t.Errorf("attribute %s = %v, want %v", key, value, want)
			}
		}
	}
}

func TestAgentAttributes(t *testing.T) {
	attrs := AgentAttributes("weather-agent", "WeatherAgent", "Answers weather questions", "conv-123")

	assertAttributes(t, attrs, map[string]any{
		AttrOperationName:    OpInvokeAgent,
		AttrAgentID:          "weather-agent",
		AttrAgentName:        "WeatherAgent",
		AttrAgentDescription: "Answers weather questions",
		AttrConversationID:   "conv-123",
	})
}

func TestAgentAttributesOmitsEmpty(t *testing.T) {
	attrs := AgentAttributes("a", "A", "", "")
	for _, kv := range attrs {
		if string(kv.Key) == AttrAgentDescription || string(kv.Key) == AttrConversationID {
			t.Errorf("unexpected attribute %s", kv.Key)
		}
	}
}

func TestChatAttributes(t *testing.T) {
	attrs := ChatAttributes("anthropic", "claude-sonnet-4", 1024, 0.7)

	assertAttributes(t, attrs, map[string]any{
		AttrOperationName:      OpChat,
		AttrSystem:             "anthropic",
		AttrRequestModel:       "claude-sonnet-4",
		AttrRequestMaxTokens:   1024,
		AttrRequestTemperature: 0.7,
	})
}

func TestUsageAttributes(t *testing.T) {
	attrs := UsageAttributes("resp-1", "claude-sonnet-4", 120, 48, "tool_use")

	assertAttributes(t, attrs, map[string]any{
		AttrUsageInputTokens:  120,
		AttrUsageOutputTokens: 48,
		AttrResponseID:        "resp-1",
		AttrResponseModel:     "claude-sonnet-4",
	})

	for _, kv := range attrs {
		if string(kv.Key) == AttrFinishReasons {
			reasons := kv.Value.AsStringSlice()
			if len(reasons) != 1 || reasons[0] != "tool_use" {
				t.Errorf("finish reasons = %v, want [tool_use]", reasons)
			}
			return
		}
	}
	t.Error("missing finish reasons attribute")
}

func TestToolAttributes(t *testing.T) {
	attrs := ToolAttributes("get_forecast", "function", "call_abc")

	assertAttributes(t, attrs, map[string]any{
		AttrOperationName: OpExecuteTool,
		AttrToolName:      "get_forecast",
		AttrToolType:      "function",
		AttrToolCallID:    "call_abc",
	})
}

func TestToolPayloadAttributesTruncates(t *testing.T) {
	long := strings.Repeat("x", 100)
	attrs := ToolPayloadAttributes(map[string]string{"q": long}, long, 20)

	for _, kv := range attrs {
		s := kv.Value.AsString()
		if len(s) > 23 {
			t.Errorf("attribute %s not truncated: %d chars", kv.Key, len(s))
		}
		if !strings.HasSuffix(s, "...") {
			t.Errorf("attribute %s missing truncation marker", kv.Key)
		}
	}
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
}

func TestMessageAttributes(t *testing.T) {
	input := []map[string]string{{"role": "user", "content": "hi"}}
	attrs := MessageAttributes("You are helpful.", input, nil)

	keys := map[string]bool{}
	for _, kv := range attrs {
		keys[string(kv.Key)] = true
	}
	if !keys[AttrSystemInstructions] || !keys[AttrInputMessages] {
		t.Errorf("missing expected keys, got %v", keys)
	}
	if keys[AttrOutputMessages] {
		t.Error("output messages should be omitted when nil")
	}
}

func TestMCPAttributes(t *testing.T) {
	attrs := MCPAttributes("tools/call", "sess-1")

	assertAttributes(t, attrs, map[string]any{
		AttrMCPMethodName:      "tools/call",
		AttrMCPSessionID:       "sess-1",
		AttrMCPProtocolVersion: MCPProtocolVersion,
	})
}
