// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	ae := New(CodeTimeout, "tool execution timed out", cause)

	if ae.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", ae.Code)
	}
	if ae.Message != "tool execution timed out" {
		t.Errorf("expected message 'tool execution timed out', got %q", ae.Message)
	}
	if ae.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(ae, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	ae := New(CodeToolFailure, "tool failed", nil)
	ae.WithContext("tool", "get_current_weather").
		WithContext("args", map[string]interface{}{"location": "London"})

	if ae.Context["tool"] != "get_current_weather" {
		t.Errorf("expected context tool to be 'get_current_weather'")
	}
	if ae.Context["args"] == nil {
		t.Errorf("expected context args to be set")
	}
}

func TestWithAttribute(t *testing.T) {
	ae := New(CodeToolFailure, "tool failed", nil)
	ae.WithAttribute("tool_name", "get_forecast").
		WithAttribute("retry_count", "3")

	if ae.Attributes["tool_name"] != "get_forecast" {
		t.Errorf("expected attribute tool_name")
	}
	if ae.Attributes["retry_count"] != "3" {
		t.Errorf("expected attribute retry_count")
	}
}

func TestWithRecoverable(t *testing.T) {
	ae := New(CodeToolFailure, "network error", nil)
	if ae.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}

	ae.WithRecoverable(true)
	if !ae.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		ae       *AgentError
		expected string
	}{
		{
			name:     "with cause",
			ae:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			ae:       New(CodeNotFound, "tool not found", nil),
			expected: "[NOT_FOUND] tool not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ae.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAsAgentError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "already AgentError",
			err:      New(CodeToolFailure, "failed", nil),
			expected: CodeToolFailure,
		},
		{
			name:     "generic error",
			err:      errors.New("generic error"),
			expected: CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := AsAgentError(tt.err)
			if tt.expected == "" {
				if ae != nil {
					t.Errorf("expected nil for nil error")
				}
			} else {
				if ae == nil {
					t.Errorf("expected non-nil AgentError")
				} else if ae.Code != tt.expected {
					t.Errorf("expected %v, got %v", tt.expected, ae.Code)
				}
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	ae := New(CodeToolFailure, "tool failed", errors.New("network error"))
	ae.WithContext("tool", "fetch_events_api").
		WithAttribute("retry_count", "1").
		WithRecoverable(true)

	data, err := json.Marshal(ae)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "TOOL_FAILURE" {
		t.Errorf("expected code 'TOOL_FAILURE', got %v", result["code"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{CodeNotFound, 404},
		{CodeInvalidInput, 400},
		{CodeTimeout, 504},
		{CodeToolFailure, 502},
		{CodeRateLimit, 429},
		{CodeUnavailable, 503},
		{CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			ae := New(tt.code, "test", nil)
			if ae.StatusCode != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, ae.StatusCode)
			}
		})
	}
}

func TestWireTypeRoundTrip(t *testing.T) {
	codes := []ErrorCode{
		CodeTimeout, CodeToolFailure, CodeRateLimit,
		CodeInvalidInput, CodeNotFound, CodeUnavailable, CodeInternal,
	}
	for _, code := range codes {
		ae := New(code, "test", nil)
		if got := CodeForWireType(ae.WireType()); got != code {
			t.Errorf("round trip for %s: got %s via wire type %q", code, got, ae.WireType())
		}
	}
	if CodeForWireType("something_else") != CodeInternal {
		t.Error("unknown wire type should map to CodeInternal")
	}
}
