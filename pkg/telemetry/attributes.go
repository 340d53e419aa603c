// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
)

// Gen-AI and MCP semantic convention attribute names used across the
// ATLAS agents. These follow the OpenTelemetry gen_ai conventions.
const (
	// Operation attributes
	AttrOperationName = "gen_ai.operation.name"

	// Agent attributes
	AttrAgentID          = "gen_ai.agent.id"
	AttrAgentName        = "gen_ai.agent.name"
	AttrAgentDescription = "gen_ai.agent.description"
	AttrConversationID   = "gen_ai.conversation.id"

	// Model request/response attributes
	AttrSystem              = "gen_ai.system"
	AttrRequestModel        = "gen_ai.request.model"
	AttrRequestMaxTokens    = "gen_ai.request.max_tokens"
	AttrRequestTemperature  = "gen_ai.request.temperature"
	AttrResponseID          = "gen_ai.response.id"
	AttrResponseModel       = "gen_ai.response.model"
	AttrFinishReasons       = "gen_ai.response.finish_reasons"
	AttrUsageInputTokens    = "gen_ai.usage.input_tokens"
	AttrUsageOutputTokens   = "gen_ai.usage.output_tokens"
	AttrSystemInstructions  = "gen_ai.system_instructions"
	AttrInputMessages       = "gen_ai.input.messages"
	AttrOutputMessages      = "gen_ai.output.messages"
	AttrRequestFunctions    = "gen_ai.request.functions"
	AttrOutputType          = "gen_ai.output.type"

	// Tool attributes
	AttrToolName          = "gen_ai.tool.name"
	AttrToolType          = "gen_ai.tool.type"
	AttrToolDescription   = "gen_ai.tool.description"
	AttrToolCallID        = "gen_ai.tool.call.id"
	AttrToolCallArguments = "gen_ai.tool.call.arguments"
	AttrToolCallResult    = "gen_ai.tool.call.result"

	// MCP attributes
	AttrMCPMethodName      = "mcp.method.name"
	AttrMCPSessionID       = "mcp.session.id"
	AttrMCPProtocolVersion = "mcp.protocol.version"
	AttrJSONRPCRequestID   = "jsonrpc.request.id"

	// Error attributes
	AttrErrorType = "error.type"
)

// Operation names recorded in gen_ai.operation.name.
const (
	OpInvokeAgent = "invoke_agent"
	OpChat        = "chat"
	OpExecuteTool = "execute_tool"
)

// Token type values for the gen_ai.client.token.usage metric.
const (
	TokenTypeInput  = "input"
	TokenTypeOutput = "output"
)

// MCPProtocolVersion is the MCP revision the tool server speaks.
const MCPProtocolVersion = "2025-06-18"

// AgentAttributes returns the identity attributes for an invoke_agent span.
func AgentAttributes(agentID, name, description, conversationID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOperationName, OpInvokeAgent),
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentName, name),
	}
	if description != "" {
		attrs = append(attrs, attribute.String(AttrAgentDescription, description))
	}
	if conversationID != "" {
		attrs = append(attrs, attribute.String(AttrConversationID, conversationID))
	}
	return attrs
}

// ChatAttributes returns the request-side attributes for a chat span.
func ChatAttributes(system, model string, maxTokens int, temperature float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOperationName, OpChat),
		attribute.String(AttrRequestModel, model),
	}
	if system != "" {
		attrs = append(attrs, attribute.String(AttrSystem, system))
	}
	if maxTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrRequestMaxTokens, maxTokens))
	}
	if temperature > 0 {
		attrs = append(attrs, attribute.Float64(AttrRequestTemperature, temperature))
	}
	return attrs
}

// UsageAttributes returns response-side attributes for a completed model call.
func UsageAttributes(responseID, responseModel string, inputTokens, outputTokens int, finishReasons ...string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrUsageInputTokens, inputTokens),
		attribute.Int(AttrUsageOutputTokens, outputTokens),
	}
	if responseID != "" {
		attrs = append(attrs, attribute.String(AttrResponseID, responseID))
	}
	if responseModel != "" {
		attrs = append(attrs, attribute.String(AttrResponseModel, responseModel))
	}
	if len(finishReasons) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrFinishReasons, finishReasons))
	}
	return attrs
}

// ToolAttributes returns the attributes for an execute_tool span.
func ToolAttributes(name, toolType, callID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrOperationName, OpExecuteTool),
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolType, toolType),
		attribute.String(AttrToolCallID, callID),
	}
}

// ToolPayloadAttributes returns tool call arguments and result, JSON-encoded
// and truncated so oversized payloads do not bloat span storage.
func ToolPayloadAttributes(args any, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 2000
	}
	attrs := []attribute.KeyValue{}
	if args != nil {
		if encoded, err := json.Marshal(args); err == nil {
			attrs = append(attrs, attribute.String(AttrToolCallArguments, truncate(string(encoded), maxLen)))
		}
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolCallResult, truncate(result, maxLen)))
	}
	return attrs
}

// MessageAttributes encodes input/output message lists as JSON span attributes.
func MessageAttributes(systemInstructions string, input, output any) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if systemInstructions != "" {
		attrs = append(attrs, attribute.String(AttrSystemInstructions, systemInstructions))
	}
	if input != nil {
		if encoded, err := json.Marshal(input); err == nil {
			attrs = append(attrs, attribute.String(AttrInputMessages, string(encoded)))
		}
	}
	if output != nil {
		if encoded, err := json.Marshal(output); err == nil {
			attrs = append(attrs, attribute.String(AttrOutputMessages, string(encoded)))
		}
	}
	return attrs
}

// MCPAttributes returns the attributes shared by MCP request spans.
func MCPAttributes(method, sessionID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMCPMethodName, method),
		attribute.String(AttrMCPProtocolVersion, MCPProtocolVersion),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrMCPSessionID, sessionID))
	}
	return attrs
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
