// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AgentMetrics holds the Gen-AI client instruments every ATLAS agent records.
type AgentMetrics struct {
	// tokenUsage counts consumed tokens by type (input/output)
	tokenUsage metric.Int64Counter

	// operationDuration records end-to-end model operation latency in seconds
	operationDuration metric.Float64Histogram

	// invocations counts agent invocations by outcome
	invocations metric.Int64Counter

	// breakerState tracks circuit breaker state per target (0=open, 1=half-open, 2=closed)
	breakerState metric.Int64Gauge
}

// NewAgentMetrics creates the Gen-AI client instruments on the given meter scope.
func NewAgentMetrics(scope string) (*AgentMetrics, error) {
	meter := otel.Meter(scope)

	tokenUsage, err := meter.Int64Counter(
		"gen_ai.client.token.usage",
		metric.WithDescription("Number of input and output tokens used"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		"gen_ai.client.operation.duration",
		metric.WithDescription("GenAI operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	invocations, err := meter.Int64Counter(
		"atlas.agent.invocations",
		metric.WithDescription("Agent invocations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	breakerState, err := meter.Int64Gauge(
		"atlas.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per target (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		tokenUsage:        tokenUsage,
		operationDuration: operationDuration,
		invocations:       invocations,
		breakerState:      breakerState,
	}, nil
}

// RecordTokenUsage records input and output token consumption for a model call.
func (m *AgentMetrics) RecordTokenUsage(ctx context.Context, system, model string, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	base := []attribute.KeyValue{
		attribute.String(AttrSystem, system),
		attribute.String(AttrRequestModel, model),
	}
	m.tokenUsage.Add(ctx, inputTokens, metric.WithAttributes(
		append(base, attribute.String("gen_ai.token.type", TokenTypeInput))...,
	))
	m.tokenUsage.Add(ctx, outputTokens, metric.WithAttributes(
		append(base, attribute.String("gen_ai.token.type", TokenTypeOutput))...,
	))
}

// RecordOperationDuration records the latency of a Gen-AI operation.
func (m *AgentMetrics) RecordOperationDuration(ctx context.Context, operation, system, model string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperationName, operation),
		attribute.String(AttrSystem, system),
		attribute.String(AttrRequestModel, model),
	))
}

// RecordInvocation counts a finished agent invocation with its outcome
// ("success", or an error type like "timeout").
func (m *AgentMetrics) RecordInvocation(ctx context.Context, agentName, outcome string) {
	if m == nil {
		return
	}
	m.invocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agentName),
		attribute.String("outcome", outcome),
	))
}

// RecordBreakerState records a circuit breaker state change for a downstream target.
func (m *AgentMetrics) RecordBreakerState(ctx context.Context, target string, state int64) {
	if m == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(
		attribute.String("target", target),
	))
}
