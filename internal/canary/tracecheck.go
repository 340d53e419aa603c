package canary

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// spanIndexPattern is where Data Prepper writes raw spans.
const spanIndexPattern = "otel-v1-apm-span-*"

// Data Prepper stores span attributes with dots replaced by '@'.
const (
	fieldAgentID        = "span.attributes.gen_ai@agent@id"
	fieldAgentName      = "span.attributes.gen_ai@agent@name"
	fieldConversationID = "span.attributes.gen_ai@conversation@id"
)

// TraceChecker validates that emitted traces landed in OpenSearch with the
// structure the dashboards expect.
type TraceChecker struct {
	client *opensearch.Client
}

// NewTraceChecker connects to OpenSearch. TLS verification is skipped since
// the demo cluster runs with self-signed certificates.
func NewTraceChecker(url, username, password string) (*TraceChecker, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	return &TraceChecker{client: client}, nil
}

// SpanDoc is the subset of a Data Prepper span document the checker reads.
type SpanDoc struct {
	TraceID        string
	SpanID         string
	ParentSpanID   string
	Name           string
	ServiceName    string
	AgentID        string
	AgentName      string
	ConversationID string
}

// TraceReport summarizes one validated trace.
type TraceReport struct {
	TraceID         string   `json:"trace_id"`
	SpanCount       int      `json:"span_count"`
	AgentIDs        []string `json:"agent_ids"`
	ConversationIDs []string `json:"conversation_ids"`
	Problems        []string `json:"problems,omitempty"`
}

// Valid reports whether the trace passed all structural checks.
func (r *TraceReport) Valid() bool {
	return len(r.Problems) == 0
}

// SpansByConversation fetches all spans carrying the conversation id,
// across traces.
func (c *TraceChecker) SpansByConversation(ctx context.Context, conversationID string) ([]SpanDoc, error) {
	body := fmt.Sprintf(`{
		"size": 500,
		"query": {"term": {"%s": %q}}
	}`, fieldConversationID, conversationID)
	return c.search(ctx, body)
}

// CheckTrace fetches every span of the trace and validates its structure:
// one root, intact parent links, and consistent agent identity attributes.
func (c *TraceChecker) CheckTrace(ctx context.Context, traceID string) (*TraceReport, error) {
	body := fmt.Sprintf(`{
		"size": 500,
		"query": {"term": {"traceId": %q}}
	}`, traceID)
	spans, err := c.search(ctx, body)
	if err != nil {
		return nil, err
	}

	report := &TraceReport{TraceID: traceID, SpanCount: len(spans)}
	if len(spans) == 0 {
		report.Problems = append(report.Problems, "no spans found for trace")
		return report, nil
	}

	byID := make(map[string]SpanDoc, len(spans))
	for _, s := range spans {
		byID[s.SpanID] = s
	}

	roots := 0
	agentIDs := map[string]bool{}
	conversationIDs := map[string]bool{}
	for _, s := range spans {
		if s.ParentSpanID == "" {
			roots++
		} else if _, ok := byID[s.ParentSpanID]; !ok {
			report.Problems = append(report.Problems,
				fmt.Sprintf("span %s (%s) references missing parent %s", s.SpanID, s.Name, s.ParentSpanID))
		}
		if s.AgentID != "" {
			agentIDs[s.AgentID] = true
		}
		if s.ConversationID != "" {
			conversationIDs[s.ConversationID] = true
		}
	}
	if roots == 0 {
		report.Problems = append(report.Problems, "trace has no root span")
	}

	for id := range agentIDs {
		report.AgentIDs = append(report.AgentIDs, id)
	}
	for id := range conversationIDs {
		report.ConversationIDs = append(report.ConversationIDs, id)
	}
	return report, nil
}

// WaitForTrace polls until the trace shows up in the span index, bounded by
// the context. Spans land with export and index refresh lag, so the canary
// gives them a grace period.
func (c *TraceChecker) WaitForTrace(ctx context.Context, traceID string, poll time.Duration) (*TraceReport, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		report, err := c.CheckTrace(ctx, traceID)
		if err == nil && report.SpanCount > 0 {
			return report, nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return nil, err
			}
			return report, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForConversation polls until spans carrying the conversation id land in
// the index, then validates the trace they belong to.
func (c *TraceChecker) WaitForConversation(ctx context.Context, conversationID string, poll time.Duration) (*TraceReport, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		spans, err := c.SpansByConversation(ctx, conversationID)
		if err == nil && len(spans) > 0 {
			return c.CheckTrace(ctx, spans[0].TraceID)
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return nil, err
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *TraceChecker) search(ctx context.Context, body string) ([]SpanDoc, error) {
	req := opensearchapi.SearchRequest{
		Index: []string{spanIndexPattern},
		Body:  strings.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("span search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("span search returned %s", res.Status())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode span search: %w", err)
	}

	spans := make([]SpanDoc, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		spans = append(spans, spanFromSource(hit.Source))
	}
	return spans, nil
}

func spanFromSource(source map[string]any) SpanDoc {
	str := func(key string) string {
		if v, ok := source[key].(string); ok {
			return v
		}
		return ""
	}
	return SpanDoc{
		TraceID:        str("traceId"),
		SpanID:         str("spanId"),
		ParentSpanID:   str("parentSpanId"),
		Name:           str("name"),
		ServiceName:    str("serviceName"),
		AgentID:        str(fieldAgentID),
		AgentName:      str(fieldAgentName),
		ConversationID: str(fieldConversationID),
	}
}
