// Package toolserver implements the MCP tool server backing the agents'
// leaf tools. It exposes fetch_weather_api and fetch_events_api over the
// streamable HTTP transport and wraps every call in MCP-attributed spans.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atlasops/atlas/pkg/mcp"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	serverName    = "atlas-tool-server"
	serverVersion = "0.1.0"

	ToolFetchWeather = "fetch_weather_api"
	ToolFetchEvents  = "fetch_events_api"
)

// Service is the instrumented MCP tool server.
type Service struct {
	mcpServer *mcp.Server
	tracer    trace.Tracer

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates the tool server with both tools registered.
func New() *Service {
	s := &Service{
		mcpServer: mcp.NewServer(serverName, serverVersion),
		tracer:    otel.Tracer("atlas/toolserver"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	s.mcpServer.RegisterTool(ToolFetchWeather, "Fetch raw weather data for a location from the upstream weather API",
		s.instrumented(ToolFetchWeather, s.fetchWeather),
		mcpgo.WithString("location", mcpgo.Required(), mcpgo.Description("City name")),
	)
	s.mcpServer.RegisterTool(ToolFetchEvents, "Fetch upcoming events for a destination from the events API",
		s.instrumented(ToolFetchEvents, s.fetchEvents),
		mcpgo.WithString("destination", mcpgo.Required(), mcpgo.Description("City name")),
	)

	return s
}

// ToolNames lists the registered tools, for the health endpoint.
func (s *Service) ToolNames() []string {
	return []string{ToolFetchWeather, ToolFetchEvents}
}

// ProtocolVersion reports the MCP revision served.
func (s *Service) ProtocolVersion() string {
	return telemetry.MCPProtocolVersion
}

// ServeStreamableHTTP starts the MCP transport on addr.
func (s *Service) ServeStreamableHTTP(addr string) error {
	return s.mcpServer.ServeStreamableHTTP(addr)
}

// HTTPHandler returns the streamable HTTP transport for mounting alongside
// other routes such as the health endpoint.
func (s *Service) HTTPHandler() http.Handler {
	return s.mcpServer.StreamableHTTPServer()
}

// Underlying exposes the wrapped mcp-go server for in-process tests.
func (s *Service) Underlying() *server.MCPServer {
	return s.mcpServer.Underlying()
}

type toolFunc func(ctx context.Context, args map[string]interface{}) (any, error)

// instrumented wraps a tool handler in the SERVER-kind tools/call span and
// an INTERNAL tool_call span carrying a fresh call id.
func (s *Service) instrumented(name string, fn toolFunc) func(ctx context.Context, args map[string]interface{}) (*mcpgo.CallToolResult, error) {
	return func(ctx context.Context, args map[string]interface{}) (*mcpgo.CallToolResult, error) {
		sessionID := ""
		if session := server.ClientSessionFromContext(ctx); session != nil {
			sessionID = session.SessionID()
		}

		ctx, span := s.tracer.Start(ctx, "tools/call "+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(telemetry.MCPAttributes("tools/call", sessionID)...),
			trace.WithAttributes(attribute.String(telemetry.AttrToolName, name)),
		)
		defer span.End()

		result, err := s.runTool(ctx, name, args, fn)
		if err != nil {
			span.SetAttributes(attribute.String(telemetry.AttrErrorType, "tool_error"))
			span.SetStatus(codes.Error, err.Error())
			return &mcpgo.CallToolResult{
				IsError: true,
				Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: err.Error()}},
			}, nil
		}

		encoded, encodeErr := json.Marshal(result)
		if encodeErr != nil {
			span.SetStatus(codes.Error, encodeErr.Error())
			return nil, encodeErr
		}

		span.SetStatus(codes.Ok, "")
		return &mcpgo.CallToolResult{
			Content: []mcpgo.Content{mcpgo.TextContent{Type: "text", Text: string(encoded)}},
		}, nil
	}
}

func (s *Service) runTool(ctx context.Context, name string, args map[string]interface{}, fn toolFunc) (any, error) {
	callID := "call_" + uuid.NewString()[:8]
	ctx, span := s.tracer.Start(ctx, "tool_call "+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(telemetry.ToolAttributes(name, "function", callID)...),
	)
	defer span.End()

	span.SetAttributes(telemetry.ToolPayloadAttributes(args, "", 0)...)

	// Simulated upstream API latency
	s.sleep(ctx, time.Duration(50+s.intn(100))*time.Millisecond)

	result, err := fn(ctx, args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

var conditions = []string{"sunny", "partly cloudy", "overcast", "light rain", "thunderstorms", "foggy"}

func (s *Service) fetchWeather(ctx context.Context, args map[string]interface{}) (any, error) {
	location, _ := args["location"].(string)
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"location":    location,
		"temperature": fmt.Sprintf("%d°C", 5+s.rng.Intn(25)),
		"condition":   conditions[s.rng.Intn(len(conditions))],
		"humidity":    fmt.Sprintf("%d%%", 40+s.rng.Intn(50)),
		"wind":        fmt.Sprintf("%d km/h", 5+s.rng.Intn(30)),
	}, nil
}

var eventTemplates = []struct {
	name  string
	venue string
}{
	{"%s Jazz Festival", "Riverside Park"},
	{"%s Food & Wine Expo", "Convention Center"},
	{"Contemporary Art Night", "%s Modern Gallery"},
	{"%s Marathon", "City Center"},
	{"Open-Air Film Screening", "%s Botanical Gardens"},
	{"Craft Market Weekend", "Old Town %s"},
}

func (s *Service) fetchEvents(ctx context.Context, args map[string]interface{}) (any, error) {
	destination, _ := args["destination"].(string)
	if destination == "" {
		return nil, fmt.Errorf("destination is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 1 + s.rng.Intn(3)
	events := make([]map[string]any, 0, count)
	used := map[int]bool{}
	for len(events) < count {
		idx := s.rng.Intn(len(eventTemplates))
		if used[idx] {
			continue
		}
		used[idx] = true
		tmpl := eventTemplates[idx]
		events = append(events, map[string]any{
			"name":  sprintfIfTemplated(tmpl.name, destination),
			"venue": sprintfIfTemplated(tmpl.venue, destination),
			"date":  time.Now().AddDate(0, 0, 1+s.rng.Intn(14)).Format("2006-01-02"),
		})
	}

	return map[string]any{"destination": destination, "events": events}, nil
}

func sprintfIfTemplated(format, value string) string {
	if strings.Contains(format, "%s") {
		return fmt.Sprintf(format, value)
	}
	return format
}

func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
