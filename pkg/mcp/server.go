package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the mcp-go server with the registration surface the ATLAS
// tool server uses.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
}

// ToolOption mirrors mcp-go tool schema options for registration.
type ToolOption = mcp.ToolOption

// RegisterTool registers a tool with the server. Schema options describe the
// tool's input parameters.
func (s *Server) RegisterTool(name, description string, handler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error), schemaOpts ...ToolOption) {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, schemaOpts...)
	tool := mcp.NewTool(name, opts...)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		return handler(ctx, args)
	})
}

// Underlying exposes the wrapped mcp-go server for transports and tests.
func (s *Server) Underlying() *server.MCPServer {
	return s.mcpServer
}

// ServeStreamableHTTP starts the server on the streamable HTTP transport.
// The MCP endpoint is mounted at /mcp.
func (s *Server) ServeStreamableHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(addr)
}

// StreamableHTTPServer returns the HTTP transport without starting it, so
// callers can mount it alongside other routes.
func (s *Server) StreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcpServer)
}
