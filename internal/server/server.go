// Package server exposes the registered tools over the Model Context
// Protocol, on stdio or SSE.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/FallSoftCo/axiom-mcp-server/internal/dispatch"
	"github.com/FallSoftCo/axiom-mcp-server/internal/registry"
)

// Server bridges MCP tool calls to the dispatcher. One MCP tool is
// registered per descriptor, raw schema and all, so clients see the same
// parameter contracts the dispatcher validates against.
type Server struct {
	mcp    *mcpserver.MCPServer
	sse    *mcpserver.SSEServer
	logger *zap.Logger
}

func New(reg *registry.Registry, d *dispatch.Dispatcher, version string, logger *zap.Logger) *Server {
	s := mcpserver.NewMCPServer("axiom-mcp-server", version,
		mcpserver.WithToolCapabilities(false))

	for _, desc := range reg.Descriptors() {
		tool := mcp.NewToolWithRawSchema(desc.ToolID, desc.Description, desc.Schema)
		s.AddTool(tool, toolHandler(d, desc.ToolID))
	}

	return &Server{mcp: s, logger: logger}
}

// toolHandler adapts one tool's MCP calls to Dispatcher.Invoke. Dispatch
// failures come back as structured JSON in an error result, never as a
// transport-level error.
func toolHandler(d *dispatch.Dispatcher, toolID string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := d.Invoke(ctx, toolID, req.GetArguments())

		payload, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(`{"error":{"kind":"shaping","message":"result serialization failed"}}`), nil
		}
		if resp.Err != nil {
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// ServeStdio blocks serving MCP over stdin/stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio")
	return mcpserver.ServeStdio(s.mcp)
}

// ServeSSE blocks serving MCP over HTTP server-sent events on addr.
// baseURL is the public URL clients are told to post messages to; behind a
// proxy it differs from addr.
func (s *Server) ServeSSE(addr, baseURL string) error {
	s.sse = newSSEServer(s.mcp, baseURL)
	s.logger.Info("serving MCP over SSE",
		zap.String("addr", addr),
		zap.String("base_url", baseURL))
	if err := s.sse.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newSSEServer(m *mcpserver.MCPServer, baseURL string) *mcpserver.SSEServer {
	var opts []mcpserver.SSEOption
	if baseURL != "" {
		opts = append(opts, mcpserver.WithBaseURL(baseURL))
	}
	return mcpserver.NewSSEServer(m, opts...)
}

// Shutdown stops the SSE listener if it is running. Stdio sessions end
// when the client closes the pipe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sse == nil {
		return nil
	}
	return s.sse.Shutdown(ctx)
}
