// Package mcp exposes navigation tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"tagnav/internal/logging"
)

// ToolHandler handles one tool call. args holds the raw JSON arguments; the
// returned value is sent back as JSON text.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool describes a tool and its input properties.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]*jsonschema.Schema
	Required    []string
}

// Server handles MCP communication
type Server struct {
	server *sdk.Server
	tools  []string
	logger *slog.Logger
}

// NewServer creates a new MCP server
func NewServer(name, version string, logger *slog.Logger) *Server {
	return &Server{
		server: sdk.NewServer(&sdk.Implementation{Name: name, Version: version}, nil),
		logger: logging.OrNop(logger),
	}
}

// RegisterTool adds a tool to the server
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	props := tool.Properties
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	s.server.AddTool(&sdk.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: props,
			Required:   tool.Required,
		},
	}, s.wrap(tool.Name, handler))
	s.tools = append(s.tools, tool.Name)
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

func (s *Server) wrap(name string, handler ToolHandler) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		s.logger.Debug("tool call", "tool", name)

		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		result, err := handler(ctx, args)
		if err != nil {
			s.logger.Warn("tool call failed", "tool", name, "error", err)
			return errorResult(err), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return errorResult(fmt.Errorf("encoding result: %w", err)), nil
		}
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: string(data)}},
		}, nil
	}
}

func errorResult(err error) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "tools", len(s.tools))
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves a single session over transport and returns immediately.
func (s *Server) Connect(ctx context.Context, transport sdk.Transport) (*sdk.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
