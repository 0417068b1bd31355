package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/mcp/tools"
)

// maxStdioMessageSize bounds a single JSON-RPC line on stdio. Bulk inserts can be large.
const maxStdioMessageSize = 32 * 1024 * 1024

// Server wraps the mcp-go MCPServer with ekaya-guard patterns.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. Every tool call is logged through a
// CallLogger attached as mcp-go hooks.
func NewServer(name, version string, logger *zap.Logger) *Server {
	calls := NewCallLogger(logger)
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithHooks(calls.Hooks()),
		server.WithRecovery(),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes responses to
// out until in is exhausted or ctx is cancelled. Each message is attached to its
// context with tools.WithRawRequest before dispatch.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioMessageSize)

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			msg := make([]byte, len(line))
			copy(msg, line)
			select {
			case lines <- msg:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.logger.Info("MCP stdio transport started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil && !errors.Is(err, io.EOF) {
						return fmt.Errorf("failed to read stdin: %w", err)
					}
				default:
				}
				s.logger.Info("MCP stdio transport closed")
				return nil
			}

			response := s.mcp.HandleMessage(tools.WithRawRequest(ctx, msg), msg)
			if response == nil {
				// Notifications have no response.
				continue
			}
			if err := encoder.Encode(response); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
			if err := writer.Flush(); err != nil {
				return fmt.Errorf("failed to flush response: %w", err)
			}
		}
	}
}
