package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
)

type healthResult struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Databases []string `json:"databases"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and the database types it can reach.
func RegisterHealthTool(s *server.MCPServer, version string) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		adapters := datasource.RegisteredAdapters()
		databases := make([]string, 0, len(adapters))
		for _, a := range adapters {
			databases = append(databases, a.Type)
		}

		result, err := json.Marshal(healthResult{Status: "ok", Version: version, Databases: databases})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
