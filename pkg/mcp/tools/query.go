package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
	"github.com/ekaya-inc/ekaya-guard/pkg/services"
)

// RegisterQueryTools registers execute_query, security_check and get_security_config.
func RegisterQueryTools(s *server.MCPServer, deps *ToolDeps) {
	registerExecuteQueryTool(s, deps)
	registerSecurityCheckTool(s, deps)
	registerGetSecurityConfigTool(s, deps)
}

func registerExecuteQueryTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"execute_query",
		mcp.WithDescription(`Execute a read-only SQL query on the given database.
Only SELECT and WITH statements are accepted. DELETE, DROP, EXEC, set operations,
stacked statements and commented-out commands are blocked before any connection is made.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithString("query", mcp.Required(), mcp.Description("SQL SELECT statement")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "execute_query")
		defer cancel()

		query, err := req.RequireString("query")
		if err != nil {
			return NewErrorResult(CodeInvalidRequest, "query is required"), nil
		}
		target, err := getTarget(req)
		if err != nil {
			return deps.fail("execute_query", err)
		}

		result, err := deps.Service.ExecuteQuery(ctx, &services.ExecuteQueryRequest{Target: target, Query: query})
		if err != nil {
			var rejection *apperrors.SecurityRejection
			if errors.As(err, &rejection) {
				deps.Logger.Warn("Query blocked",
					zap.String("code", rejection.Code),
					zap.String("query", logging.SanitizeQuery(query)))
				return NewErrorResultWithDetails(CodeSecurityRejection,
					"execution blocked by security policy: "+rejection.Reason,
					map[string]any{
						"rejection_code":  rejection.Code,
						"offending":       rejection.Offending,
						"rejected_query":  logging.TruncateString(query, logging.MaxQueryLogLength),
						"command_blocked": true,
					}), nil
			}
			return deps.fail("execute_query", err)
		}

		return jsonResult(struct {
			Columns  []string         `json:"columns"`
			Rows     []map[string]any `json:"rows"`
			RowCount int              `json:"row_count"`
		}{
			Columns:  result.Columns,
			Rows:     result.Rows,
			RowCount: result.RowCount,
		})
	})
}

func registerSecurityCheckTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"security_check",
		mcp.WithDescription("Analyse a SQL query against the security policy without executing it. Returns the full security report."),
		mcp.WithString("query", mcp.Required(), mcp.Description("SQL text to analyse")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return NewErrorResult(CodeInvalidRequest, "query is required"), nil
		}
		return jsonResult(deps.Service.SecurityCheck(query))
	})
}

func registerGetSecurityConfigTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_security_config",
		mcp.WithDescription("Return the active security policy and mutation limits."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(deps.Service.SecurityConfig())
	})
}
