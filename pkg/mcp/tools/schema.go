package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterSchemaTools registers list_tables and expose_schema.
func RegisterSchemaTools(s *server.MCPServer, deps *ToolDeps) {
	registerListTablesTool(s, deps)
	registerExposeSchemaTool(s, deps)
}

func registerListTablesTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"list_tables",
		mcp.WithDescription("List the user tables of the given database."),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "list_tables")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("list_tables", err)
		}

		tables, err := deps.Service.ListTables(ctx, &target)
		if err != nil {
			return deps.fail("list_tables", err)
		}
		return jsonResult(struct {
			Tables []string `json:"tables"`
			Count  int      `json:"count"`
		}{Tables: tables, Count: len(tables)})
	})
}

func registerExposeSchemaTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"expose_schema",
		mcp.WithDescription(`Describe every column of every user table.
Returns one "table.column (type)" line per column.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "expose_schema")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("expose_schema", err)
		}

		schema, err := deps.Service.ExposeSchema(ctx, &target)
		if err != nil {
			return deps.fail("expose_schema", err)
		}
		return mcp.NewToolResultText(schema.Text), nil
	})
}
