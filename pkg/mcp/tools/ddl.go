package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-guard/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// RegisterDDLTools registers create_table, alter_table and drop_table.
func RegisterDDLTools(s *server.MCPServer, deps *ToolDeps) {
	registerCreateTableTool(s, deps)
	registerAlterTableTool(s, deps)
	registerDropTableTool(s, deps)
}

var columnSpecSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":        map[string]any{"type": "string"},
		"type":        map[string]any{"type": "string", "description": "INT, VARCHAR(255), DECIMAL(10,2), TEXT, DATE, BOOLEAN, ..."},
		"constraints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"position":    map[string]any{"type": "string", "description": "MySQL ADD only: FIRST or AFTER <column>"},
		"new_name":    map[string]any{"type": "string", "description": "RENAME only"},
	},
	"required": []string{"name"},
}

func registerCreateTableTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"create_table",
		mcp.WithDescription(`Create a table from a validated column list.
Names must be plain identifiers, types come from a fixed allowlist and constraints from a
fixed prefix list. Any invalid column aborts the whole statement.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Name of the new table")),
		mcp.WithArray("columns", mcp.Required(),
			mcp.Description("Column definitions in order"),
			mcp.Items(columnSpecSchema)),
		mcp.WithObject("options",
			mcp.Description("if_not_exists (bool); MySQL only: engine, charset")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "create_table")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("create_table", err)
		}
		spec := sqlpkg.TableSpec{Name: trimString(getOptionalString(req, "table_name"))}
		if err := decodeArg(req, "columns", &spec.Columns); err != nil {
			return deps.fail("create_table", err)
		}
		if err := decodeArg(req, "options", &spec.Options); err != nil {
			return deps.fail("create_table", err)
		}

		result, err := deps.Service.CreateTable(ctx, &services.CreateTableRequest{Target: target, Table: spec})
		if err != nil {
			return deps.fail("create_table", err)
		}
		return jsonResult(result)
	})
}

func registerAlterTableTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"alter_table",
		mcp.WithDescription("Add, drop, modify or rename one column of an existing table."),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Table to alter")),
		mcp.WithString("operation", mcp.Required(),
			mcp.Description("ADD_COLUMN, DROP_COLUMN, MODIFY_COLUMN or RENAME_COLUMN"),
			mcp.Enum("ADD_COLUMN", "DROP_COLUMN", "MODIFY_COLUMN", "RENAME_COLUMN")),
		mcp.WithObject("column_spec", mcp.Required(),
			mcp.Description("name, type, constraints, position (MySQL ADD), new_name (RENAME)")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "alter_table")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("alter_table", err)
		}
		var column sqlpkg.ColumnSpec
		if err := decodeArg(req, "column_spec", &column); err != nil {
			return deps.fail("alter_table", err)
		}

		result, err := deps.Service.AlterTable(ctx, &services.AlterTableRequest{
			Target:    target,
			TableName: trimString(getOptionalString(req, "table_name")),
			Operation: getOptionalString(req, "operation"),
			Column:    column,
		})
		if err != nil {
			return deps.fail("alter_table", err)
		}
		return jsonResult(result)
	})
}

func registerDropTableTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"drop_table",
		mcp.WithDescription(`Drop a table. IRREVERSIBLE.
confirmation must be exactly "DELETE_TABLE_<table_name>"; anything else is refused before
a connection is opened.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Table to drop")),
		mcp.WithString("confirmation", mcp.Required(), mcp.Description("DELETE_TABLE_<table_name>")),
		mcp.WithBoolean("if_exists", mcp.Description("Emit DROP TABLE IF EXISTS (default: false)")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "drop_table")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("drop_table", err)
		}

		result, err := deps.Service.DropTable(ctx, &services.DropTableRequest{
			Target:       target,
			TableName:    getOptionalString(req, "table_name"),
			Confirmation: getOptionalString(req, "confirmation"),
			IfExists:     getOptionalBool(req, "if_exists"),
		})
		if err != nil {
			return deps.fail("drop_table", err)
		}
		return jsonResult(result)
	})
}
