package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-guard/pkg/services"
)

// RegisterDMLTools registers insert_record, update_records, delete_records and bulk_insert.
func RegisterDMLTools(s *server.MCPServer, deps *ToolDeps) {
	registerInsertRecordTool(s, deps)
	registerUpdateRecordsTool(s, deps)
	registerDeleteRecordsTool(s, deps)
	registerBulkInsertTool(s, deps)
}

func registerInsertRecordTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"insert_record",
		mcp.WithDescription("Insert one row. Every value is bound as a parameter."),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table", mcp.Required(), mcp.Description("Target table")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Column to value mapping")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "insert_record")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("insert_record", err)
		}
		data, err := getValues(ctx, req, "data")
		if err != nil {
			return deps.fail("insert_record", err)
		}

		result, err := deps.Service.InsertRecord(ctx, &services.InsertRecordRequest{
			Target:    target,
			TableName: trimString(getOptionalString(req, "table")),
			Record:    data,
		})
		if err != nil {
			return deps.fail("insert_record", err)
		}
		return jsonResult(result)
	})
}

func registerUpdateRecordsTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"update_records",
		mcp.WithDescription(`Update rows matching every where condition (column = value, joined by AND).
Rows are counted first inside the same transaction; when more than safety_limit rows
match, nothing is updated.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Target table")),
		mcp.WithObject("set_values", mcp.Required(), mcp.Description("Column to new value mapping")),
		mcp.WithObject("where_conditions", mcp.Required(), mcp.Description("Column to value mapping; required and non-empty")),
		mcp.WithNumber("safety_limit", mcp.Description("Maximum rows to update (default: 1000)")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "update_records")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("update_records", err)
		}
		set, err := getValues(ctx, req, "set_values")
		if err != nil {
			return deps.fail("update_records", err)
		}
		where, err := getValues(ctx, req, "where_conditions")
		if err != nil {
			return deps.fail("update_records", err)
		}

		request := &services.UpdateRecordsRequest{
			Target:    target,
			TableName: trimString(getOptionalString(req, "table_name")),
			Set:       set,
			Where:     where,
		}
		if limit, ok := getOptionalFloat(req, "safety_limit"); ok {
			request.SafetyLimit = int64(limit)
		}

		result, err := deps.Service.UpdateRecords(ctx, request)
		if err != nil {
			return deps.fail("update_records", err)
		}
		return jsonResult(result)
	})
}

func registerDeleteRecordsTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"delete_records",
		mcp.WithDescription(`Delete rows matching every where condition. IRREVERSIBLE.
confirmation must be "DELETE_FROM_<table>_WHERE_" followed by key_value for each where
condition, in the order given, joined by underscores
(e.g. DELETE_FROM_users_WHERE_id_123). Rows are counted first; when more than
safety_limit rows match, nothing is deleted.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Target table")),
		mcp.WithObject("where_conditions", mcp.Required(), mcp.Description("Column to value mapping; required and non-empty")),
		mcp.WithString("confirmation", mcp.Required(), mcp.Description("DELETE_FROM_<table>_WHERE_<key>_<value>[_<key>_<value>...]")),
		mcp.WithNumber("safety_limit", mcp.Description("Maximum rows to delete (default: 100)")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "delete_records")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("delete_records", err)
		}
		where, err := getValues(ctx, req, "where_conditions")
		if err != nil {
			return deps.fail("delete_records", err)
		}

		request := &services.DeleteRecordsRequest{
			Target:       target,
			TableName:    trimString(getOptionalString(req, "table_name")),
			Where:        where,
			Confirmation: getOptionalString(req, "confirmation"),
		}
		if limit, ok := getOptionalFloat(req, "safety_limit"); ok {
			request.SafetyLimit = int64(limit)
		}

		result, err := deps.Service.DeleteRecords(ctx, request)
		if err != nil {
			return deps.fail("delete_records", err)
		}
		return jsonResult(result)
	})
}

func registerBulkInsertTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"bulk_insert",
		mcp.WithDescription(`Insert many rows in batches inside one transaction.
Every record must have the same columns as the first. At most 10000 records per call.`),
		mcp.WithString("db_type", mcp.Required(), mcp.Description("mysql, postgres or mssql")),
		mcp.WithObject("conn_params",
			mcp.Description("server, database, user, password, port. Empty uses the environment defaults")),
		mcp.WithString("table_name", mcp.Required(), mcp.Description("Target table")),
		mcp.WithArray("records", mcp.Required(),
			mcp.Description("Rows to insert"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithNumber("batch_size", mcp.Description("Rows per INSERT statement (default: 100)")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := deps.begin(ctx, "bulk_insert")
		defer cancel()

		target, err := getTarget(req)
		if err != nil {
			return deps.fail("bulk_insert", err)
		}
		records, err := getRecords(ctx, req, "records")
		if err != nil {
			return deps.fail("bulk_insert", err)
		}

		request := &services.BulkInsertRequest{
			Target:    target,
			TableName: trimString(getOptionalString(req, "table_name")),
			Records:   records,
		}
		if size, ok := getOptionalFloat(req, "batch_size"); ok {
			request.BatchSize = int(size)
		}

		result, err := deps.Service.BulkInsert(ctx, request)
		if err != nil {
			return deps.fail("bulk_insert", err)
		}
		return jsonResult(result)
	})
}
