package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterSafeQueryPrompt registers the safe_query prompt. It runs the classifier over
// the supplied query and tells the model whether execute_query will accept it.
func RegisterSafeQueryPrompt(s *server.MCPServer, deps *ToolDeps) {
	prompt := mcp.NewPrompt(
		"safe_query",
		mcp.WithPromptDescription("Check a SQL query against the security policy before running it"),
		mcp.WithArgument("query",
			mcp.ArgumentDescription("SQL query to check"),
			mcp.RequiredArgument(),
		),
	)

	s.AddPrompt(prompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		query := trimString(req.Params.Arguments["query"])
		if query == "" {
			return nil, errors.New("query argument is required")
		}

		report := deps.Service.SecurityCheck(query)

		var b strings.Builder
		if report.IsSafe {
			b.WriteString("The following query passed the security check and can be run with execute_query:\n\n")
			b.WriteString(query)
			b.WriteString("\n\nChoose the db_type and conn_params for the target database before executing it.")
		} else {
			fmt.Fprintf(&b, "The following query was REJECTED by the security policy (%s): %s\n\n", report.Code, report.Reason)
			b.WriteString(query)
			b.WriteString("\n\nDo not try to execute it. ")
			if len(report.DangerousCommands) > 0 {
				fmt.Fprintf(&b, "Blocked commands: %s. ", strings.Join(report.DangerousCommands, ", "))
			}
			if len(report.DangerousPatterns) > 0 {
				fmt.Fprintf(&b, "Blocked patterns: %s. ", strings.Join(report.DangerousPatterns, ", "))
			}
			b.WriteString("Rewrite it as a single SELECT or WITH statement, or use the dedicated tool " +
				"(create_table, alter_table, drop_table, insert_record, update_records, delete_records, bulk_insert) " +
				"for the change you need.")
		}

		return mcp.NewGetPromptResult(
			"Security check for a SQL query",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(b.String())),
			},
		), nil
	})
}
