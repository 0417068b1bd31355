package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Call event types.
const (
	EventToolCall          = "tool_call"
	EventToolError         = "tool_error"
	EventSecurityRejection = "security_rejection"
	EventGuardTrip         = "guard_trip"
)

// Security levels attached to call events.
const (
	SecurityNormal   = "normal"
	SecurityWarning  = "warning"
	SecurityCritical = "critical"
)

// CallEvent is one logged tool invocation.
type CallEvent struct {
	EventType     string
	ToolName      string
	RequestParams map[string]any
	ResultSummary map[string]any
	ErrorMessage  string
	Duration      time.Duration
	SecurityLevel string
	SecurityFlags []string
}

// CallLogger writes one structured log line per MCP tool call, with arguments sanitized.
type CallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallLogger creates a CallLogger writing to logger.Named("mcp-calls").
func NewCallLogger(logger *zap.Logger) *CallLogger {
	return &CallLogger{logger: logger.Named("mcp-calls")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *CallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *CallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *CallLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	startTime, _ := a.loadAndDeleteStart(id)

	event := a.buildEvent(req)
	event.EventType = EventToolCall
	event.Duration = time.Since(startTime)
	event.ResultSummary = summarizeResult(result)

	classifyToolCallSecurity(event, result)
	a.record(event)
}

func (a *CallLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	startTime, _ := a.loadAndDeleteStart(id)

	event := a.buildEvent(req)
	event.EventType = EventToolError
	event.Duration = time.Since(startTime)
	event.ErrorMessage = err.Error()

	classifyErrorSecurity(event, event.ErrorMessage)
	a.record(event)
}

func (a *CallLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

func (a *CallLogger) buildEvent(req *mcplib.CallToolRequest) *CallEvent {
	return &CallEvent{
		ToolName:      req.Params.Name,
		RequestParams: sanitizeParams(req.Params.Arguments),
		SecurityLevel: SecurityNormal,
	}
}

func (a *CallLogger) record(event *CallEvent) {
	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("tool", event.ToolName),
		zap.Duration("duration", event.Duration),
		zap.String("security_level", event.SecurityLevel),
	}
	if len(event.SecurityFlags) > 0 {
		fields = append(fields, zap.Strings("security_flags", event.SecurityFlags))
	}
	if event.RequestParams != nil {
		fields = append(fields, zap.Any("params", event.RequestParams))
	}
	if event.ResultSummary != nil {
		fields = append(fields, zap.Any("result", event.ResultSummary))
	}
	if event.ErrorMessage != "" {
		fields = append(fields, zap.String("error", event.ErrorMessage))
	}

	level := zapcore.InfoLevel
	switch {
	case event.EventType == EventToolError:
		level = zapcore.ErrorLevel
	case event.SecurityLevel != SecurityNormal:
		level = zapcore.WarnLevel
	}
	a.logger.Log(level, "MCP tool call", fields...)
}

// maxSQLSize is the maximum size of SQL strings kept in call logs.
const maxSQLSize = 10240 // 10KB

// sqlStringLiteralPattern matches SQL string literals: 'value', 'it''s escaped', etc.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

// sensitiveKeyPatterns mark argument keys whose values are hashed instead of logged.
var sensitiveKeyPatterns = []string{"password", "passwd", "pwd", "secret", "token", "api_key", "apikey", "credential"}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// sanitizeParams sanitizes request parameters before logging.
// Applies: SQL truncation, string literal redaction, sensitive value hashing.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

// sanitizeValue applies the appropriate sanitization based on key name and value type.
func sanitizeValue(key string, value any) any {
	if isSensitiveKey(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeNestedParams(val)
	default:
		return value
	}
}

// sanitizeStringParam handles string values: truncates SQL and redacts string literals.
func sanitizeStringParam(key string, val string) string {
	if len(val) > maxSQLSize {
		val = val[:maxSQLSize] + "...[truncated]"
	}

	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}

	return val
}

// sanitizeNestedParams recursively sanitizes nested maps such as conn_params,
// preserving structure but hiding sensitive values.
func sanitizeNestedParams(params map[string]any) map[string]any {
	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// redactSQLStringLiterals replaces string literal values in SQL with '***',
// preserving the query structure for debugging while hiding user-provided values.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// hashSensitiveValue returns a SHA-256 hash prefix for sensitive values,
// allowing correlation across log entries without storing the actual value.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8]) // First 8 bytes = 16 hex chars
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	if len(result.Content) > 0 {
		summary["content_count"] = len(result.Content)
		for _, c := range result.Content {
			if tc, ok := c.(mcplib.TextContent); ok {
				text := tc.Text

				extractCounts(text, summary)

				if len(text) > 200 {
					text = text[:200] + "...[truncated]"
				}
				summary["preview"] = text
				break
			}
		}
	}

	return summary
}

// extractCounts copies row_count and affected_rows from a JSON text response into summary.
func extractCounts(text string, summary map[string]any) {
	var partial struct {
		RowCount     *int   `json:"row_count"`
		AffectedRows *int64 `json:"affected_rows"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil {
		return
	}
	if partial.RowCount != nil {
		summary["row_count"] = *partial.RowCount
	}
	if partial.AffectedRows != nil {
		summary["affected_rows"] = *partial.AffectedRows
	}
}

// classifyToolCallSecurity inspects an error result for the structured error codes the
// tools return when the security layer blocks a call.
func classifyToolCallSecurity(event *CallEvent, result *mcplib.CallToolResult) {
	if result == nil || !result.IsError {
		return
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		var resp struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(tc.Text), &resp); err != nil {
			continue
		}

		switch resp.Code {
		case "security_rejection":
			event.EventType = EventSecurityRejection
			event.SecurityLevel = SecurityCritical
			event.SecurityFlags = append(event.SecurityFlags, "blocked_statement")
			return
		case "confirmation_mismatch":
			event.EventType = EventGuardTrip
			event.SecurityLevel = SecurityWarning
			event.SecurityFlags = append(event.SecurityFlags, "confirmation_mismatch")
			return
		case "safety_limit_exceeded":
			event.EventType = EventGuardTrip
			event.SecurityLevel = SecurityWarning
			event.SecurityFlags = append(event.SecurityFlags, "safety_limit_exceeded")
			return
		}
	}
}

// classifyErrorSecurity inspects an error message to detect security-relevant patterns
// and upgrades the event's security classification accordingly.
func classifyErrorSecurity(event *CallEvent, errMsg string) {
	lower := strings.ToLower(errMsg)

	if strings.Contains(lower, "injection") || strings.Contains(lower, "suspicious") {
		event.SecurityLevel = SecurityCritical
		event.SecurityFlags = append(event.SecurityFlags, "sql_injection_attempt")
	} else if strings.Contains(lower, "authentication") || strings.Contains(lower, "login failed") {
		event.SecurityLevel = SecurityWarning
		event.SecurityFlags = append(event.SecurityFlags, "auth_failure")
	}
}
