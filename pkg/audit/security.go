// Package audit provides security audit logging for SIEM consumption.
// Every decision the guard makes about a caller request (rejections, tripped limits,
// failed confirmations and executed mutations) is logged as one structured event.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventQueryRejected is logged when the classifier refuses free-form SQL.
	EventQueryRejected SecurityEventType = "query_rejected"
	// EventSQLInjectionAttempt is logged when libinjection flags a value about to be bound.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventConfirmationMismatch is logged when a destructive request carries the wrong token.
	EventConfirmationMismatch SecurityEventType = "confirmation_mismatch"
	// EventSafetyLimitExceeded is logged when the pre-count guard aborts a mutation.
	EventSafetyLimitExceeded SecurityEventType = "safety_limit_exceeded"
	// EventStatementExecuted is logged for every statement the guard lets through.
	EventStatementExecuted SecurityEventType = "statement_executed"
)

// maxAuditValueLength caps caller-supplied text copied into events.
const maxAuditValueLength = 100

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   SecurityEventType `json:"event_type"`
	OperationID uuid.UUID         `json:"operation_id"`
	Tool        string            `json:"tool,omitempty"`
	ClientIP    string            `json:"client_ip,omitempty"`
	Details     any               `json:"details"`
	Severity    string            `json:"severity"` // info, warning, critical
}

// RejectionDetails describes a refused free-form query.
type RejectionDetails struct {
	Code         string   `json:"code"`
	Offending    string   `json:"offending"`
	FirstCommand string   `json:"first_command"`
	Patterns     []string `json:"patterns,omitempty"`
	Query        string   `json:"query"`
}

// SQLInjectionDetails contains specifics of a value libinjection flagged.
type SQLInjectionDetails struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Rejected    bool   `json:"rejected"`
}

// GuardDetails describes a mutation stopped by a confirmation or row-count check.
type GuardDetails struct {
	Operation string `json:"operation"`
	Table     string `json:"table"`
	Count     int64  `json:"count,omitempty"`
	Limit     int64  `json:"limit,omitempty"`
}

// ExecutionDetails describes an executed statement. SQL is the template only; bound
// values are never logged.
type ExecutionDetails struct {
	Operation    string `json:"operation"`
	Table        string `json:"table,omitempty"`
	Dialect      string `json:"dialect"`
	SQL          string `json:"sql"`
	ParamCount   int    `json:"param_count"`
	RowsAffected int64  `json:"rows_affected"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor under the "security_audit" logger name.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogQueryRejected records a classifier rejection at WARN level.
func (a *SecurityAuditor) LogQueryRejected(ctx context.Context, details RejectionDetails) {
	details.Query = logging.SanitizeQuery(details.Query)
	a.emit(ctx, EventQueryRejected, "warning", "Query rejected", details,
		zap.String("code", details.Code),
		zap.String("offending", details.Offending),
	)
}

// LogInjectionAttempt records a flagged value at ERROR level with "critical" severity
// for immediate alerting. The value is truncated before it is logged.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details SQLInjectionDetails) {
	details.Value = logging.TruncateString(details.Value, maxAuditValueLength)
	a.emit(ctx, EventSQLInjectionAttempt, "critical", "SQL injection attempt detected", details,
		zap.String("table", details.Table),
		zap.String("column", details.Column),
		zap.String("fingerprint", details.Fingerprint),
		zap.Bool("rejected", details.Rejected),
	)
}

// LogConfirmationMismatch records a destructive request with a wrong token.
func (a *SecurityAuditor) LogConfirmationMismatch(ctx context.Context, details GuardDetails) {
	a.emit(ctx, EventConfirmationMismatch, "warning", "Confirmation mismatch", details,
		zap.String("operation", details.Operation),
		zap.String("table", details.Table),
	)
}

// LogSafetyLimitExceeded records a mutation aborted by the pre-count guard.
func (a *SecurityAuditor) LogSafetyLimitExceeded(ctx context.Context, details GuardDetails) {
	a.emit(ctx, EventSafetyLimitExceeded, "warning", "Safety limit exceeded", details,
		zap.String("operation", details.Operation),
		zap.String("table", details.Table),
		zap.Int64("count", details.Count),
		zap.Int64("limit", details.Limit),
	)
}

// LogStatementExecuted records an executed statement at INFO level.
func (a *SecurityAuditor) LogStatementExecuted(ctx context.Context, details ExecutionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	a.emit(ctx, EventStatementExecuted, "info", "Statement executed", details,
		zap.String("operation", details.Operation),
		zap.String("table", details.Table),
		zap.Int64("rows_affected", details.RowsAffected),
	)
}

func (a *SecurityAuditor) emit(ctx context.Context, eventType SecurityEventType, severity, msg string, details any, fields ...zap.Field) {
	if a == nil {
		return
	}
	op := OperationFromContext(ctx)

	event := SecurityEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		OperationID: op.ID,
		Tool:        op.Tool,
		ClientIP:    op.ClientIP,
		Details:     details,
		Severity:    severity,
	}

	// Marshaling these known types never fails.
	eventJSON, _ := json.Marshal(event)

	fields = append([]zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(eventType)),
		zap.String("operation_id", op.ID.String()),
		zap.String("tool", op.Tool),
		zap.String("client_ip", op.ClientIP),
		zap.String("severity", severity),
	}, fields...)

	switch severity {
	case "critical":
		a.logger.Error(msg, fields...)
	case "warning":
		a.logger.Warn(msg, fields...)
	default:
		a.logger.Info(msg, fields...)
	}
}
