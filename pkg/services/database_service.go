package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
	"github.com/ekaya-inc/ekaya-guard/pkg/metrics"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// DatabaseService runs guarded operations against a target database. Every method that
// touches a database opens its own connection and closes it before returning.
type DatabaseService interface {
	// Free-form, classifier-gated
	ExecuteQuery(ctx context.Context, req *ExecuteQueryRequest) (*datasource.QueryResult, error)
	SecurityCheck(query string) sqlpkg.SecurityReport
	SecurityConfig() *SecurityConfigResult

	// Schema changes
	CreateTable(ctx context.Context, req *CreateTableRequest) (*DDLResult, error)
	AlterTable(ctx context.Context, req *AlterTableRequest) (*DDLResult, error)
	DropTable(ctx context.Context, req *DropTableRequest) (*DDLResult, error)

	// Data changes
	UpdateRecords(ctx context.Context, req *UpdateRecordsRequest) (*UpdateResult, error)
	DeleteRecords(ctx context.Context, req *DeleteRecordsRequest) (*DeleteResult, error)
	BulkInsert(ctx context.Context, req *BulkInsertRequest) (*BulkInsertResult, error)
	InsertRecord(ctx context.Context, req *InsertRecordRequest) (*InsertResult, error)

	// Introspection
	ListTables(ctx context.Context, target *Target) ([]string, error)
	ExposeSchema(ctx context.Context, target *Target) (*SchemaResult, error)
}

// Target identifies the database an operation runs against. Empty or unusable
// ConnParams fall back to the environment defaults for the dialect.
type Target struct {
	DatabaseType string         `json:"database_type"`
	ConnParams   map[string]any `json:"conn_params,omitempty"`
}

// ExecuteQueryRequest contains free-form SQL to classify and, if accepted, run.
type ExecuteQueryRequest struct {
	Target
	Query string `json:"query"`
}

// CreateTableRequest describes a CREATE TABLE.
type CreateTableRequest struct {
	Target
	Table sqlpkg.TableSpec `json:"table"`
}

// AlterTableRequest describes one ALTER TABLE operation.
type AlterTableRequest struct {
	Target
	TableName string            `json:"table_name"`
	Operation string            `json:"operation"`
	Column    sqlpkg.ColumnSpec `json:"column"`
}

// DropTableRequest requires Confirmation == "DELETE_TABLE_<table>".
type DropTableRequest struct {
	Target
	TableName    string `json:"table_name"`
	Confirmation string `json:"confirmation"`
	IfExists     bool   `json:"if_exists"`
}

// UpdateRecordsRequest describes a guarded UPDATE. SafetyLimit <= 0 uses the default.
type UpdateRecordsRequest struct {
	Target
	TableName   string         `json:"table_name"`
	Set         *sqlpkg.Values `json:"set_values"`
	Where       *sqlpkg.Values `json:"where_conditions"`
	SafetyLimit int64          `json:"safety_limit,omitempty"`
}

// DeleteRecordsRequest describes a guarded DELETE. Confirmation must match the token
// derived from the table and the where mapping.
type DeleteRecordsRequest struct {
	Target
	TableName    string         `json:"table_name"`
	Where        *sqlpkg.Values `json:"where_conditions"`
	Confirmation string         `json:"confirmation"`
	SafetyLimit  int64          `json:"safety_limit,omitempty"`
}

// BulkInsertRequest describes a batched INSERT. BatchSize <= 0 uses the default.
type BulkInsertRequest struct {
	Target
	TableName string           `json:"table_name"`
	Records   []*sqlpkg.Values `json:"records"`
	BatchSize int              `json:"batch_size,omitempty"`
}

// InsertRecordRequest describes a single-row INSERT.
type InsertRecordRequest struct {
	Target
	TableName string         `json:"table"`
	Record    *sqlpkg.Values `json:"data"`
}

// DDLResult is returned by CreateTable, AlterTable and DropTable.
type DDLResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TableName   string `json:"table_name"`
	Operation   string `json:"operation,omitempty"`
	SQLExecuted string `json:"sql_executed"`

	ColumnsCreated int `json:"columns_created,omitempty"`
}

// UpdateResult reports a completed UPDATE.
type UpdateResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	TableName       string `json:"table_name"`
	MatchedRows     int64  `json:"matched_rows"`
	AffectedRows    int64  `json:"affected_rows"`
	SQLTemplate     string `json:"sql_template"`
	ParametersCount int    `json:"parameters_count"`
}

// DeleteResult reports a completed DELETE.
type DeleteResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TableName    string `json:"table_name"`
	MatchedRows  int64  `json:"matched_rows"`
	AffectedRows int64  `json:"affected_rows"`
	SQLTemplate  string `json:"sql_template"`
	Warning      string `json:"warning"`
}

// BulkInsertResult reports a completed batched INSERT.
type BulkInsertResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	TableName        string `json:"table_name"`
	TotalInserted    int    `json:"total_inserted"`
	BatchesProcessed int    `json:"batches_processed"`
}

// InsertResult reports a single-row INSERT.
type InsertResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TableName    string `json:"table_name"`
	AffectedRows int64  `json:"affected_rows"`
	SQLTemplate  string `json:"sql_template"`
}

// SchemaResult lists every column, plus the "table.column (type)" text rendering.
type SchemaResult struct {
	Columns []datasource.ColumnInfo `json:"columns"`
	Text    string                  `json:"text"`
}

// SecurityConfigResult is the classifier policy plus the configured mutation limits.
type SecurityConfigResult struct {
	sqlpkg.SecurityPolicy
	UpdateSafetyLimit      int64 `json:"update_safety_limit"`
	DeleteSafetyLimit      int64 `json:"delete_safety_limit"`
	MaxBulkRecords         int   `json:"max_bulk_records"`
	DefaultBatchSize       int   `json:"default_batch_size"`
	RejectSuspiciousValues bool  `json:"reject_suspicious_values"`
}

// DeleteWarning is attached to every successful DELETE result.
const DeleteWarning = "DELETE EXECUTED - DATA PERMANENTLY REMOVED"

type databaseService struct {
	security   config.SecurityConfig
	defaults   config.DatabasesConfig
	connector  datasource.Connector
	classifier *sqlpkg.Classifier
	guard      *Guard
	auditor    *audit.SecurityAuditor
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewDatabaseService creates a database service with dependencies.
// auditor and m may be nil.
func NewDatabaseService(
	cfg *config.Config,
	connector datasource.Connector,
	classifier *sqlpkg.Classifier,
	auditor *audit.SecurityAuditor,
	m *metrics.Metrics,
	logger *zap.Logger,
) DatabaseService {
	return &databaseService{
		security:   cfg.Security,
		defaults:   cfg.Databases,
		connector:  connector,
		classifier: classifier,
		guard:      NewGuard(cfg.Security),
		auditor:    auditor,
		metrics:    m,
		logger:     logger.Named("database_service"),
	}
}

var _ DatabaseService = (*databaseService)(nil)

// dialectOf parses the target's database type.
func dialectOf(target *Target) (sqlpkg.Dialect, error) {
	if target == nil {
		return "", apperrors.NewSpecValidationError("database_type", "target is required")
	}
	return sqlpkg.ParseDialect(target.DatabaseType)
}

// connect resolves connection params and opens a connection for one operation.
func (s *databaseService) connect(ctx context.Context, dialect sqlpkg.Dialect, target *Target) (datasource.Connection, error) {
	params, err := datasource.ResolveConnParams(target.ConnParams, dialect, s.defaults)
	if err != nil {
		return nil, err
	}
	conn, err := s.connector.Connect(ctx, dialect, params)
	if err != nil {
		s.logger.Error("Failed to connect",
			zap.String("dialect", dialect.String()),
			zap.String("target", params.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}
	return conn, nil
}

// closeConn closes conn and logs, rather than returns, a close failure.
func (s *databaseService) closeConn(conn datasource.Connection) {
	if err := conn.Close(); err != nil {
		s.logger.Warn("Failed to close connection", zap.String("error", logging.SanitizeError(err)))
	}
}

// observe records the operation's outcome and duration. Call it deferred with a
// pointer to the named error result.
func (s *databaseService) observe(operation string, dialect sqlpkg.Dialect, start time.Time, err *error) {
	s.metrics.ObserveOperation(operation, dialect.String(), *err, time.Since(start))
}

func (s *databaseService) auditExecuted(ctx context.Context, operation, table string, stmt sqlpkg.Statement, rows int64) {
	s.auditor.LogStatementExecuted(ctx, audit.ExecutionDetails{
		Operation:    operation,
		Table:        table,
		Dialect:      stmt.Dialect.String(),
		SQL:          stmt.SQL,
		ParamCount:   len(stmt.Params),
		RowsAffected: rows,
	})
}
