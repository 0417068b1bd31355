package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// ExecuteQuery classifies the query in read-only mode. Rejected text never reaches a
// connection; accepted text is sent to the database unchanged.
func (s *databaseService) ExecuteQuery(ctx context.Context, req *ExecuteQueryRequest) (_ *datasource.QueryResult, err error) {
	verdict := s.classifier.Classify(req.Query, false)
	s.metrics.ObserveVerdict(string(verdict.Code))

	if !verdict.IsSafe {
		report := sqlpkg.GetSecurityReport(req.Query)
		s.auditor.LogQueryRejected(ctx, audit.RejectionDetails{
			Code:         string(verdict.Code),
			Offending:    verdict.Offending,
			FirstCommand: verdict.FirstCommand,
			Patterns:     verdict.DangerousPatterns,
			Query:        req.Query,
		})
		return nil, &apperrors.SecurityRejection{
			Code:      string(verdict.Code),
			Reason:    verdict.Reason,
			Offending: verdict.Offending,
			Report:    report,
		}
	}

	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}
	defer s.observe("QUERY", dialect, time.Now(), &err)

	conn, err := s.connect(ctx, dialect, &req.Target)
	if err != nil {
		return nil, err
	}
	defer s.closeConn(conn)

	s.logger.Info("Executing query",
		zap.String("dialect", dialect.String()),
		zap.String("query", logging.SanitizeQuery(req.Query)))

	result, err := conn.QueryRaw(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Query executed", zap.Int("row_count", result.RowCount))
	return result, nil
}

// SecurityCheck reports on query without executing anything.
func (s *databaseService) SecurityCheck(query string) sqlpkg.SecurityReport {
	report := sqlpkg.GetSecurityReport(query)
	s.metrics.ObserveVerdict(string(report.Code))
	return report
}

// SecurityConfig returns the active policy and limits.
func (s *databaseService) SecurityConfig() *SecurityConfigResult {
	return &SecurityConfigResult{
		SecurityPolicy:         sqlpkg.GetSecurityPolicy(),
		UpdateSafetyLimit:      s.security.UpdateSafetyLimit,
		DeleteSafetyLimit:      s.security.DeleteSafetyLimit,
		MaxBulkRecords:         s.security.MaxBulkRecords,
		DefaultBatchSize:       s.security.DefaultBatchSize,
		RejectSuspiciousValues: s.security.RejectSuspiciousValues,
	}
}

// ListTables returns the user tables of the target database.
func (s *databaseService) ListTables(ctx context.Context, target *Target) (_ []string, err error) {
	dialect, err := dialectOf(target)
	if err != nil {
		return nil, err
	}
	defer s.observe("LIST_TABLES", dialect, time.Now(), &err)

	conn, err := s.connect(ctx, dialect, target)
	if err != nil {
		return nil, err
	}
	defer s.closeConn(conn)

	return conn.ListTables(ctx)
}

// ExposeSchema returns every column of every user table.
func (s *databaseService) ExposeSchema(ctx context.Context, target *Target) (_ *SchemaResult, err error) {
	dialect, err := dialectOf(target)
	if err != nil {
		return nil, err
	}
	defer s.observe("EXPOSE_SCHEMA", dialect, time.Now(), &err)

	conn, err := s.connect(ctx, dialect, target)
	if err != nil {
		return nil, err
	}
	defer s.closeConn(conn)

	columns, err := conn.DescribeColumns(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(columns))
	for i, col := range columns {
		lines[i] = col.Table + "." + col.Column + " (" + col.DataType + ")"
	}
	return &SchemaResult{Columns: columns, Text: strings.Join(lines, "\n")}, nil
}
