package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	"github.com/ekaya-inc/ekaya-guard/pkg/metrics"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// UpdateRecords builds the UPDATE and its COUNT, then runs both in one transaction.
// The UPDATE is only sent when the count is within the safety limit.
func (s *databaseService) UpdateRecords(ctx context.Context, req *UpdateRecordsRequest) (_ *UpdateResult, err error) {
	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlpkg.BuildUpdate(sqlpkg.UpdateSpec{Table: req.TableName, Set: req.Set, Where: req.Where}, dialect)
	if err != nil {
		return nil, err
	}
	countStmt, err := sqlpkg.BuildCount(req.TableName, req.Where, dialect)
	if err != nil {
		return nil, err
	}

	if err := s.screenValues(ctx, req.TableName, req.Set, req.Where); err != nil {
		return nil, err
	}

	limit := s.guard.Limit(OperationUpdate, req.SafetyLimit)
	matched, affected, err := s.guardedExec(ctx, OperationUpdate, req.TableName, &req.Target, countStmt, stmt, limit)
	if err != nil {
		return nil, err
	}

	return &UpdateResult{
		Success:         true,
		Message:         fmt.Sprintf("%d record(s) updated successfully", affected),
		TableName:       req.TableName,
		MatchedRows:     matched,
		AffectedRows:    affected,
		SQLTemplate:     stmt.SQL,
		ParametersCount: len(stmt.Params),
	}, nil
}

// DeleteRecords checks the confirmation token first; a mismatch never opens a
// connection. The DELETE then runs behind the same COUNT guard as UPDATE.
func (s *databaseService) DeleteRecords(ctx context.Context, req *DeleteRecordsRequest) (*DeleteResult, error) {
	if err := sqlpkg.CheckDeleteConfirmation(req.TableName, req.Where, req.Confirmation); err != nil {
		s.auditor.LogConfirmationMismatch(ctx, audit.GuardDetails{Operation: OperationDelete, Table: req.TableName})
		s.metrics.ObserveGuardTrip(OperationDelete, metrics.TripConfirmation)
		return nil, err
	}

	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlpkg.BuildDelete(sqlpkg.DeleteSpec{Table: req.TableName, Where: req.Where}, dialect)
	if err != nil {
		return nil, err
	}
	countStmt, err := sqlpkg.BuildCount(req.TableName, req.Where, dialect)
	if err != nil {
		return nil, err
	}

	if err := s.screenValues(ctx, req.TableName, req.Where); err != nil {
		return nil, err
	}

	limit := s.guard.Limit(OperationDelete, req.SafetyLimit)
	matched, affected, err := s.guardedExec(ctx, OperationDelete, req.TableName, &req.Target, countStmt, stmt, limit)
	if err != nil {
		return nil, err
	}

	return &DeleteResult{
		Success:      true,
		Message:      fmt.Sprintf("%d record(s) deleted successfully", affected),
		TableName:    req.TableName,
		MatchedRows:  matched,
		AffectedRows: affected,
		SQLTemplate:  stmt.SQL,
		Warning:      DeleteWarning,
	}, nil
}

// guardedExec opens a connection, counts inside a transaction, and only then runs the
// mutation. Any failure leaves the transaction rolled back by Close.
func (s *databaseService) guardedExec(
	ctx context.Context,
	operation, table string,
	target *Target,
	countStmt, stmt sqlpkg.Statement,
	limit int64,
) (matched, affected int64, err error) {
	defer s.observe(operation, stmt.Dialect, time.Now(), &err)

	conn, err := s.connect(ctx, stmt.Dialect, target)
	if err != nil {
		return 0, 0, err
	}
	defer s.closeConn(conn)

	if err := conn.Begin(ctx); err != nil {
		return 0, 0, err
	}

	matched, err = s.guard.Check(ctx, conn, countStmt, operation, limit)
	if err != nil {
		var limitErr *apperrors.SafetyLimitExceeded
		if errors.As(err, &limitErr) {
			s.auditor.LogSafetyLimitExceeded(ctx, audit.GuardDetails{
				Operation: operation,
				Table:     table,
				Count:     limitErr.Count,
				Limit:     limitErr.Limit,
			})
			s.metrics.ObserveGuardTrip(operation, metrics.TripSafetyLimit)
			s.logger.Warn("Safety limit exceeded",
				zap.String("operation", operation),
				zap.String("table", table),
				zap.Int64("count", limitErr.Count),
				zap.Int64("limit", limitErr.Limit))
		}
		return 0, 0, err
	}

	s.logger.Info("Executing guarded statement",
		zap.String("operation", operation),
		zap.String("table", table),
		zap.String("sql", stmt.SQL),
		zap.Int("param_count", len(stmt.Params)),
		zap.Int64("matched_rows", matched))

	affected, err = conn.Exec(ctx, stmt)
	if err != nil {
		return 0, 0, err
	}
	if err = conn.Commit(); err != nil {
		return 0, 0, err
	}

	s.auditExecuted(ctx, operation, table, stmt, affected)
	return matched, affected, nil
}

// BulkInsert validates every record, then sends one INSERT per batch inside a single
// transaction.
func (s *databaseService) BulkInsert(ctx context.Context, req *BulkInsertRequest) (_ *BulkInsertResult, err error) {
	if len(req.Records) > s.security.MaxBulkRecords {
		return nil, apperrors.NewSpecValidationError("records",
			"too many records for bulk insert: %d (maximum: %d)", len(req.Records), s.security.MaxBulkRecords)
	}

	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.security.DefaultBatchSize
	}

	stmts, err := sqlpkg.BuildBulkInsert(sqlpkg.InsertSpec{Table: req.TableName, Records: req.Records}, batchSize, dialect)
	if err != nil {
		return nil, err
	}

	if err := s.screenValues(ctx, req.TableName, req.Records...); err != nil {
		return nil, err
	}

	defer s.observe("BULK_INSERT", dialect, time.Now(), &err)

	conn, err := s.connect(ctx, dialect, &req.Target)
	if err != nil {
		return nil, err
	}
	defer s.closeConn(conn)

	if err := conn.Begin(ctx); err != nil {
		return nil, err
	}

	inserted := 0
	for i, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("batch %d of %d failed: %w", i+1, len(stmts), err)
		}
		batchRows := min(batchSize, len(req.Records)-inserted)
		inserted += batchRows
		s.logger.Debug("Batch inserted",
			zap.String("table", req.TableName),
			zap.Int("batch", i+1),
			zap.Int("records", batchRows))
	}

	if err := conn.Commit(); err != nil {
		return nil, err
	}

	s.auditExecuted(ctx, "BULK_INSERT", req.TableName, stmts[0], int64(inserted))
	s.logger.Info("Bulk insert completed",
		zap.String("table", req.TableName),
		zap.Int("total_inserted", inserted),
		zap.Int("batches", len(stmts)))

	return &BulkInsertResult{
		Success:          true,
		Message:          fmt.Sprintf("%d record(s) inserted successfully", inserted),
		TableName:        req.TableName,
		TotalInserted:    inserted,
		BatchesProcessed: len(stmts),
	}, nil
}

// InsertRecord inserts a single row.
func (s *databaseService) InsertRecord(ctx context.Context, req *InsertRecordRequest) (_ *InsertResult, err error) {
	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlpkg.BuildInsert(req.TableName, req.Record, dialect)
	if err != nil {
		return nil, err
	}

	if err := s.screenValues(ctx, req.TableName, req.Record); err != nil {
		return nil, err
	}

	defer s.observe("INSERT", dialect, time.Now(), &err)

	conn, err := s.connect(ctx, dialect, &req.Target)
	if err != nil {
		return nil, err
	}
	defer s.closeConn(conn)

	affected, err := conn.Exec(ctx, stmt)
	if err != nil {
		return nil, err
	}

	s.auditExecuted(ctx, "INSERT", req.TableName, stmt, affected)
	return &InsertResult{
		Success:      true,
		Message:      fmt.Sprintf("Record inserted into '%s'", req.TableName),
		TableName:    req.TableName,
		AffectedRows: affected,
		SQLTemplate:  stmt.SQL,
	}, nil
}

