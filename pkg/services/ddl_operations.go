package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	"github.com/ekaya-inc/ekaya-guard/pkg/metrics"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// CreateTable validates the whole spec, then runs one CREATE TABLE.
func (s *databaseService) CreateTable(ctx context.Context, req *CreateTableRequest) (*DDLResult, error) {
	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlpkg.BuildCreateTable(req.Table, dialect)
	if err != nil {
		return nil, err
	}

	if err := s.execDDL(ctx, "CREATE_TABLE", req.Table.Name, stmt, &req.Target); err != nil {
		return nil, err
	}

	return &DDLResult{
		Success:     true,
		Message:     fmt.Sprintf("Table '%s' created successfully", req.Table.Name),
		TableName:   req.Table.Name,
		SQLExecuted: stmt.SQL,

		ColumnsCreated: len(req.Table.Columns),
	}, nil
}

// AlterTable runs one ADD/DROP/MODIFY/RENAME COLUMN.
func (s *databaseService) AlterTable(ctx context.Context, req *AlterTableRequest) (*DDLResult, error) {
	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	op, err := sqlpkg.ParseAlterOperation(req.Operation)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlpkg.BuildAlterTable(req.TableName, op, req.Column, dialect)
	if err != nil {
		return nil, err
	}

	if err := s.execDDL(ctx, "ALTER_TABLE", req.TableName, stmt, &req.Target); err != nil {
		return nil, err
	}

	return &DDLResult{
		Success:     true,
		Message:     fmt.Sprintf("Table '%s' altered successfully", req.TableName),
		TableName:   req.TableName,
		Operation:   string(op),
		SQLExecuted: stmt.SQL,
	}, nil
}

// DropTable checks the confirmation token before anything else; a mismatch never
// opens a connection.
func (s *databaseService) DropTable(ctx context.Context, req *DropTableRequest) (*DDLResult, error) {
	if err := sqlpkg.CheckDropTableConfirmation(req.TableName, req.Confirmation); err != nil {
		s.auditor.LogConfirmationMismatch(ctx, audit.GuardDetails{Operation: "DROP_TABLE", Table: req.TableName})
		s.metrics.ObserveGuardTrip("DROP_TABLE", metrics.TripConfirmation)
		return nil, err
	}

	dialect, err := dialectOf(&req.Target)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlpkg.BuildDropTable(req.TableName, req.IfExists, dialect)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Dropping table",
		zap.String("table", req.TableName),
		zap.String("dialect", dialect.String()))

	if err := s.execDDL(ctx, "DROP_TABLE", req.TableName, stmt, &req.Target); err != nil {
		return nil, err
	}

	return &DDLResult{
		Success:     true,
		Message:     fmt.Sprintf("Table '%s' dropped successfully", req.TableName),
		TableName:   req.TableName,
		SQLExecuted: stmt.SQL,
	}, nil
}

// execDDL runs a schema statement on its own connection. DDL is not wrapped in a
// transaction: MySQL and SQL Server commit it implicitly anyway.
func (s *databaseService) execDDL(ctx context.Context, operation, table string, stmt sqlpkg.Statement, target *Target) (err error) {
	defer s.observe(operation, stmt.Dialect, time.Now(), &err)

	conn, err := s.connect(ctx, stmt.Dialect, target)
	if err != nil {
		return err
	}
	defer s.closeConn(conn)

	s.logger.Info("Executing schema change",
		zap.String("operation", operation),
		zap.String("table", table),
		zap.String("sql", stmt.SQL))

	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}

	s.auditExecuted(ctx, operation, table, stmt, 0)
	return nil
}
