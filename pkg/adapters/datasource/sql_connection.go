package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlConnection is the one Connection implementation shared by every dialect. The
// registration supplies everything dialect-specific.
type sqlConnection struct {
	db     *sql.DB
	tx     *sql.Tx
	reg    DatasourceAdapterRegistration
	logger *zap.Logger
}

func (c *sqlConnection) q() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

func (c *sqlConnection) Dialect() sqlpkg.Dialect { return c.reg.Dialect }

// prepare rebinds placeholders to the driver syntax. The statement is not modified.
func (c *sqlConnection) prepare(stmt sqlpkg.Statement) (string, []any, error) {
	text, err := stmt.Rebind(c.reg.Placeholder)
	if err != nil {
		return "", nil, err
	}
	args := stmt.Params
	if c.reg.BindArgs != nil {
		args = c.reg.BindArgs(args)
	}
	return text, args, nil
}

func (c *sqlConnection) Query(ctx context.Context, stmt sqlpkg.Statement) (*QueryResult, error) {
	text, args, err := c.prepare(stmt)
	if err != nil {
		return nil, err
	}
	return c.query(ctx, text, args...)
}

func (c *sqlConnection) QueryRaw(ctx context.Context, text string) (*QueryResult, error) {
	return c.query(ctx, text)
}

func (c *sqlConnection) query(ctx context.Context, text string, args ...any) (*QueryResult, error) {
	rows, err := c.q().QueryContext(ctx, text, args...)
	if err != nil {
		return nil, wrapError(c.reg, "query", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, wrapError(c.reg, "query", err)
	}
	return result, nil
}

func (c *sqlConnection) Exec(ctx context.Context, stmt sqlpkg.Statement) (int64, error) {
	text, args, err := c.prepare(stmt)
	if err != nil {
		return 0, err
	}
	res, err := c.q().ExecContext(ctx, text, args...)
	if err != nil {
		return 0, wrapError(c.reg, "exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// DDL on some drivers reports no count.
		return 0, nil
	}
	return n, nil
}

func (c *sqlConnection) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("transaction already open")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError(c.reg, "begin", err)
	}
	c.tx = tx
	return nil
}

func (c *sqlConnection) Commit() error {
	if c.tx == nil {
		return errors.New("no open transaction")
	}
	err := c.tx.Commit()
	c.tx = nil
	return wrapError(c.reg, "commit", err)
}

func (c *sqlConnection) Rollback() error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback()
	c.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return wrapError(c.reg, "rollback", err)
}

func (c *sqlConnection) ListTables(ctx context.Context) ([]string, error) {
	result, err := c.QueryRaw(ctx, c.reg.ListTablesQuery)
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, result.RowCount)
	for _, row := range result.Rows {
		tables = append(tables, fmt.Sprint(row[result.Columns[0]]))
	}
	return tables, nil
}

func (c *sqlConnection) DescribeColumns(ctx context.Context) ([]ColumnInfo, error) {
	rows, err := c.q().QueryContext(ctx, c.reg.ColumnsQuery)
	if err != nil {
		return nil, wrapError(c.reg, "describe columns", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Table, &col.Column, &col.DataType); err != nil {
			return nil, wrapError(c.reg, "describe columns", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(c.reg, "describe columns", err)
	}
	return columns, nil
}

func (c *sqlConnection) Close() error {
	if c.tx != nil {
		if err := c.Rollback(); err != nil {
			c.logger.Warn("Rollback on close failed", zap.Error(err))
		}
	}
	return c.db.Close()
}

// scanRows collects every row as a column → value map. Text columns arrive as []byte
// from most drivers and are converted to string.
func scanRows(rows *sql.Rows) (*QueryResult, error) {
	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			rowMap[col] = val
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{
		Columns:  columnNames,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

var _ Connection = (*sqlConnection)(nil)
