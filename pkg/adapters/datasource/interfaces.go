package datasource

import (
	"context"

	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// Connector opens one connection for one operation. Implementations never pool or
// reuse connections across calls.
type Connector interface {
	Connect(ctx context.Context, dialect sqlpkg.Dialect, params ConnParams) (Connection, error)
}

// Connection is a single database session. It is not safe for concurrent use and must
// be closed when the operation is done.
type Connection interface {
	// Query runs a built statement that returns rows.
	Query(ctx context.Context, stmt sqlpkg.Statement) (*QueryResult, error)

	// QueryRaw runs caller text without parameters. Only text the classifier accepted
	// may reach this method.
	QueryRaw(ctx context.Context, text string) (*QueryResult, error)

	// Exec runs a built statement and returns the affected row count.
	Exec(ctx context.Context, stmt sqlpkg.Statement) (int64, error)

	// Begin starts a transaction; subsequent calls run inside it until Commit or Rollback.
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// ListTables returns user table names in the connected database.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeColumns returns every column of every user table.
	DescribeColumns(ctx context.Context) ([]ColumnInfo, error)

	// Dialect reports which dialect this connection speaks.
	Dialect() sqlpkg.Dialect

	// Close rolls back an open transaction and releases the connection.
	Close() error
}

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// ColumnInfo describes one table column as reported by the database catalog.
type ColumnInfo struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	DataType string `json:"data_type"`
}
