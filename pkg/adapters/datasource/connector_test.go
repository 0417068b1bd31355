package datasource

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

var errUndefinedTable = errors.New("relation \"missing\" does not exist")

func registerTestAdapter(t *testing.T) {
	t.Helper()
	Register(DatasourceAdapterRegistration{
		Info:        DatasourceAdapterInfo{Type: "postgres", DisplayName: "PostgreSQL", DriverName: "sqlmock"},
		Dialect:     sqlpkg.DialectPostgres,
		Placeholder: sqlpkg.PlaceholderDollar,
		DSN: func(p ConnParams) (string, error) {
			return "postgresql://" + p.User + ":" + p.Password + "@" + p.Server + "/" + p.Database, nil
		},
		ListTablesQuery: "SELECT tablename FROM pg_tables",
		ColumnsQuery:    "SELECT table_name, column_name, data_type FROM information_schema.columns",
		MapError: func(err error) *SQLUserError {
			if errors.Is(err, errUndefinedTable) {
				return &SQLUserError{Code: "undefined_table", Message: err.Error()}
			}
			return nil
		},
	})
}

// connectMock opens a Connection whose handle is a sqlmock database.
func connectMock(t *testing.T) (Connection, sqlmock.Sqlmock) {
	t.Helper()
	registerTestAdapter(t)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	var gotDriver, gotDSN string
	connector := NewConnectorWithOpener(func(driverName, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dsn
		return db, nil
	}, zaptest.NewLogger(t))

	conn, err := connector.Connect(context.Background(), sqlpkg.DialectPostgres,
		ConnParams{Server: "h", Database: "d", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "sqlmock", gotDriver)
	assert.Equal(t, "postgresql://u:p@h/d", gotDSN)
	return conn, mock
}

func TestConnect_UnregisteredDialect(t *testing.T) {
	connector := NewConnectorWithOpener(func(string, string) (*sql.DB, error) {
		t.Fatal("opener must not be called")
		return nil, nil
	}, nil)

	_, err := connector.Connect(context.Background(), sqlpkg.Dialect("oracle"), ConnParams{})
	require.ErrorIs(t, err, apperrors.ErrSpecValidation)
}

func TestConnect_OpenFailureIsSanitized(t *testing.T) {
	registerTestAdapter(t)
	connector := NewConnectorWithOpener(func(string, string) (*sql.DB, error) {
		return nil, errors.New("cannot open postgresql://u:hunter2@h/d")
	}, nil)

	_, err := connector.Connect(context.Background(), sqlpkg.DialectPostgres, ConnParams{Server: "h", Database: "d"})
	require.ErrorIs(t, err, apperrors.ErrAdapter)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestSQLConnection_QueryRebindsPlaceholders(t *testing.T) {
	conn, mock := connectMock(t)

	stmt := sqlpkg.Statement{
		SQL:     `SELECT COUNT(*) FROM "users" WHERE "id" = %s AND "org" = %s`,
		Params:  []any{1, "acme"},
		Dialect: sqlpkg.DialectPostgres,
	}
	mock.ExpectQuery(`SELECT COUNT(*) FROM "users" WHERE "id" = $1 AND "org" = $2`).
		WithArgs(1, "acme").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectClose()

	result, err := conn.Query(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, result.Columns)
	assert.Equal(t, 1, result.RowCount)
	assert.EqualValues(t, 3, result.Rows[0]["count"])

	// The statement text itself is untouched.
	assert.Contains(t, stmt.SQL, "%s")

	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnection_QueryRawConvertsBytes(t *testing.T) {
	conn, mock := connectMock(t)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, []byte("alice")).
			AddRow(2, nil))
	mock.ExpectClose()

	result, err := conn.QueryRaw(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "alice", result.Rows[0]["name"])
	assert.Nil(t, result.Rows[1]["name"])

	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnection_TransactionalExec(t *testing.T) {
	conn, mock := connectMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("x", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	ctx := context.Background()
	require.NoError(t, conn.Begin(ctx))
	require.Error(t, conn.Begin(ctx), "nested transactions are refused")

	n, err := conn.Exec(ctx, sqlpkg.Statement{
		SQL:     `UPDATE "users" SET "name" = %s WHERE "id" = %s`,
		Params:  []any{"x", 1},
		Dialect: sqlpkg.DialectPostgres,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, conn.Commit())
	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnection_CloseRollsBackOpenTransaction(t *testing.T) {
	conn, mock := connectMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectClose()

	require.NoError(t, conn.Begin(context.Background()))
	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnection_ErrorMapping(t *testing.T) {
	conn, mock := connectMock(t)

	mock.ExpectQuery("SELECT * FROM missing").WillReturnError(errUndefinedTable)
	mock.ExpectExec(`DELETE FROM "t" WHERE "id" = $1`).WithArgs(1).WillReturnError(errors.New("connection reset"))
	mock.ExpectClose()

	ctx := context.Background()
	_, err := conn.QueryRaw(ctx, "SELECT * FROM missing")
	require.Error(t, err)
	userErr, ok := AsSQLUserError(err)
	require.True(t, ok)
	assert.Equal(t, "undefined_table", userErr.Code)
	assert.ErrorIs(t, err, apperrors.ErrAdapter)
	assert.ErrorIs(t, err, errUndefinedTable)

	_, err = conn.Exec(ctx, sqlpkg.Statement{SQL: `DELETE FROM "t" WHERE "id" = %s`, Params: []any{1}, Dialect: sqlpkg.DialectPostgres})
	require.ErrorIs(t, err, apperrors.ErrAdapter)
	_, ok = AsSQLUserError(err)
	assert.False(t, ok)

	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnection_ParamCountMismatch(t *testing.T) {
	conn, mock := connectMock(t)
	mock.ExpectClose()

	_, err := conn.Exec(context.Background(), sqlpkg.Statement{SQL: `DELETE FROM "t" WHERE "id" = %s`, Dialect: sqlpkg.DialectPostgres, Params: []any{1, 2}})
	require.Error(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConnection_Schema(t *testing.T) {
	conn, mock := connectMock(t)

	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("orders").AddRow("users"))
	mock.ExpectQuery("SELECT table_name, column_name, data_type FROM information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("users", "id", "integer").
			AddRow("users", "email", "character varying"))
	mock.ExpectClose()

	ctx := context.Background()
	tables, err := conn.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)

	columns, err := conn.DescribeColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ColumnInfo{
		{Table: "users", Column: "id", DataType: "integer"},
		{Table: "users", Column: "email", DataType: "character varying"},
	}, columns)

	assert.Equal(t, sqlpkg.DialectPostgres, conn.Dialect())
	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisteredAdapters(t *testing.T) {
	registerTestAdapter(t)
	assert.True(t, IsRegistered(sqlpkg.DialectPostgres))

	infos := RegisteredAdapters()
	require.NotEmpty(t, infos)
	for i := 1; i < len(infos); i++ {
		assert.Less(t, infos[i-1].Type, infos[i].Type)
	}
}
