package mssql

import (
	"database/sql"
	"strconv"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" database/sql driver

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

const (
	listTablesQuery = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`

	columnsQuery = `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
ORDER BY TABLE_NAME, ORDINAL_POSITION`
)

// namedParams binds positional params as @p1, @p2, ... for go-mssqldb.
func namedParams(params []any) []any {
	named := make([]any, len(params))
	for i, param := range params {
		named[i] = sql.Named("p"+strconv.Itoa(i+1), param)
	}
	return named
}

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			DriverName:  "sqlserver",
		},
		Dialect:     sqlpkg.DialectMSSQL,
		Placeholder: sqlpkg.PlaceholderAtP,
		DSN: func(p datasource.ConnParams) (string, error) {
			cfg, err := FromParams(p)
			if err != nil {
				return "", err
			}
			return cfg.ConnectionString(), nil
		},
		BindArgs:        namedParams,
		ListTablesQuery: listTablesQuery,
		ColumnsQuery:    columnsQuery,
		MapError:        MapError,
	})
}
