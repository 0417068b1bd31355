package mysql

import (
	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

const (
	listTablesQuery = `SHOW TABLES`

	columnsQuery = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			DriverName:  "mysql",
		},
		Dialect:     sqlpkg.DialectMySQL,
		Placeholder: sqlpkg.PlaceholderQuestion,
		DSN: func(p datasource.ConnParams) (string, error) {
			return FromParams(p).ConnectionString(), nil
		},
		ListTablesQuery: listTablesQuery,
		ColumnsQuery:    columnsQuery,
		MapError:        MapError,
	})
}
