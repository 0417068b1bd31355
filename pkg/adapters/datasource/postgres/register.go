package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

const (
	listTablesQuery = `SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename`

	columnsQuery = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			DriverName:  "pgx",
		},
		Dialect:     sqlpkg.DialectPostgres,
		Placeholder: sqlpkg.PlaceholderDollar,
		DSN: func(p datasource.ConnParams) (string, error) {
			return FromParams(p).ConnectionString(), nil
		},
		ListTablesQuery: listTablesQuery,
		ColumnsQuery:    columnsQuery,
		MapError:        MapError,
	})
}
