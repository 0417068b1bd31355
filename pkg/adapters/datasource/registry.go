package datasource

import (
	"cmp"
	"slices"
	"sync"

	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// DatasourceAdapterInfo describes a registered adapter for discovery (health, CLI).
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`         // "mysql", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	DriverName  string `json:"driver"`       // database/sql driver name
}

// DatasourceAdapterRegistration is everything the shared connection needs from a dialect.
type DatasourceAdapterRegistration struct {
	Info    DatasourceAdapterInfo
	Dialect sqlpkg.Dialect

	// Placeholder is the driver's native parameter syntax.
	Placeholder sqlpkg.PlaceholderStyle

	// DSN builds the driver connection string.
	DSN func(p ConnParams) (string, error)

	// BindArgs adapts positional params for the driver. Nil passes them through.
	BindArgs func(params []any) []any

	// ListTablesQuery returns one column of table names.
	ListTablesQuery string

	// ColumnsQuery returns (table, column, data_type) rows.
	ColumnsQuery string

	// MapError returns a SQLUserError when err was caused by the statement rather than
	// by the server or the network. Nil leaves the error as an adapter failure.
	MapError func(err error) *SQLUserError
}

var (
	registryMu sync.RWMutex
	registry   = make(map[sqlpkg.Dialect]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Dialect] = reg
}

// Lookup returns the registration for a dialect.
func Lookup(d sqlpkg.Dialect) (DatasourceAdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[d]
	return reg, ok
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	slices.SortFunc(result, func(a, b DatasourceAdapterInfo) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(d sqlpkg.Dialect) bool {
	_, ok := Lookup(d)
	return ok
}
