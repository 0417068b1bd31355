// Package sql provides SQL security validation and safe statement construction.
package sql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

// Dialect identifies the target database product.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectMSSQL    Dialect = "mssql"
)

// Dialects lists every supported dialect in a stable order.
var Dialects = []Dialect{DialectMySQL, DialectPostgres, DialectMSSQL}

// ParseDialect accepts the dialect name case-insensitively.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectMySQL, DialectPostgres, DialectMSSQL:
		return d, nil
	default:
		return "", apperrors.NewSpecValidationError("database_type", "unsupported database type %q (expected mysql, postgres or mssql)", s)
	}
}

// Placeholder returns the parameter marker used in built statement text.
func (d Dialect) Placeholder() string {
	if d == DialectMSSQL {
		return "?"
	}
	return "%s"
}

// DefaultPort returns the dialect's default TCP port.
func (d Dialect) DefaultPort() int {
	switch d {
	case DialectMySQL:
		return 3306
	case DialectPostgres:
		return 5432
	case DialectMSSQL:
		return 1433
	}
	return 0
}

// EscapeIdentifier wraps an already validated name in the dialect's quotes.
// It is not a security boundary on its own; call ValidateIdentifier first.
func EscapeIdentifier(name string, d Dialect) string {
	switch d {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectPostgres:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	case DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	}
	return name
}

func (d Dialect) String() string { return string(d) }
