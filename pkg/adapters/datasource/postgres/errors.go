package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
)

// MapError classifies PostgreSQL errors by SQLSTATE. Classes that indicate a problem
// with the statement rather than the server are user errors:
//   - 22xxx: Data Exception (invalid input, division by zero)
//   - 23xxx: Integrity Constraint Violation (unique, FK, check)
//   - 42xxx: Syntax Error or Access Rule Violation
//   - 44xxx: WITH CHECK OPTION Violation
func MapError(err error) *datasource.SQLUserError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	code := mapSQLStateToCode(pgErr.Code)
	if code == "" {
		return nil
	}
	return &datasource.SQLUserError{Code: code, Message: pgErr.Message}
}

func mapSQLStateToCode(sqlState string) string {
	if len(sqlState) < 2 {
		return ""
	}

	switch sqlState {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "42P07":
		return "duplicate_table"
	case "42701":
		return "duplicate_column"
	case "42501":
		return "permission_denied"
	case "23505":
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "23502":
		return "not_null_violation"
	case "23514":
		return "check_violation"
	case "22001":
		return "value_too_long"
	case "22003":
		return "numeric_out_of_range"
	case "22007":
		return "invalid_datetime"
	case "22012":
		return "division_by_zero"
	case "22P02":
		return "invalid_input"
	}

	switch sqlState[:2] {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "42":
		return "sql_error"
	case "44":
		return "check_option_violation"
	}
	return ""
}
