package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
)

// userErrorCodes maps MySQL server error numbers to the codes shared across dialects.
var userErrorCodes = map[uint16]string{
	1064: "syntax_error",
	1146: "undefined_table",
	1051: "undefined_table",
	1054: "undefined_column",
	1091: "undefined_column",
	1050: "duplicate_table",
	1060: "duplicate_column",
	1062: "unique_violation",
	1451: "foreign_key_violation",
	1452: "foreign_key_violation",
	1048: "not_null_violation",
	1364: "not_null_violation",
	3819: "check_violation",
	1406: "value_too_long",
	1264: "numeric_out_of_range",
	1292: "invalid_datetime",
	1365: "division_by_zero",
	1366: "invalid_input",
	1142: "permission_denied",
	1044: "permission_denied",
}

// MapError classifies go-sql-driver errors by server error number.
func MapError(err error) *datasource.SQLUserError {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return nil
	}
	code, ok := userErrorCodes[myErr.Number]
	if !ok {
		return nil
	}
	return &datasource.SQLUserError{Code: code, Message: myErr.Message}
}
