package mssql

import (
	"errors"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
)

// userErrorCodes maps SQL Server error numbers to the codes shared across dialects.
var userErrorCodes = map[int32]string{
	102:  "syntax_error",
	156:  "syntax_error",
	207:  "undefined_column",
	208:  "undefined_table",
	3701: "undefined_table",
	4902: "undefined_table",
	2714: "duplicate_table",
	2705: "duplicate_column",
	2627: "unique_violation",
	2601: "unique_violation",
	547:  "constraint_violation",
	515:  "not_null_violation",
	8152: "value_too_long",
	2628: "value_too_long",
	8115: "numeric_out_of_range",
	8134: "division_by_zero",
	245:  "invalid_input",
	241:  "invalid_datetime",
	229:  "permission_denied",
	262:  "permission_denied",
}

// MapError classifies go-mssqldb errors by error number.
func MapError(err error) *datasource.SQLUserError {
	var msErr mssqldb.Error
	if !errors.As(err, &msErr) {
		return nil
	}
	code, ok := userErrorCodes[msErr.Number]
	if !ok {
		return nil
	}
	return &datasource.SQLUserError{Code: code, Message: msErr.Message}
}
