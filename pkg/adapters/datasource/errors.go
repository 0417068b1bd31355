package datasource

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

// SQLUserError is a database error the caller can act on: bad SQL, a missing table,
// a constraint violation. Code is a stable snake_case name shared across dialects
// (syntax_error, undefined_table, unique_violation, ...).
type SQLUserError struct {
	Code    string
	Message string
	Err     error
}

func (e *SQLUserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SQLUserError) Unwrap() error { return e.Err }

// AsSQLUserError extracts a SQLUserError from err's chain.
func AsSQLUserError(err error) (*SQLUserError, bool) {
	var userErr *SQLUserError
	if errors.As(err, &userErr) {
		return userErr, true
	}
	return nil, false
}

// wrapError turns a driver error into an AdapterError, classified as a user error when
// the dialect recognizes it.
func wrapError(reg DatasourceAdapterRegistration, op string, err error) error {
	if err == nil {
		return nil
	}
	adapterErr := &apperrors.AdapterError{Op: op, Err: err}
	if reg.MapError != nil {
		if userErr := reg.MapError(err); userErr != nil {
			userErr.Err = adapterErr
			return userErr
		}
	}
	return adapterErr
}
