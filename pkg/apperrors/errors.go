package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrSecurityRejection    = errors.New("security rejection")
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
	ErrSafetyLimitExceeded  = errors.New("safety limit exceeded")
	ErrSpecValidation       = errors.New("invalid request")
	ErrAdapter              = errors.New("database adapter failure")
)

// SecurityRejection is returned when the classifier or a policy check declines input.
// Report carries the full diagnostic (usually a sql.SecurityReport) for callers that
// want to surface it.
type SecurityRejection struct {
	Code      string
	Reason    string
	Offending string
	Report    any
}

func (e *SecurityRejection) Error() string {
	if e.Offending != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrSecurityRejection, e.Reason, e.Offending)
	}
	return fmt.Sprintf("%s: %s", ErrSecurityRejection, e.Reason)
}

func (e *SecurityRejection) Unwrap() error { return ErrSecurityRejection }

// ConfirmationMismatch is returned when a caller-supplied confirmation token does not
// match the derived one. Hint is what the caller gets told to send.
type ConfirmationMismatch struct {
	Expected string
	Got      string
	Hint     string
}

func (e *ConfirmationMismatch) Error() string {
	return fmt.Sprintf("%s: expected %q", ErrConfirmationMismatch, e.Hint)
}

func (e *ConfirmationMismatch) Unwrap() error { return ErrConfirmationMismatch }

// SafetyLimitExceeded is returned by the pre-count guard.
type SafetyLimitExceeded struct {
	Operation string
	Count     int64
	Limit     int64
}

func (e *SafetyLimitExceeded) Error() string {
	return fmt.Sprintf("%s: %s would affect %d rows (limit: %d)", ErrSafetyLimitExceeded, e.Operation, e.Count, e.Limit)
}

func (e *SafetyLimitExceeded) Unwrap() error { return ErrSafetyLimitExceeded }

// SpecValidationError reports a malformed identifier, type, constraint or request shape.
type SpecValidationError struct {
	Field  string
	Reason string
}

func (e *SpecValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrSpecValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrSpecValidation, e.Field, e.Reason)
}

func (e *SpecValidationError) Unwrap() error { return ErrSpecValidation }

// NewSpecValidationError is a shorthand used throughout the builders.
func NewSpecValidationError(field, format string, args ...any) *SpecValidationError {
	return &SpecValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AdapterError wraps a driver failure. It is never retried.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrAdapter, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the driver error so callers can errors.As
// into driver-specific types.
func (e *AdapterError) Unwrap() []error { return []error{ErrAdapter, e.Err} }

// IsDomainError reports whether err was raised by local validation, before any
// database call was made.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrSecurityRejection) ||
		errors.Is(err, ErrConfirmationMismatch) ||
		errors.Is(err, ErrSafetyLimitExceeded) ||
		errors.Is(err, ErrSpecValidation)
}
