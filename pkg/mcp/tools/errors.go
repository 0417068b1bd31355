package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

// Error codes returned in structured tool errors. SQL user errors carry the adapter's
// own code (syntax_error, undefined_table, ...).
const (
	CodeSecurityRejection    = "security_rejection"
	CodeConfirmationMismatch = "confirmation_mismatch"
	CodeSafetyLimitExceeded  = "safety_limit_exceeded"
	CodeInvalidRequest       = "invalid_request"
)

// ErrorResponse represents a structured error in tool results.
// This is used to return actionable error information to the client
// as a successful tool result, ensuring error details are visible
// rather than being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable/actionable errors the caller can fix
// (invalid parameters, rejected SQL, wrong confirmation token).
//
// Do NOT use this for system failures (database connection errors,
// internal server errors) - those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "confirmation_mismatch",
//	    "confirmation does not match",
//	    map[string]any{"expected_format": "DELETE_TABLE_users"},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewDomainErrorResult converts errors the caller can act on into a structured result.
// It returns nil for everything else; the caller should return those as Go errors.
//
//	result, err := deps.Service.UpdateRecords(ctx, req)
//	if err != nil {
//	    if errResult := NewDomainErrorResult(err); errResult != nil {
//	        return errResult, nil
//	    }
//	    return nil, err
//	}
func NewDomainErrorResult(err error) *mcp.CallToolResult {
	if err == nil {
		return nil
	}

	var rejection *apperrors.SecurityRejection
	if errors.As(err, &rejection) {
		details := map[string]any{"rejection_code": rejection.Code}
		if rejection.Offending != "" {
			details["offending"] = rejection.Offending
		}
		if rejection.Report != nil {
			details["report"] = rejection.Report
		}
		return NewErrorResultWithDetails(CodeSecurityRejection, rejection.Reason, details)
	}

	var mismatch *apperrors.ConfirmationMismatch
	if errors.As(err, &mismatch) {
		return NewErrorResultWithDetails(CodeConfirmationMismatch, mismatch.Error(),
			map[string]any{"expected_format": mismatch.Hint})
	}

	var limit *apperrors.SafetyLimitExceeded
	if errors.As(err, &limit) {
		return NewErrorResultWithDetails(CodeSafetyLimitExceeded, limit.Error(), map[string]any{
			"operation":     limit.Operation,
			"matched_rows":  limit.Count,
			"safety_limit":  limit.Limit,
			"how_to_adjust": "narrow the where conditions or pass a larger safety_limit",
		})
	}

	var specErr *apperrors.SpecValidationError
	if errors.As(err, &specErr) {
		return NewErrorResultWithDetails(CodeInvalidRequest, specErr.Reason, map[string]any{"field": specErr.Field})
	}

	if userErr, ok := datasource.AsSQLUserError(err); ok {
		return NewErrorResult(userErr.Code, userErr.Message)
	}

	return nil
}

// IsInputError returns true if the error was caused by the request rather than by the
// server or the database connection. Input errors are logged at DEBUG level.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.IsDomainError(err) {
		return true
	}
	_, ok := datasource.AsSQLUserError(err)
	return ok
}
