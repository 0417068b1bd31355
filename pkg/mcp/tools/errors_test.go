package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
)

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	// The Content slice contains mcp.Content interface types
	// We need to marshal and unmarshal to extract the text
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("test_error", "this is a test error")

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	// Extract and parse the JSON content
	text := getTextContent(result)
	var errResp ErrorResponse
	err := json.Unmarshal([]byte(text), &errResp)
	require.NoError(t, err)

	// Verify the error response structure
	assert.True(t, errResp.Error, "error field should be true")
	assert.Equal(t, "test_error", errResp.Code)
	assert.Equal(t, "this is a test error", errResp.Message)
	assert.Nil(t, errResp.Details, "details should be nil when not provided")
}

func TestNewErrorResultWithDetails(t *testing.T) {
	details := map[string]any{
		"invalid_columns": []string{"foo", "bar"},
		"valid_columns":   []string{"id", "name", "status"},
		"count":           2,
	}

	result := NewErrorResultWithDetails("validation_error", "invalid columns provided", details)

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	// Extract and parse the JSON content
	text := getTextContent(result)
	var errResp ErrorResponse
	err := json.Unmarshal([]byte(text), &errResp)
	require.NoError(t, err)

	// Verify the error response structure
	assert.True(t, errResp.Error, "error field should be true")
	assert.Equal(t, "validation_error", errResp.Code)
	assert.Equal(t, "invalid columns provided", errResp.Message)
	assert.NotNil(t, errResp.Details, "details should not be nil")

	// Verify the details content
	detailsMap, ok := errResp.Details.(map[string]any)
	require.True(t, ok, "details should be a map")
	assert.Contains(t, detailsMap, "invalid_columns")
	assert.Contains(t, detailsMap, "valid_columns")
	assert.Contains(t, detailsMap, "count")
	assert.Equal(t, float64(2), detailsMap["count"]) // JSON numbers are float64
}

func TestErrorResponse_JSONStructure(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		details  any
		wantJSON string
	}{
		{
			name:     "simple error without details",
			code:     "not_found",
			message:  "resource not found",
			details:  nil,
			wantJSON: `{"error":true,"code":"not_found","message":"resource not found"}`,
		},
		{
			name:     "error with string details",
			code:     "invalid_input",
			message:  "bad request",
			details:  "parameter 'depth' is required",
			wantJSON: `{"error":true,"code":"invalid_input","message":"bad request","details":"parameter 'depth' is required"}`,
		},
		{
			name:    "error with structured details",
			code:    "validation_error",
			message: "validation failed",
			details: map[string]any{
				"field": "email",
				"issue": "invalid format",
			},
			wantJSON: `{"error":true,"code":"validation_error","message":"validation failed","details":{"field":"email","issue":"invalid format"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *mcp.CallToolResult
			if tt.details == nil {
				result = NewErrorResult(tt.code, tt.message)
			} else {
				result = NewErrorResultWithDetails(tt.code, tt.message, tt.details)
			}

			text := getTextContent(result)

			// Verify JSON can be unmarshaled
			var got, want map[string]any
			require.NoError(t, json.Unmarshal([]byte(text), &got))
			require.NoError(t, json.Unmarshal([]byte(tt.wantJSON), &want))

			// Compare structures
			assert.Equal(t, want, got)
		})
	}
}

func TestErrorResponse_RealWorldExamples(t *testing.T) {
	t.Run("query_required", func(t *testing.T) {
		result := NewErrorResult(CodeInvalidRequest, "query is required")

		text := getTextContent(result)
		var errResp ErrorResponse
		err := json.Unmarshal([]byte(text), &errResp)
		require.NoError(t, err)

		assert.True(t, errResp.Error)
		assert.Equal(t, "invalid_request", errResp.Code)
		assert.Contains(t, errResp.Message, "query")
	})

	t.Run("blocked_query", func(t *testing.T) {
		result := NewErrorResultWithDetails(
			CodeSecurityRejection,
			"execution blocked by security policy: dangerous command DROP",
			map[string]any{
				"rejection_code":  "dangerous_command",
				"command_blocked": true,
			},
		)

		text := getTextContent(result)
		var errResp ErrorResponse
		err := json.Unmarshal([]byte(text), &errResp)
		require.NoError(t, err)

		assert.True(t, errResp.Error)
		assert.True(t, result.IsError)
		detailsMap := errResp.Details.(map[string]any)
		assert.Equal(t, "dangerous_command", detailsMap["rejection_code"])
		assert.Equal(t, true, detailsMap["command_blocked"])
	})
}

func decodeErrorResponse(t *testing.T, result *mcp.CallToolResult) ErrorResponse {
	t.Helper()
	require.NotNil(t, result)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	return errResp
}

func TestNewDomainErrorResult(t *testing.T) {
	t.Run("security rejection", func(t *testing.T) {
		err := &apperrors.SecurityRejection{Code: "dangerous_pattern", Reason: "UNION is not allowed", Offending: "UNION"}
		resp := decodeErrorResponse(t, NewDomainErrorResult(fmt.Errorf("execute: %w", err)))

		assert.Equal(t, CodeSecurityRejection, resp.Code)
		assert.Equal(t, "UNION is not allowed", resp.Message)
		details := resp.Details.(map[string]any)
		assert.Equal(t, "dangerous_pattern", details["rejection_code"])
		assert.Equal(t, "UNION", details["offending"])
		assert.NotContains(t, details, "report")
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		err := &apperrors.ConfirmationMismatch{
			Expected: "DELETE_TABLE_users",
			Got:      "yes",
			Hint:     "DELETE_TABLE_<table_name>",
		}
		resp := decodeErrorResponse(t, NewDomainErrorResult(err))

		assert.Equal(t, CodeConfirmationMismatch, resp.Code)
		assert.Equal(t, "DELETE_TABLE_<table_name>", resp.Details.(map[string]any)["expected_format"])
	})

	t.Run("safety limit", func(t *testing.T) {
		err := &apperrors.SafetyLimitExceeded{Operation: "DELETE", Count: 150, Limit: 100}
		resp := decodeErrorResponse(t, NewDomainErrorResult(err))

		assert.Equal(t, CodeSafetyLimitExceeded, resp.Code)
		details := resp.Details.(map[string]any)
		assert.Equal(t, "DELETE", details["operation"])
		assert.InDelta(t, 150, details["matched_rows"], 0)
		assert.InDelta(t, 100, details["safety_limit"], 0)
		assert.NotEmpty(t, details["how_to_adjust"])
	})

	t.Run("spec validation", func(t *testing.T) {
		err := apperrors.NewSpecValidationError("where_conditions", "must not be empty")
		resp := decodeErrorResponse(t, NewDomainErrorResult(err))

		assert.Equal(t, CodeInvalidRequest, resp.Code)
		assert.Equal(t, "where_conditions", resp.Details.(map[string]any)["field"])
	})

	t.Run("sql user error", func(t *testing.T) {
		err := &datasource.SQLUserError{Code: "undefined_table", Message: "table \"nope\" does not exist"}
		resp := decodeErrorResponse(t, NewDomainErrorResult(err))

		assert.Equal(t, "undefined_table", resp.Code)
		assert.Contains(t, resp.Message, "nope")
	})

	t.Run("system failure", func(t *testing.T) {
		assert.Nil(t, NewDomainErrorResult(errors.New("connection refused")))
		assert.Nil(t, NewDomainErrorResult(nil))
	})
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(&apperrors.SafetyLimitExceeded{Operation: "UPDATE", Count: 2, Limit: 1}))
	assert.True(t, IsInputError(&datasource.SQLUserError{Code: "syntax_error", Message: "bad"}))
	assert.False(t, IsInputError(errors.New("dial tcp: timeout")))
	assert.False(t, IsInputError(nil))
}
