package handlers

import (
	"encoding/json"
	"net/http"
)

// APIError is the body of every non-MCP error response.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes an APIError with the given status.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, APIError{Error: errorCode, Message: message})
}

// WriteJSON encodes data as the response body.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
