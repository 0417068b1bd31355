package handlers

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/mcp"
	"github.com/ekaya-inc/ekaya-guard/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-guard/pkg/middleware"
)

// DefaultMaxRequestBytes bounds an MCP request body.
const DefaultMaxRequestBytes = 32 << 20

// MCPHandler handles MCP protocol requests over HTTP.
type MCPHandler struct {
	httpServer      *server.StreamableHTTPServer
	logger          *zap.Logger
	maxRequestBytes int64
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		httpServer:      mcpServer.NewStreamableHTTPServer(),
		logger:          logger,
		maxRequestBytes: DefaultMaxRequestBytes,
	}
}

// RegisterRoutes registers the MCP endpoint at /mcp.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux) {
	// 1. MCP request/response logging (innermost - logs JSON-RPC details)
	// 2. Request capture (raw body and client address onto the context)
	// 3. Method check (outermost - rejects non-POST before reading the body)
	loggedHandler := middleware.MCPRequestLogger(h.logger)(h.httpServer)
	capturedHandler := h.captureRequest(loggedHandler)
	mux.Handle("/mcp", h.requirePOST(capturedHandler))
}

// requirePOST returns 405 Method Not Allowed for non-POST requests.
// MCP over HTTP Streaming requires POST for JSON-RPC requests.
func (h *MCPHandler) requirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			_ = WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// captureRequest reads the body once, restores it for the transport, and attaches the
// raw message and the caller address to the request context.
func (h *MCPHandler) captureRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxRequestBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				_ = WriteError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body exceeds limit")
				return
			}
			_ = WriteError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ctx := tools.WithRawRequest(r.Context(), body)
		ctx = tools.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
