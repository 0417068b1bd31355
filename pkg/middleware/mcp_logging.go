package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/mcp/tools"
)

// MCPRequestLogger returns middleware that logs MCP JSON-RPC traffic at DEBUG level:
// method, tool name, outcome and duration. Structured tool errors also log their code
// (security_rejection, confirmation_mismatch, ...). Arguments are never logged here;
// the MCP server's call logger records them sanitized.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := tools.RawRequestFromContext(r.Context())
			if !ok {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					logger.Error("Failed to read MCP request body", zap.Error(err))
					next.ServeHTTP(w, r)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(body, &rpcReq); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}
			tool := zap.String("tool", rpcReq.Params.Name)

			logger.Debug("MCP request",
				zap.String("method", rpcReq.Method),
				tool,
				zap.Int("body_bytes", len(body)),
			)

			recorder := &mcpResponseRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := zap.Duration("duration", time.Since(start))

			payload := lastJSONPayload(recorder.body.Bytes())
			if len(payload) == 0 {
				// Notifications get 202 with no body.
				logger.Debug("MCP response empty", tool, zap.Int("status", recorder.status()), duration)
				return
			}

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(payload, &rpcResp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			switch {
			case rpcResp.Error != nil:
				logger.Debug("MCP response error",
					tool,
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message),
					duration,
				)
			case rpcResp.Result.IsError:
				logger.Debug("MCP tool error result",
					tool,
					zap.String("code", rpcResp.Result.errorCode()),
					duration,
				)
			default:
				logger.Debug("MCP response success", tool, duration)
			}
		})
	}
}

// lastJSONPayload returns body itself for JSON responses, or the last data frame of an
// event stream.
func lastJSONPayload(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '{' {
		return trimmed
	}

	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), len(trimmed)+1)
	for scanner.Scan() {
		line := scanner.Bytes()
		if data, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			last = append(last[:0], bytes.TrimSpace(data)...)
		}
	}
	return last
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name string `json:"name"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result jsonRPCResult `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

type jsonRPCResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// errorCode extracts the code of a structured tool error, or "" for plain text errors.
func (r jsonRPCResult) errorCode() string {
	if len(r.Content) == 0 {
		return ""
	}
	var structured struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(r.Content[0].Text), &structured); err != nil {
		return ""
	}
	return structured.Code
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder tees the response body so the outcome can be logged.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (r *mcpResponseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Flush lets streaming responses through the recorder.
func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *mcpResponseRecorder) status() int {
	if r.statusCode == 0 {
		return http.StatusOK
	}
	return r.statusCode
}
