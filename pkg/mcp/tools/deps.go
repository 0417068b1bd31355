// Package tools provides the MCP tool and prompt implementations for ekaya-guard.
package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
	"github.com/ekaya-inc/ekaya-guard/pkg/services"
)

// DefaultToolTimeout bounds a tool call when ToolDeps.Timeout is unset.
const DefaultToolTimeout = 30 * time.Second

// ToolDeps defines dependencies for the database tools.
type ToolDeps struct {
	Service services.DatabaseService
	Logger  *zap.Logger
	Timeout time.Duration
	Version string
}

// RegisterAll registers every tool and the safe_query prompt.
func RegisterAll(s *server.MCPServer, deps *ToolDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	RegisterHealthTool(s, deps.Version)
	RegisterQueryTools(s, deps)
	RegisterSchemaTools(s, deps)
	RegisterDDLTools(s, deps)
	RegisterDMLTools(s, deps)
	RegisterSafeQueryPrompt(s, deps)
}

type clientIPKey struct{}

// WithClientIP records the caller address for audit events. The HTTP transport sets it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address recorded by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// begin scopes a tool call: a deadline plus an audit operation id.
func (d *ToolDeps) begin(ctx context.Context, tool string) (context.Context, context.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	ctx = audit.WithOperation(ctx, tool, ClientIPFromContext(ctx))
	return context.WithTimeout(ctx, timeout)
}

// fail converts a service error into a tool response. Errors the caller can act on
// become structured results; everything else is returned as a Go error.
func (d *ToolDeps) fail(tool string, err error) (*mcp.CallToolResult, error) {
	if result := NewDomainErrorResult(err); result != nil {
		d.Logger.Debug("Tool call rejected",
			zap.String("tool", tool),
			zap.String("reason", logging.SanitizeError(err)))
		return result, nil
	}
	d.Logger.Error("Tool call failed",
		zap.String("tool", tool),
		zap.String("error", logging.SanitizeError(err)))
	return nil, err
}
