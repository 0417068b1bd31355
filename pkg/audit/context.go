package audit

import (
	"context"

	"github.com/google/uuid"
)

// Operation identifies one tool call across all the audit events it produces.
type Operation struct {
	ID       uuid.UUID
	Tool     string
	ClientIP string
}

type operationKey struct{}

// WithOperation starts a new operation on ctx with a fresh ID.
func WithOperation(ctx context.Context, tool, clientIP string) context.Context {
	return context.WithValue(ctx, operationKey{}, Operation{
		ID:       uuid.New(),
		Tool:     tool,
		ClientIP: clientIP,
	})
}

// OperationFromContext returns the operation on ctx, or the zero Operation.
func OperationFromContext(ctx context.Context) Operation {
	if ctx == nil {
		return Operation{}
	}
	op, _ := ctx.Value(operationKey{}).(Operation)
	return op
}
