package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// Mutation operations checked by the Guard.
const (
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

// Guard enforces the row-count ceiling on UPDATE and DELETE. It runs the COUNT on the
// caller's connection so the count and the mutation see the same transaction.
type Guard struct {
	updateLimit int64
	deleteLimit int64
}

// NewGuard creates a guard with the configured default limits.
func NewGuard(cfg config.SecurityConfig) *Guard {
	return &Guard{
		updateLimit: cfg.UpdateSafetyLimit,
		deleteLimit: cfg.DeleteSafetyLimit,
	}
}

// Limit returns requested when positive, otherwise the operation's default.
func (g *Guard) Limit(operation string, requested int64) int64 {
	if requested > 0 {
		return requested
	}
	if operation == OperationDelete {
		return g.deleteLimit
	}
	return g.updateLimit
}

// Check executes countStmt and fails when the count exceeds limit. A count equal to
// the limit passes. The count is returned either way.
func (g *Guard) Check(ctx context.Context, conn datasource.Connection, countStmt sqlpkg.Statement, operation string, limit int64) (int64, error) {
	result, err := conn.Query(ctx, countStmt)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows for %s: %w", operation, err)
	}
	if result.RowCount == 0 || len(result.Columns) == 0 {
		return 0, fmt.Errorf("count query for %s returned no rows", operation)
	}

	count, err := toInt64(result.Rows[0][result.Columns[0]])
	if err != nil {
		return 0, fmt.Errorf("count query for %s: %w", operation, err)
	}

	if count > limit {
		return count, &apperrors.SafetyLimitExceeded{Operation: operation, Count: count, Limit: limit}
	}
	return count, nil
}

// toInt64 converts the COUNT(*) value each driver returns.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected count value %q", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
