package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// OpenFunc opens a database handle. sql.Open in production; tests substitute sqlmock.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// SQLConnector opens database/sql connections through the adapter registry.
type SQLConnector struct {
	open   OpenFunc
	logger *zap.Logger
}

// NewConnector returns a connector backed by sql.Open.
func NewConnector(logger *zap.Logger) *SQLConnector {
	return NewConnectorWithOpener(sql.Open, logger)
}

// NewConnectorWithOpener returns a connector that opens handles with open.
func NewConnectorWithOpener(open OpenFunc, logger *zap.Logger) *SQLConnector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLConnector{open: open, logger: logger.Named("datasource")}
}

// Connect opens and pings a single-connection handle for one operation.
func (c *SQLConnector) Connect(ctx context.Context, dialect sqlpkg.Dialect, params ConnParams) (Connection, error) {
	reg, ok := Lookup(dialect)
	if !ok {
		return nil, apperrors.NewSpecValidationError("database_type", "unsupported datasource type: %s (not compiled in)", dialect)
	}

	dsn, err := reg.DSN(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s connection string: %w", dialect, err)
	}

	db, err := c.open(reg.Info.DriverName, dsn)
	if err != nil {
		return nil, &apperrors.AdapterError{Op: "open", Err: errors.New(logging.SanitizeError(err))}
	}

	// One operation, one session: the guard COUNT and the mutation must share it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		c.logger.Debug("Connection failed",
			zap.String("dialect", dialect.String()),
			zap.String("dsn", logging.SanitizeConnectionString(dsn)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, wrapError(reg, "connect", err)
	}

	c.logger.Debug("Connection opened",
		zap.String("dialect", dialect.String()),
		zap.String("target", params.String()))

	return &sqlConnection{db: db, reg: reg, logger: c.logger}, nil
}

var _ Connector = (*SQLConnector)(nil)
