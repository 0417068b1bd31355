package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
	"github.com/ekaya-inc/ekaya-guard/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// ProbeResult is the outcome of probing one default database.
type ProbeResult struct {
	Dialect   sqlpkg.Dialect `json:"database_type"`
	Target    string         `json:"target"`
	Reachable bool           `json:"reachable"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// ProbeDefaults connects to every compiled-in dialect that has environment defaults and
// runs SELECT 1, retrying transient failures. Dialects without defaults are skipped.
// Failures are reported, never returned as errors.
func ProbeDefaults(
	ctx context.Context,
	defaults config.DatabasesConfig,
	connector datasource.Connector,
	retryCfg *retry.Config,
	logger *zap.Logger,
) []ProbeResult {
	logger = logger.Named("probe")
	var results []ProbeResult

	for _, dialect := range sqlpkg.Dialects {
		if !datasource.IsRegistered(dialect) || !defaults.For(dialect).IsSet() {
			continue
		}
		params, err := datasource.ResolveConnParams(nil, dialect, defaults)
		if err != nil {
			continue
		}

		start := time.Now()
		err = retry.DoIfRetryable(ctx, retryCfg, func() error {
			conn, err := connector.Connect(ctx, dialect, params)
			if err != nil {
				return err
			}
			defer conn.Close()
			_, err = conn.QueryRaw(ctx, "SELECT 1")
			return err
		})

		result := ProbeResult{
			Dialect:   dialect,
			Target:    params.String(),
			Reachable: err == nil,
			Duration:  time.Since(start),
		}
		if err != nil {
			result.Error = logging.SanitizeError(err)
			logger.Warn("Database probe failed",
				zap.String("dialect", dialect.String()),
				zap.String("target", result.Target),
				zap.String("error", result.Error))
		} else {
			logger.Info("Database reachable",
				zap.String("dialect", dialect.String()),
				zap.String("target", result.Target),
				zap.Duration("duration", result.Duration))
		}
		results = append(results, result)
	}

	return results
}
