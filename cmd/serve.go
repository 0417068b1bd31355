package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/audit"
	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	"github.com/ekaya-inc/ekaya-guard/pkg/handlers"
	"github.com/ekaya-inc/ekaya-guard/pkg/mcp"
	"github.com/ekaya-inc/ekaya-guard/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-guard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-guard/pkg/middleware"
	"github.com/ekaya-inc/ekaya-guard/pkg/retry"
	"github.com/ekaya-inc/ekaya-guard/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server over stdio (the default) or streamable HTTP.

Over HTTP the server also exposes /health, /ping and /metrics.`,
		Example: `  # Serve an MCP client that spawns the process
  ekaya-guard serve

  # Serve HTTP on the configured bind address and port
  ekaya-guard serve --transport http`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cmd.Flags().Changed("transport") {
				cfg.Server.Transport = transport
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport: stdio or http")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting ekaya-guard",
		zap.String("version", cfg.Version),
		zap.String("transport", cfg.Server.Transport),
		zap.Int("adapters", len(datasource.RegisteredAdapters())))

	classifier, err := sqlpkg.NewClassifier(cfg.Security.ClassifierCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}

	connector := datasource.NewConnector(logger)
	m := metrics.New()
	svc := services.NewDatabaseService(cfg, connector, classifier, audit.NewSecurityAuditor(logger), m, logger)

	mcpServer := mcp.NewServer("ekaya-guard", cfg.Version, logger)
	tools.RegisterAll(mcpServer.MCP(), &tools.ToolDeps{
		Service: svc,
		Logger:  logger,
		Timeout: cfg.Server.ToolTimeout,
		Version: cfg.Version,
	})

	if cfg.Server.StartupProbe {
		go services.ProbeDefaults(ctx, cfg.Databases, connector, retry.DefaultConfig(), logger)
	}

	switch cfg.Server.Transport {
	case "stdio":
		logger.Info("Serving MCP over stdio")
		if err := mcpServer.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case "http":
		return serveHTTP(ctx, cfg, mcpServer, m, logger)
	default:
		return fmt.Errorf("unknown transport %q (expected stdio or http)", cfg.Server.Transport)
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, mcpServer *mcp.Server, m *metrics.Metrics, logger *zap.Logger) error {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg.Version, logger).RegisterRoutes(mux)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	handlers.RegisterMetricsRoute(mux, m.Handler())

	addr := net.JoinHostPort(cfg.Server.BindAddr, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving MCP over HTTP", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
