// Package cmd implements the ekaya-guard command line: the MCP server and an offline
// query checker.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	"github.com/ekaya-inc/ekaya-guard/pkg/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ekaya-guard",
	Short: "MCP server that validates SQL before it reaches a database",
	Long: `ekaya-guard exposes MySQL, PostgreSQL and SQL Server to MCP clients.
Free-form queries are classified and only reads are executed. Table changes and
record mutations go through structured tools that quote identifiers, bind values
and require explicit confirmation for destructive operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitError ends the process with a specific status and no error text.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the YAML config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// loadRuntime reads the configuration and builds the process logger from it.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
