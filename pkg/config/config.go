package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// DefaultConfigPath is read when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-guard.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Database passwords must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Security  SecurityConfig  `yaml:"security"`
	Databases DatabasesConfig `yaml:"databases"`
}

// ServerConfig controls the MCP transport.
type ServerConfig struct {
	// Transport is "stdio" (default) or "http".
	Transport string `yaml:"transport" env:"GUARD_TRANSPORT" env-default:"stdio"`
	BindAddr  string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port      string `yaml:"port" env:"PORT" env-default:"3443"`

	// ToolTimeout bounds every tool call, including the database round trips it makes.
	ToolTimeout time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT" env-default:"30s"`

	// StartupProbe pings every configured database once at startup (logged, never fatal).
	StartupProbe bool `yaml:"startup_probe" env:"STARTUP_PROBE" env-default:"false"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // "json" or "console"
}

// SecurityConfig holds the thresholds enforced on structured mutations.
type SecurityConfig struct {
	UpdateSafetyLimit int64 `yaml:"update_safety_limit" env:"UPDATE_SAFETY_LIMIT" env-default:"1000"`
	DeleteSafetyLimit int64 `yaml:"delete_safety_limit" env:"DELETE_SAFETY_LIMIT" env-default:"100"`
	MaxBulkRecords    int   `yaml:"max_bulk_records" env:"MAX_BULK_RECORDS" env-default:"10000"`
	DefaultBatchSize  int   `yaml:"default_batch_size" env:"DEFAULT_BATCH_SIZE" env-default:"100"`

	// RejectSuspiciousValues turns libinjection hits on bound values into rejections.
	// Hits are always audited. Set it to false to only audit.
	RejectSuspiciousValues bool `yaml:"reject_suspicious_values" env:"REJECT_SUSPICIOUS_VALUES" env-default:"true"`

	// ClassifierCacheSize bounds the verdict cache. Zero disables it.
	ClassifierCacheSize int `yaml:"classifier_cache_size" env:"CLASSIFIER_CACHE_SIZE" env-default:"512"`
}

// DatabaseConfig is the environment default for one dialect. Callers that send no
// usable connection params get these.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Database string `yaml:"database" env:"DATABASE"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"-" env:"PASSWORD"` // Secret - not in YAML
}

// IsSet reports whether enough is configured to attempt a connection.
func (d DatabaseConfig) IsSet() bool {
	return d.Host != "" && d.Database != ""
}

// DatabasesConfig holds the per-dialect defaults (MYSQL_*, POSTGRES_*, MSSQL_*).
type DatabasesConfig struct {
	MySQL    DatabaseConfig `yaml:"mysql" env-prefix:"MYSQL_"`
	Postgres DatabaseConfig `yaml:"postgres" env-prefix:"POSTGRES_"`
	MSSQL    DatabaseConfig `yaml:"mssql" env-prefix:"MSSQL_"`
}

// For returns the defaults for a dialect.
func (d DatabasesConfig) For(dialect sqlpkg.Dialect) DatabaseConfig {
	switch dialect {
	case sqlpkg.DialectMySQL:
		return d.MySQL
	case sqlpkg.DialectPostgres:
		return d.Postgres
	case sqlpkg.DialectMSSQL:
		return d.MSSQL
	}
	return DatabaseConfig{}
}

func (d *DatabasesConfig) ptr(dialect sqlpkg.Dialect) *DatabaseConfig {
	switch dialect {
	case sqlpkg.DialectMySQL:
		return &d.MySQL
	case sqlpkg.DialectPostgres:
		return &d.Postgres
	default:
		return &d.MSSQL
	}
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: configuration then comes from the environment only.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultConfigPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	if err := cfg.Databases.applyEnvAliases(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envAliases lists the secondary variable names accepted for each field, in priority
// order. "{P}" is replaced by the dialect prefix (MYSQL, POSTGRES, MSSQL).
var envAliases = struct {
	host, database, user, password, port []string
}{
	host:     []string{"{P}_SERVER", "DB_HOST", "DB_SERVER"},
	database: []string{"{P}_DB", "DB_NAME", "DATABASE"},
	user:     []string{"{P}_USERNAME", "DB_USER", "DB_USERNAME"},
	password: []string{"{P}_PASS", "DB_PASSWORD", "DB_PASS"},
	port:     []string{"DB_PORT"},
}

// applyEnvAliases fills fields left empty by the primary variables from the alias names.
func (d *DatabasesConfig) applyEnvAliases() error {
	for _, dialect := range sqlpkg.Dialects {
		db := d.ptr(dialect)
		prefix := dialectEnvPrefix(dialect)

		fillString(&db.Host, prefix, envAliases.host)
		fillString(&db.Database, prefix, envAliases.database)
		fillString(&db.User, prefix, envAliases.user)
		fillString(&db.Password, prefix, envAliases.password)

		if db.Port == 0 {
			var raw string
			fillString(&raw, prefix, envAliases.port)
			if raw != "" {
				port, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("invalid port %q for %s: %w", raw, dialect, err)
				}
				db.Port = port
			}
		}
	}
	return nil
}

func fillString(dst *string, prefix string, names []string) {
	if *dst != "" {
		return
	}
	for _, name := range names {
		if v, ok := os.LookupEnv(strings.Replace(name, "{P}", prefix, 1)); ok && v != "" {
			*dst = v
			return
		}
	}
}

func dialectEnvPrefix(d sqlpkg.Dialect) string {
	switch d {
	case sqlpkg.DialectMySQL:
		return "MYSQL"
	case sqlpkg.DialectPostgres:
		return "POSTGRES"
	default:
		return "MSSQL"
	}
}

func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be stdio or http, got %q", c.Server.Transport)
	}
	if c.Server.ToolTimeout <= 0 {
		return fmt.Errorf("server.tool_timeout must be positive")
	}
	if c.Security.UpdateSafetyLimit <= 0 || c.Security.DeleteSafetyLimit <= 0 {
		return fmt.Errorf("safety limits must be positive")
	}
	if c.Security.DefaultBatchSize <= 0 {
		return fmt.Errorf("security.default_batch_size must be positive")
	}
	if c.Security.MaxBulkRecords < c.Security.DefaultBatchSize {
		return fmt.Errorf("security.max_bulk_records (%d) is smaller than default_batch_size (%d)",
			c.Security.MaxBulkRecords, c.Security.DefaultBatchSize)
	}
	return nil
}
