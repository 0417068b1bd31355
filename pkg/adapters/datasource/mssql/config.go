package mssql

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// Config contains SQL Server-specific connection options. Only SQL authentication
// is supported.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromParams creates a Config from normalized connection params. Recognized options:
// encrypt, trust_server_certificate, connection_timeout.
func FromParams(p datasource.ConnParams) (*Config, error) {
	host, port := p.Address(sqlpkg.DialectMSSQL)
	cfg := &Config{
		Host:              host,
		Port:              port,
		Database:          p.Database,
		Username:          p.User,
		Password:          p.Password,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	// Support string values: "true", "false", "strict"
	switch encrypt := strings.ToLower(p.Option("encrypt", "true")); encrypt {
	case "true", "strict", "yes":
		cfg.Encrypt = true
	case "false", "no", "disable":
		cfg.Encrypt = false
	default:
		return nil, fmt.Errorf("invalid encrypt option %q", encrypt)
	}

	cfg.TrustServerCertificate = strings.EqualFold(p.Option("trust_server_certificate", "false"), "true")

	if raw := p.Option("connection_timeout", ""); raw != "" {
		timeout, err := strconv.Atoi(raw)
		if err != nil || timeout < 0 {
			return nil, fmt.Errorf("invalid connection_timeout %q", raw)
		}
		cfg.ConnectionTimeout = timeout
	}

	return cfg, nil
}

// ConnectionString builds a sqlserver:// URL for go-mssqldb.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)

	if c.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}

	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}

	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		query.Encode(),
	)
}
