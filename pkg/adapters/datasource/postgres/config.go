package postgres

import (
	"net"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "prefer", "require", "verify-ca", "verify-full"
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "prefer"
}

// FromParams creates a Config from normalized connection params. The ssl_mode
// (or sslmode) option selects the SSL mode.
func FromParams(p datasource.ConnParams) *Config {
	host, port := p.Address(sqlpkg.DialectPostgres)
	return &Config{
		Host:     host,
		Port:     port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
		SSLMode:  p.Option("ssl_mode", p.Option("sslmode", DefaultSSLMode())),
	}
}

// ConnectionString builds a PostgreSQL URL. Credentials go through url.UserPassword
// and the database is a path segment, so characters such as @, /, # and spaces
// survive the round trip.
func (c *Config) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}
	u := &url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}
