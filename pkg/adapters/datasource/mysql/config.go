package mysql

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "", "true", "false", "skip-verify", "preferred"
}

// FromParams creates a Config from normalized connection params. The tls option is
// passed through to the driver.
func FromParams(p datasource.ConnParams) *Config {
	host, port := p.Address(sqlpkg.DialectMySQL)
	return &Config{
		Host:     host,
		Port:     port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
		TLS:      p.Option("tls", ""),
	}
}

// ConnectionString builds a go-sql-driver DSN. The driver handles escaping.
func (c *Config) ConnectionString() string {
	dsn := mysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.TLSConfig = c.TLS
	return dsn.FormatDSN()
}
