package datasource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-guard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

// ConnParams are normalized connection parameters for one dialect.
type ConnParams struct {
	Server   string
	Port     int
	Database string
	User     string
	Password string

	// Options carries the remaining dialect-specific keys (ssl_mode, encrypt, ...),
	// lowercased, with values stringified.
	Options map[string]string
}

// Option returns a dialect option or def when it is unset.
func (p ConnParams) Option(key, def string) string {
	if v, ok := p.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Address returns host:port, filling the dialect's default port when none is set.
// Loopback hosts are rewritten when running inside Docker.
func (p ConnParams) Address(d sqlpkg.Dialect) (string, int) {
	port := p.Port
	if port == 0 {
		port = d.DefaultPort()
	}
	return config.ResolveDatabaseHost(p.Server), port
}

// String never includes the password.
func (p ConnParams) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", p.User, p.Server, p.Port, p.Database)
}

var canonicalParams = map[string]bool{
	"server": true, "database": true, "user": true, "password": true, "port": true, "driver": true,
}

var paramAliases = map[string]string{
	"host":     "server",
	"db":       "database",
	"dbname":   "database",
	"username": "user",
	"pass":     "password",
}

// ParseConnParams normalizes caller-supplied parameters. Aliases are folded onto the
// canonical keys (host→server, db|dbname→database). Server and database are required.
// The "driver" key is accepted and ignored: every dialect has exactly one Go driver.
func ParseConnParams(raw map[string]any) (ConnParams, error) {
	norm := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := paramAliases[key]; ok {
			if _, set := raw[canonical]; set {
				continue
			}
			key = canonical
		}
		norm[key] = v
	}

	p := ConnParams{
		Server:   stringParam(norm["server"]),
		Database: stringParam(norm["database"]),
		User:     stringParam(norm["user"]),
		Password: stringParam(norm["password"]),
	}
	if p.Server == "" {
		return ConnParams{}, apperrors.NewSpecValidationError("conn_params.server", "server is required")
	}
	if p.Database == "" {
		return ConnParams{}, apperrors.NewSpecValidationError("conn_params.database", "database is required")
	}

	port, err := portParam(norm["port"])
	if err != nil {
		return ConnParams{}, err
	}
	p.Port = port

	for k, v := range norm {
		if canonicalParams[k] {
			continue
		}
		if p.Options == nil {
			p.Options = make(map[string]string)
		}
		p.Options[k] = stringParam(v)
	}
	return p, nil
}

// ResolveConnParams returns the caller's parameters when they are usable, otherwise
// the environment defaults for the dialect.
func ResolveConnParams(raw map[string]any, dialect sqlpkg.Dialect, defaults config.DatabasesConfig) (ConnParams, error) {
	if len(raw) > 0 {
		if p, err := ParseConnParams(raw); err == nil {
			return p, nil
		}
	}

	env := defaults.For(dialect)
	if !env.IsSet() {
		return ConnParams{}, apperrors.NewSpecValidationError("conn_params",
			"no usable connection parameters given and no %s defaults configured", dialect)
	}
	return ConnParams{
		Server:   env.Host,
		Port:     env.Port,
		Database: env.Database,
		User:     env.User,
		Password: env.Password,
	}, nil
}

func stringParam(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// portParam accepts JSON numbers (float64), ints and numeric strings.
func portParam(v any) (int, error) {
	var port int
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		port = int(val)
	case int:
		port = val
	case int64:
		port = int(val)
	case string:
		if val == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, apperrors.NewSpecValidationError("conn_params.port", "invalid port %q", val)
		}
		port = n
	default:
		return 0, apperrors.NewSpecValidationError("conn_params.port", "invalid port type %T", v)
	}
	if port < 0 || port > 65535 {
		return 0, apperrors.NewSpecValidationError("conn_params.port", "port %d out of range", port)
	}
	return port, nil
}
