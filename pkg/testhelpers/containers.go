package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver for the readiness check
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-guard/pkg/retry"
)

// Container images used by the integration tests.
const (
	PostgresImage = "postgres:16-alpine"
	MySQLImage    = "mysql:8.4"
)

const (
	testDatabase = "guard_test"
	testUser     = "guard"
	testPassword = "test_password"
)

// TestDB describes a running database container.
type TestDB struct {
	Container testcontainers.Container
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
}

// ConnParams returns the tool-style connection parameters for this database.
func (db *TestDB) ConnParams() map[string]any {
	return map[string]any{
		"server":   db.Host,
		"port":     db.Port,
		"database": db.Database,
		"user":     db.User,
		"password": db.Password,
	}
}

type sharedDB struct {
	once sync.Once
	db   *TestDB
	err  error
}

var (
	sharedPostgres sharedDB
	sharedMySQL    sharedDB
)

// GetPostgresDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetPostgresDB(t *testing.T) *TestDB {
	t.Helper()
	return sharedPostgres.get(t, setupPostgres)
}

// GetMySQLDB returns a shared MySQL container for integration tests.
func GetMySQLDB(t *testing.T) *TestDB {
	t.Helper()
	return sharedMySQL.get(t, setupMySQL)
}

func (s *sharedDB) get(t *testing.T, setup func(ctx context.Context) (*TestDB, error)) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	s.once.Do(func() {
		s.db, s.err = setup(context.Background())
	})
	if s.err != nil {
		t.Fatalf("Failed to setup test database: %v", s.err)
	}
	return s.db
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (*TestDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &TestDB{
		Container: container,
		Host:      host,
		Port:      mapped.Int(),
		Database:  testDatabase,
		User:      testUser,
		Password:  testPassword,
	}, nil
}

func setupPostgres(ctx context.Context) (*TestDB, error) {
	db, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		db.User, db.Password, db.Host, db.Port, db.Database)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := retry.Do(ctx, nil, func() error { return pool.Ping(ctx) }); err != nil {
		return nil, fmt.Errorf("postgres never became ready: %w", err)
	}
	return db, nil
}

func setupMySQL(ctx context.Context) (*TestDB, error) {
	db, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
			"MYSQL_ROOT_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").
			WithStartupTimeout(120 * time.Second),
	}, "3306")
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", db.User, db.Password, db.Host, db.Port, db.Database)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	defer sqlDB.Close()

	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 10
	if err := retry.Do(ctx, cfg, func() error { return sqlDB.PingContext(ctx) }); err != nil {
		return nil, fmt.Errorf("mysql never became ready: %w", err)
	}
	return db, nil
}
