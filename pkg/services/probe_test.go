package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-guard/pkg/config"
	"github.com/ekaya-inc/ekaya-guard/pkg/retry"
	sqlpkg "github.com/ekaya-inc/ekaya-guard/pkg/sql"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestProbeDefaults_RetriesUntilReachable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectClose()

	opens := 0
	connector := datasource.NewConnectorWithOpener(func(_, _ string) (*sql.DB, error) {
		opens++
		if opens == 1 {
			return nil, errors.New("dial tcp 10.0.0.5:3306: connect: connection refused")
		}
		return db, nil
	}, zap.NewNop())

	defaults := config.DatabasesConfig{
		MySQL: config.DatabaseConfig{Host: "10.0.0.5", Database: "app", User: "guard", Password: "pw"},
	}

	results := ProbeDefaults(context.Background(), defaults, connector, fastRetry(), zap.NewNop())

	require.Len(t, results, 1)
	assert.Equal(t, sqlpkg.DialectMySQL, results[0].Dialect)
	assert.True(t, results[0].Reachable)
	assert.Empty(t, results[0].Error)
	assert.NotContains(t, results[0].Target, "pw")
	assert.Equal(t, 2, opens)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProbeDefaults_PermanentFailureReported(t *testing.T) {
	opens := 0
	connector := datasource.NewConnectorWithOpener(func(_, _ string) (*sql.DB, error) {
		opens++
		return nil, errors.New("Error 1045: Access denied for user 'guard'")
	}, zap.NewNop())

	defaults := config.DatabasesConfig{
		MySQL: config.DatabaseConfig{Host: "db", Database: "app", User: "guard"},
	}

	results := ProbeDefaults(context.Background(), defaults, connector, fastRetry(), zap.NewNop())

	require.Len(t, results, 1)
	assert.False(t, results[0].Reachable)
	assert.Contains(t, results[0].Error, "Access denied")
	assert.Equal(t, 1, opens)
}

func TestProbeDefaults_SkipsUnconfiguredDialects(t *testing.T) {
	connector := datasource.NewConnectorWithOpener(func(_, _ string) (*sql.DB, error) {
		t.Fatal("no dialect is configured")
		return nil, nil
	}, zap.NewNop())

	results := ProbeDefaults(context.Background(), config.DatabasesConfig{}, connector, fastRetry(), zap.NewNop())
	assert.Empty(t, results)
}
