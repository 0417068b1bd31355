package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-guard/pkg/metrics"
)

func TestHealthHandler_Health(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler("test-version", zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthHandler_Ping(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler("1.2.3", zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.2.3", response.Version)
	assert.Equal(t, "ekaya-guard", response.Service)
	assert.NotEmpty(t, response.GoVersion)

	types := make([]string, 0, len(response.Databases))
	for _, db := range response.Databases {
		types = append(types, db.Type)
	}
	assert.Contains(t, types, "postgres")
}

func TestHealthHandler_RejectsPost(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler("1.2.3", zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegisterMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.ObserveGuardTrip("DELETE", metrics.TripConfirmation)

	mux := http.NewServeMux()
	RegisterMetricsRoute(mux, m.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ekaya_guard_guard_trips_total{operation="DELETE",reason="confirmation_mismatch"} 1`)
}
