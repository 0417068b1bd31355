package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-guard/pkg/adapters/datasource"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status    string                             `json:"status"`
	Version   string                             `json:"version"`
	Service   string                             `json:"service"`
	GoVersion string                             `json:"go_version"`
	Hostname  string                             `json:"hostname"`
	Databases []datasource.DatasourceAdapterInfo `json:"databases"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{version: version, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests. It never touches a database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns service information including version and the compiled-in database adapters.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:    "ok",
		Version:   h.version,
		Service:   "ekaya-guard",
		GoVersion: runtime.Version(),
		Hostname:  hostname,
		Databases: datasource.RegisteredAdapters(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// RegisterMetricsRoute exposes the Prometheus registry at GET /metrics.
func RegisterMetricsRoute(mux *http.ServeMux, handler http.Handler) {
	mux.Handle("GET /metrics", handler)
}
