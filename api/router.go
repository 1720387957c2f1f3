// Package api assembles the HTTP surface: task lifecycle endpoints,
// the per-task progress stream and health probes.
package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lumifin/autopilot/api/handlers"
	"github.com/lumifin/autopilot/internal/metrics"
	"github.com/lumifin/autopilot/pipeline"
	"github.com/lumifin/autopilot/registry"
)

// Deps carries the wired components the routes are built from.
type Deps struct {
	Registry registry.Registry
	Runner   *pipeline.Runner
	Metrics  *metrics.Collector // optional
	Logger   *zap.Logger

	// HealthChecks feed the readiness probe, e.g. an engine ping.
	HealthChecks []handlers.HealthCheck
}

// NewRouter builds the service mux.
func NewRouter(deps Deps) *http.ServeMux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	taskHandler := handlers.NewTaskHandler(deps.Registry, deps.Runner, deps.Metrics, logger)
	streamHandler := handlers.NewStreamHandler(deps.Registry, deps.Runner.Hub(), logger)
	healthHandler := handlers.NewHealthHandler(logger)
	for _, check := range deps.HealthChecks {
		healthHandler.RegisterCheck(check)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/tasks", taskHandler.HandleCreateTask)
	mux.HandleFunc("GET /api/v1/tasks", taskHandler.HandleListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", taskHandler.HandleGetTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", taskHandler.HandleDeleteTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}/stream", streamHandler.HandleStream)

	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReady)

	return mux
}
