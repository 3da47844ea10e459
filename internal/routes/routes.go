package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"crashwatch/internal/handlers"
	"crashwatch/internal/logger"
	"crashwatch/internal/metrics"
	"crashwatch/internal/pipeline"
	"crashwatch/internal/ws"
)

// Setup registers the WebSocket endpoints, metrics and health check.
func Setup(dispatcher *pipeline.Dispatcher, orch *pipeline.Orchestrator, hub *ws.Hub, met *metrics.Metrics, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/camera", handlers.CameraSocketHandler(dispatcher, log))
	r.Get("/api/operator", handlers.OperatorSocketHandler(orch, hub, log))

	r.Handle("/metrics", met.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
