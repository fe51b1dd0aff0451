package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dronewatch/internal/platform/metrics"
	"dronewatch/pkg/platform/middleware/metadata"
	"dronewatch/pkg/platform/middleware/request"
	"dronewatch/pkg/platform/middleware/requesttime"
	"dronewatch/pkg/platform/middleware/secret"
)

// Register mounts the API endpoints. /nfz sits behind the shared secret.
func (h *Handler) Register(r chi.Router, nfzSecret string) {
	r.Get("/", h.HandleRoot)
	r.Get("/health", h.HandleHealth)
	r.Get("/drones", h.HandleDrones)
	r.With(secret.RequireSecret(nfzSecret, h.logger)).Get("/nfz", h.HandleViolations)
}

// NewRouter builds the full middleware chain around h. httpMetrics may be nil.
func NewRouter(h *Handler, nfzSecret string, httpMetrics *metrics.HTTP, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{request.HeaderRequestID},
		MaxAge:         300,
	}))
	r.Use(httpMetrics.Middleware)

	h.Register(r, nfzSecret)
	if httpMetrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}
