package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/robert-malhotra/waterwatch/internal/metrics"
)

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(h *Handlers, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Add middleware stack
	r.Use(middleware.RequestID)
	r.Use(RequestIDResponse) // Add X-Request-ID to response headers
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	if h.cfg.Metrics.Enabled {
		r.Use(metrics.Middleware)
	}
	r.Use(middleware.Compress(5)) // Gzip compression

	// Health check endpoint
	r.Get("/health", h.Health)

	if h.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	// Form pages
	r.Get("/", h.Index)
	r.Post("/", h.Submit)
	r.Handle("/static/*", Static())

	// Artifacts
	r.Get("/map", h.LatestMap)
	r.Get("/map/{token}", h.Map)
	r.Get("/download", h.LatestDownload)
	r.Get("/download/{token}", h.Download)

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300, // 5 minutes
		}))

		r.Get("/variants", h.Variants)
		r.Post("/water-bodies", h.WaterBodies)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "endpoint not found")
	})

	// 405 handler
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	return r
}
