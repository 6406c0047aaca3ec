package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/devportal/app"
	"github.com/upb/devportal/middleware"
	"github.com/upb/devportal/utils"
)

// HealthPaths are served without authentication for load balancer probes
var HealthPaths = []string{"/", "/health", "/healthz", "/api/health", "/app/health"}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Instrument(deps.Metrics))
	r.Use(middleware.Recoverer(deps.Logger))
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// Health check endpoints
	for _, path := range HealthPaths {
		r.Get(path, deps.HealthHandler.HandleHealth)
		r.Head(path, deps.HealthHandler.HandleHealth)
	}
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Authenticated API
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Get("/metrics", deps.MetricsHandler.HandleMetrics)

		r.Get("/logs", deps.LogsHandler.HandleLogs)
		r.Get("/logs/queries/{queryId}", deps.LogsHandler.HandleQueryStatus)

		r.Get("/docs", deps.DocsHandler.HandleDocs)
		r.Get("/docs/*", deps.DocsHandler.HandleDocs)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
