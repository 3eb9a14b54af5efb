package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gambtho/container-assist/internal/api/handlers"
	"github.com/gambtho/container-assist/internal/api/middleware"
	"github.com/gambtho/container-assist/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Operations
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", h.ListOperations)
			r.Route("/{operation}", func(r chi.Router) {
				r.Post("/execute", h.ExecuteOperation)
				r.Get("/health", h.OperationHealth)
				r.Route("/config", func(r chi.Router) {
					r.Get("/", h.GetConfig)
					r.Patch("/", h.UpdateConfig)
					r.Delete("/", h.ResetConfig)
				})
			})
		})

		// Config audit trail
		r.Get("/config/audit", h.ConfigAudit)

		// Published resources
		r.Get("/resources", h.ReadResource)

		// Sessions
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
		})

		// Notification channels
		r.Post("/channels", h.RegisterChannel)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "container-assist",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "container-assist",
		})
	}
}
