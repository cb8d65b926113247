package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/governance-gateway/app"
	appmiddleware "github.com/upb/governance-gateway/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(appmiddleware.RequestLogger(deps.RequestLogger))
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// Decision pipeline
	r.Group(func(r chi.Router) {
		r.Use(deps.CredentialMiddleware.ExtractAPIKey)
		r.Post("/v1/check", deps.CheckHandler.HandleCheck)
		r.Post("/api/evaluate", deps.CheckHandler.HandleEvaluate)
	})

	// Quota status for the presented credential
	r.Group(func(r chi.Router) {
		r.Use(deps.CredentialMiddleware.RequireIdentity)
		r.Get("/v1/quota", deps.CheckHandler.HandleQuotaStatus)
	})

	// Debug surfaces (authenticated)
	r.Route("/debug", func(r chi.Router) {
		r.Use(deps.CredentialMiddleware.RequireIdentity)
		r.Get("/audit/queue", deps.DebugHandler.HandleAuditQueue)
		r.Get("/metrics", deps.DebugHandler.HandleMetrics)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
