package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/loomlabs/loom/internal/api/middleware"
	"github.com/loomlabs/loom/internal/handlers"
)

// NewRouter creates and configures the HTTP router. redisClient is
// optional; without it rate limiting is disabled.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger)
		r.Use(limiter.Middleware)
	}

	// CORS - allow all origins (clients call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/threads", func(r chi.Router) {
			r.Post("/", h.CreateThread)
			r.Get("/", h.ListThreads)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetThread)
				r.Patch("/", h.UpdateThread)
				r.Post("/messages", h.SendMessage)
				r.Get("/messages", h.GetMessages)
				r.Get("/summaries", h.ListSummaries)
				r.Get("/summaries/latest", h.LatestSummary)
				r.Post("/summaries", h.GenerateSummary)
			})
		})

		r.Post("/collaborate", h.Collaborate)
		r.Get("/agents", h.ListAgents)
		r.Put("/agents/{role}", h.UpdateAgent)

		r.Get("/usage/summary", h.UsageSummary)
		r.Get("/models", h.ListModels)
	})

	return r
}
