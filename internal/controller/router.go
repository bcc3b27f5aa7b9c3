package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/config"
	"github.com/ultimathule1/Event-Manager/internal/infrastructure/observability"
	customMW "github.com/ultimathule1/Event-Manager/internal/middleware"
)

type RouterDeps struct {
	Checks   []ReadinessCheck
	CancelUC EventCanceller
	// Metrics is nil when metrics are disabled; /metrics is then not served.
	Metrics  *observability.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer  prometheus.Gatherer
	OpsConfig config.OpsConfig
	JWTSecret string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Checks...)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.Metrics != nil {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	if deps.CancelUC != nil && deps.JWTSecret != "" {
		eventH := NewEventController(deps.CancelUC)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   deps.OpsConfig.CORS.AllowedOrigins,
				AllowedMethods:   []string{"POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
				AllowCredentials: deps.OpsConfig.CORS.AllowCredentials,
				MaxAge:           300,
			}))
			if deps.OpsConfig.RateLimitPerMinute > 0 {
				r.Use(customMW.RateLimit(deps.OpsConfig.RateLimitPerMinute))
			}
			r.Use(customMW.RequireAuth(deps.JWTSecret))

			r.Post("/events/{id}/cancel", eventH.Cancel)
		})
	}

	return r
}
