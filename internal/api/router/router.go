package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/charter-notify/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/charter-notify/internal/http/middleware"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unregistered.
type Config struct {
	Logger             *logging.Logger
	Dispatch           *handlers.DispatchHandler
	Logs               *handlers.LogsHandler
	Templates          *handlers.TemplatesHandler
	Inbound            *handlers.InboundHandler
	HealthChecks       map[string]handlers.HealthCheck
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Inbound != nil {
			public.Post("/webhooks/twilio/inbound", cfg.Inbound.TwilioInbound)
		}
	})

	r.Route("/v1/sites/{siteID}", func(site chi.Router) {
		site.Use(httpmiddleware.RequireSite)
		if cfg.Dispatch != nil {
			site.Post("/dispatch", cfg.Dispatch.Dispatch)
			site.Post("/campaigns", cfg.Dispatch.Campaign)
		}
		if cfg.Logs != nil {
			site.Get("/logs", cfg.Logs.List)
			site.Post("/logs/export", cfg.Logs.Export)
		}
		if cfg.Templates != nil {
			site.Get("/templates", cfg.Templates.Get)
			site.Put("/templates", cfg.Templates.Put)
		}
	})

	return r
}
