package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, ingestion ports.IngestionService, retention ports.RetentionService, nonces NonceIssuer) http.Handler {
	if ingestion == nil {
		panic("handler.NewRouter: nil ingestion service")
	}
	if retention == nil {
		panic("handler.NewRouter: nil retention service")
	}
	if nonces == nil {
		panic("handler.NewRouter: nil nonce issuer")
	}

	h := NewHTTPHandler(ingestion, retention, nonces, cfg.BaseURL)
	mw := NewMiddleware(cfg)
	authHandler := NewAuthHandler(cfg)

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		success(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	r.Get("/auth/google/login", authHandler.Login)
	r.Get("/auth/google/callback", authHandler.Callback)
	r.Get("/auth/logout", authHandler.Logout)

	r.Route("/atf/v1", func(r chi.Router) {
		r.Get("/tracker-config", h.TrackerConfig)

		r.Group(func(r chi.Router) {
			if cfg.RateLimitEnabled {
				r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}
			r.Post("/track", h.Track)
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware)
			r.Get("/report", h.Report)
			r.Post("/retention", h.Retention)
		})
	})

	return r
}
