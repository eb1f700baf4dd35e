package handlers

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shindakun/supportdesk/internal/metrics"
	webmiddleware "github.com/shindakun/supportdesk/internal/web/middleware"
)

// NewRouter wires every route and the global middleware stack.
// reg may be nil to leave /metrics unmounted.
func (h *Handlers) NewRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(webmiddleware.LoggingMiddleware(h.logger))
	r.Use(webmiddleware.ErrorHandler(h.logger, h.RenderError))
	r.Use(webmiddleware.SecurityHeaders(h.cfg))
	r.Use(webmiddleware.MaxBytesMiddleware(h.cfg.Server.Security.MaxRequestBytes))
	r.Use(middleware.Timeout(60 * time.Second))
	if h.cfg.Server.Security.CSRFEnabled {
		r.Use(webmiddleware.CSRFProtection(csrfKey(h.cfg.Session.Secret), h.cfg.CookieSecure(), h.cfg.Server.Security.CSRFFieldName))
	}

	// Public routes
	r.Get("/", h.Landing)
	r.Get("/healthz", h.Healthz)
	if reg != nil {
		r.Handle("/metrics", metrics.Handler(reg))
	}

	r.Group(func(r chi.Router) {
		r.Use(webmiddleware.NoStore)
		r.Get("/login", h.LoginForm)
		r.Post("/login", h.LoginSubmit)
		r.Get("/logout", h.Logout)

		if h.cfg.Branding.RegistrationEnabled {
			r.Get("/register", h.RegisterForm)
			r.Post("/register", h.RegisterSubmit)
		}
	})

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(webmiddleware.NoStore)
		r.Post("/sessions", h.APICreateSession)
		r.Delete("/sessions", h.APIDeleteSession)
		r.Get("/me", h.APIMe)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(webmiddleware.RequireAuth(h.sessionManager))
		r.Use(webmiddleware.NoStore)
		r.Get("/conversations", h.Conversations)
	})

	// Static files
	r.Handle("/static/*", h.ServeStatic())

	// 404 handler (must be last)
	r.NotFound(webmiddleware.NotFoundHandler(h.RenderError))

	return r
}

// csrfKey derives the 32-byte CSRF key from the session secret
func csrfKey(secret string) []byte {
	sum := sha256.Sum256([]byte("supportdesk-csrf:" + secret))
	return sum[:]
}
