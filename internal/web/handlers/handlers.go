package handlers

import (
	"context"
	"database/sql"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/config"
	"github.com/shindakun/supportdesk/internal/metrics"
	"github.com/shindakun/supportdesk/internal/models"
	"github.com/shindakun/supportdesk/internal/version"
)

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	db             *sql.DB
	cfg            *config.Config
	authService    *auth.Service
	sessionManager *auth.SessionManager
	logger         *zap.Logger
	templates      map[string]*template.Template
	version        string
}

// New creates a new Handlers instance
func New(db *sql.DB, cfg *config.Config, authService *auth.Service, sessionManager *auth.SessionManager, logger *zap.Logger) (*Handlers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Handlers{
		db:             db,
		cfg:            cfg,
		authService:    authService,
		sessionManager: sessionManager,
		logger:         logger,
		templates:      templates,
		version:        version.GetVersion(),
	}, nil
}

// Landing sends visitors to their conversations, or to the login form via RequireAuth
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.cfg.Login.DefaultRedirect, http.StatusSeeOther)
}

// Conversations renders the agent's landing page (protected route)
func (h *Handlers) Conversations(w http.ResponseWriter, r *http.Request) {
	// Get session from context (set by RequireAuth middleware)
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok || session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := TemplateData{
		Title:   "Conversations",
		Session: session,
		Conversations: models.ConversationsPageData{
			Title:    "Conversations",
			Session:  session,
			Branding: h.cfg.Branding,
		},
	}

	if err := h.renderTemplate(w, r, "conversations", http.StatusOK, data); err != nil {
		h.logger.Error("failed to render conversations template", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Logout clears the session and returns to the login form
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ended, err := h.sessionManager.ClearSession(w, r)
	if err != nil {
		h.logger.Warn("failed to clear session", zap.Error(err))
	}
	if ended {
		metrics.RecordLogout()
	}

	target := "/login?" + url.Values{"status": {"logged_out"}}.Encode()
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Healthz reports whether the database is reachable
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status":  "ok",
		"version": h.version,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}

	writeJSON(w, status, body)
}

// ServeStatic serves the embedded static files
func (h *Handlers) ServeStatic() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(staticFiles()))
}

// sessionFromRequest prefers the session placed in the context by middleware
func (h *Handlers) sessionFromRequest(r *http.Request) (*models.Session, bool) {
	if session, ok := auth.GetSessionFromContext(r.Context()); ok && session != nil {
		return session, true
	}
	if h.sessionManager == nil {
		return nil, false
	}
	session, err := h.sessionManager.GetSession(r)
	if err != nil || session == nil || !session.IsActive() {
		return nil, false
	}
	return session, true
}

// clientIP returns the request's remote address without the port.
// chi's RealIP middleware has already applied X-Forwarded-For when enabled.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
