package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/shindakun/supportdesk/internal/models"
)

//go:embed templates
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// pages are rendered inside layouts/base.html
var pages = []string{"login", "register", "conversations", "error"}

// TemplateData holds common data passed to templates
type TemplateData struct {
	Title         string
	Status        int    // HTTP status for the error page
	StatusText    string // Human readable status for the error page
	Session       *models.Session
	Login         models.LoginPageData
	DisplayName   string // Repopulates the name field on the registration form
	Conversations models.ConversationsPageData
	Branding      models.Branding
	Version       string
	CSRFToken     string        // CSRF token for HTMX requests
	CSRFField     template.HTML // Hidden input carrying the CSRF token
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"displayName": func(s *models.Session) string {
			if s == nil {
				return ""
			}
			if name := strings.TrimSpace(s.DisplayName); name != "" {
				return name
			}
			return s.Email
		},
		"year": func() int {
			return time.Now().Year()
		},
	}
}

// parseTemplates builds one template set per page, each with the base layout
func parseTemplates() (map[string]*template.Template, error) {
	set := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS,
			"templates/layouts/base.html",
			"templates/pages/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		set[page] = tmpl
	}
	return set, nil
}

// staticFiles returns the embedded static directory
func staticFiles() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists
		panic(err)
	}
	return http.FS(sub)
}

// renderTemplate renders a page with the base layout
func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request, page string, status int, data TemplateData) error {
	tmpl, ok := h.templates[page]
	if !ok {
		return fmt.Errorf("unknown template %q", page)
	}

	if h.cfg.Server.Security.CSRFEnabled {
		data.CSRFToken = csrf.Token(r)
		data.CSRFField = csrf.TemplateField(r)
	}
	data.Branding = h.cfg.Branding
	data.Version = h.version

	// Render into a buffer so a template error can still become a clean 500
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
	}
	_, err := w.Write([]byte(buf.String()))
	return err
}

// RenderError renders the error page for status
func (h *Handlers) RenderError(w http.ResponseWriter, r *http.Request, status int) {
	session, _ := h.sessionFromRequest(r)
	data := TemplateData{
		Title:      http.StatusText(status),
		Status:     status,
		StatusText: http.StatusText(status),
		Session:    session,
	}
	if err := h.renderTemplate(w, r, "error", status, data); err != nil {
		h.logger.Error("failed to render error page", zap.Int("status", status), zap.Error(err))
		http.Error(w, http.StatusText(status), status)
	}
}
