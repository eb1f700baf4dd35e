package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/config"
	"github.com/shindakun/supportdesk/internal/storage"
	webmiddleware "github.com/shindakun/supportdesk/internal/web/middleware"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestCSRFTokenGeneration verifies that CSRF middleware generates a token per client
func TestCSRFTokenGeneration(t *testing.T) {
	csrfMiddleware := webmiddleware.CSRFProtection(testSecret, false, "")

	var tokens []string
	handler := csrfMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, csrf.Token(r))
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/login", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
	}

	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		t.Fatalf("Expected two tokens, got %v", tokens)
	}
	if len(tokens[0]) < 20 {
		t.Errorf("CSRF token too short: got %d bytes", len(tokens[0]))
	}
	if tokens[0] == tokens[1] {
		t.Error("Expected different tokens for different clients")
	}
}

// TestCSRFProtectsForms verifies form posts need a token while API posts do not
func TestCSRFProtectsForms(t *testing.T) {
	handler := webmiddleware.CSRFProtection(testSecret, false, "csrf_token")(okHandler())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "form post without token", path: "/login", status: http.StatusForbidden},
		{name: "api post without token", path: "/api/v1/sessions", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader("email=a"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

// TestCSRFFailureHandler verifies custom failure handler output
func TestCSRFFailureHandler(t *testing.T) {
	t.Run("HTMX request gets HTML fragment", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/login", nil)
		req.Header.Set("HX-Request", "true")
		w := httptest.NewRecorder()

		webmiddleware.CSRFFailureHandler(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "<div") || !strings.Contains(body, "Security Error") {
			t.Errorf("Expected HTML security error fragment, got: %s", body)
		}
	})

	t.Run("Regular request gets plain error", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/login", nil)
		w := httptest.NewRecorder()

		webmiddleware.CSRFFailureHandler(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "expired") {
			t.Errorf("Expected expiry message, got: %s", w.Body.String())
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		wantHSTS bool
	}{
		{name: "https sets HSTS", baseURL: "https://desk.example.com", wantHSTS: true},
		{name: "http omits HSTS", baseURL: "http://localhost:8080", wantHSTS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Server.BaseURL = tt.baseURL

			w := httptest.NewRecorder()
			webmiddleware.SecurityHeaders(cfg)(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/login", nil))

			if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
				t.Errorf("Expected X-Frame-Options DENY, got %q", got)
			}
			if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("Expected nosniff, got %q", got)
			}
			if hasHSTS := w.Header().Get("Strict-Transport-Security") != ""; hasHSTS != tt.wantHSTS {
				t.Errorf("Expected HSTS present=%v, got %v", tt.wantHSTS, hasHSTS)
			}
		})
	}
}

func TestNoStore(t *testing.T) {
	w := httptest.NewRecorder()
	webmiddleware.NoStore(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/login", nil))
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected no-store, got %q", got)
	}
}

func TestLoginURL(t *testing.T) {
	tests := []struct {
		returnTo string
		want     string
	}{
		{returnTo: "", want: "/login"},
		{returnTo: "/", want: "/login"},
		{returnTo: "/login", want: "/login"},
		{returnTo: "/conversations", want: "/login?redirect=%2Fconversations"},
		{returnTo: "/conversations?status=open", want: "/login?redirect=%2Fconversations%3Fstatus%3Dopen"},
	}

	for _, tt := range tests {
		t.Run(tt.returnTo, func(t *testing.T) {
			if got := webmiddleware.LoginURL(tt.returnTo); got != tt.want {
				t.Errorf("LoginURL(%q) = %q, want %q", tt.returnTo, got, tt.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	svc := auth.NewService(db, auth.NewBcryptHasher(bcrypt.MinCost), nil, auth.Options{}, nil)
	sm := auth.InitSessions(string(testSecret), 3600, false, http.SameSiteLaxMode, svc)

	ctx := context.Background()
	if _, err := svc.Register(ctx, "agent@example.com", "pw", "Agent"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	session, err := svc.Login(ctx, "agent@example.com", "pw", "", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	var seenUser string
	protected := webmiddleware.RequireAuth(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := auth.GetSessionFromContext(r.Context()); ok {
			seenUser = s.UserID
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("redirects anonymous users with return path", func(t *testing.T) {
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, httptest.NewRequest("GET", "/conversations?status=open", nil))

		if w.Code != http.StatusSeeOther {
			t.Fatalf("Expected 303, got %d", w.Code)
		}
		if got := w.Header().Get("Location"); got != "/login?redirect=%2Fconversations%3Fstatus%3Dopen" {
			t.Errorf("Unexpected Location: %s", got)
		}
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/conversations", nil)
		req.Header.Set("HX-Request", "true")
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Expected 401, got %d", w.Code)
		}
		if got := w.Header().Get("HX-Redirect"); got != "/login?redirect=%2Fconversations" {
			t.Errorf("Unexpected HX-Redirect: %s", got)
		}
	})

	t.Run("passes signed-in users through", func(t *testing.T) {
		cookieRec := httptest.NewRecorder()
		if err := sm.SaveSession(cookieRec, httptest.NewRequest("POST", "/login", nil), session); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		req := httptest.NewRequest("GET", "/conversations", nil)
		for _, c := range cookieRec.Result().Cookies() {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if seenUser != session.UserID {
			t.Errorf("Expected session in context for %s, got %q", session.UserID, seenUser)
		}
	})
}

func TestMaxBytesMiddleware(t *testing.T) {
	handler := webmiddleware.MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/login", strings.NewReader("email=agent%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}
}

func TestErrorHandlerRecovers(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	var rendered int

	handler := webmiddleware.ErrorHandler(zap.New(core), func(w http.ResponseWriter, r *http.Request, status int) {
		rendered = status
		w.WriteHeader(status)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/conversations", nil))

	if w.Code != http.StatusInternalServerError || rendered != http.StatusInternalServerError {
		t.Errorf("Expected 500 page, got code %d rendered %d", w.Code, rendered)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("Expected panic to be logged")
	}
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := webmiddleware.LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("Expected warn level for 404, got %s", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/missing" || fields["status"] != int64(http.StatusNotFound) {
		t.Errorf("Unexpected fields: %v", fields)
	}
}

// BenchmarkSecurityHeaders measures the overhead of SecurityHeaders middleware
func BenchmarkSecurityHeaders(b *testing.B) {
	cfg := config.Default()
	cfg.Server.BaseURL = "https://desk.example.com"

	wrappedHandler := webmiddleware.SecurityHeaders(cfg)(okHandler())
	req := httptest.NewRequest("GET", "/login", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrappedHandler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
