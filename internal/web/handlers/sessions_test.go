package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/config"
	"github.com/shindakun/supportdesk/internal/metrics"
	"github.com/shindakun/supportdesk/internal/storage"
	"github.com/shindakun/supportdesk/internal/web/handlers"
)

func TestLogoutSessionGauge(t *testing.T) {
	app := newTestApp(t, nil, nil)
	before := testutil.ToFloat64(metrics.ActiveSessions)

	// Signing out without a session ends nothing
	for i := 0; i < 3; i++ {
		app.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
	}
	app.do(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions", nil))
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != before {
		t.Fatalf("Expected gauge to stay at %v after anonymous logouts, got %v", before, got)
	}

	login := app.do(postForm("/login", url.Values{"email": {testEmail}, "password": {testPassword}}))
	if login.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d", login.Code)
	}
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != before+1 {
		t.Fatalf("Expected gauge %v after login, got %v", before+1, got)
	}

	app.do(withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), login))
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != before {
		t.Fatalf("Expected gauge %v after logout, got %v", before, got)
	}

	// Replaying the old cookie finds no session row
	app.do(withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), login))
	if got := testutil.ToFloat64(metrics.ActiveSessions); got != before {
		t.Errorf("Expected gauge %v after replayed logout, got %v", before, got)
	}
}

// hookLogger returns a debug-level logger that calls fn for every entry
func hookLogger(fn func(zapcore.Entry)) *zap.Logger {
	core, _ := observer.New(zapcore.DebugLevel)
	return zap.New(core, zap.Hooks(func(e zapcore.Entry) error {
		fn(e)
		return nil
	}))
}

func TestLoginSubmitClientGoneDiscardsSession(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Secret = "test-secret-key-32-bytes-long!!!"
	cfg.Server.Security.CSRFEnabled = false

	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reqCtx, cancelRequest := context.WithCancel(context.Background())
	defer cancelRequest()

	// The handler logs this once it has unmounted the form
	unmounted := make(chan struct{})
	var once sync.Once
	handlerLogger := hookLogger(func(e zapcore.Entry) {
		if e.Message == "client went away during login" {
			once.Do(func() { close(unmounted) })
		}
	})

	// The session row exists by the time this is logged. Drop the client, then let Login
	// return only after the form is gone.
	authLogger := hookLogger(func(e zapcore.Entry) {
		if e.Message != "login succeeded" {
			return
		}
		cancelRequest()
		select {
		case <-unmounted:
		case <-time.After(5 * time.Second):
		}
	})

	svc := auth.NewService(db, auth.NewBcryptHasher(bcrypt.MinCost), nil, auth.Options{}, authLogger)
	if _, err := svc.Register(context.Background(), testEmail, testPassword, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	sm := auth.InitSessions(cfg.Session.Secret, cfg.Session.MaxAge, false, cfg.CookieSameSite(), svc)

	h, err := handlers.New(db, cfg, svc, sm, handlerLogger)
	if err != nil {
		t.Fatalf("handlers.New failed: %v", err)
	}
	router := h.NewRouter(nil)

	staleBefore := testutil.ToFloat64(metrics.StaleLoginResults)
	activeBefore := testutil.ToFloat64(metrics.ActiveSessions)

	req := postForm("/login", url.Values{"email": {testEmail}, "password": {testPassword}}).WithContext(reqCtx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	select {
	case <-unmounted:
	default:
		t.Fatal("Expected the handler to unmount the form")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("Expected no session cookie for a client that went away")
	}

	// Cleanup runs after the handler has returned
	deadline := time.Now().Add(5 * time.Second)
	for {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
			t.Fatalf("Failed to count sessions: %v", err)
		}
		stale := testutil.ToFloat64(metrics.StaleLoginResults) - staleBefore
		active := testutil.ToFloat64(metrics.ActiveSessions)
		if count == 0 && stale == 1 && active == activeBefore {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected orphan session removed: sessions=%d stale=%v active=%v (want %v)", count, stale, active, activeBefore)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
