package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shindakun/supportdesk/internal/auth"
	"github.com/shindakun/supportdesk/internal/logging"
	"github.com/shindakun/supportdesk/internal/metrics"
	"github.com/shindakun/supportdesk/internal/storage"
	"github.com/shindakun/supportdesk/internal/web/handlers"
)

// sessionSweepInterval is how often expired session rows are removed
const sessionSweepInterval = 15 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `Start the HTTP server for the login form, conversations page and JSON API.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting supportdesk", zap.String("addr", cfg.GetAddr()))

	logger.Info("initializing database", zap.String("path", cfg.Database.Path))
	db, err := storage.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return err
	}
	defer db.Close()

	throttle, err := auth.NewThrottle(
		cfg.RateLimit.RequestsPerWindow,
		cfg.RateLimit.WindowDuration,
		cfg.RateLimit.Burst,
		cfg.RateLimit.TrackedClients,
	)
	if err != nil {
		return err
	}
	logger.Info("login throttle configured", zap.Stringer("throttle", throttle))

	authService := auth.NewService(db, auth.NewBcryptHasher(bcrypt.DefaultCost), throttle, auth.Options{
		LockoutThreshold: cfg.Login.LockoutThreshold,
		LockoutDuration:  cfg.Login.LockoutDuration,
		SessionTTL:       time.Duration(cfg.Session.MaxAge) * time.Second,
	}, logger.Named("auth"))

	sessionManager := auth.InitSessions(cfg.Session.Secret, cfg.Session.MaxAge, cfg.CookieSecure(), cfg.CookieSameSite(), authService)

	h, err := handlers.New(db, cfg, authService, sessionManager, logger.Named("http"))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      h.NewRouter(metrics.NewRegistry()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     logging.StdLogger(logger.Named("http")),
	}

	go sweepSessions(ctx, db, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("url", cfg.GetBaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exited")
	return nil
}

// sweepSessions deletes expired sessions until ctx is done
func sweepSessions(ctx context.Context, db *sql.DB, logger *zap.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := storage.DeleteExpiredSessions(db)
			if err != nil {
				logger.Warn("failed to delete expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("deleted expired sessions", zap.Int64("count", n))
			}
		}
	}
}
