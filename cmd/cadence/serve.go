package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/handler"
	"github.com/dukerupert/cadence/internal/server"
)

const cleanupInterval = time.Hour

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	cfg := a.cfg

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	retry := handler.DefaultRetryPolicy
	retry.MaxRetries = cfg.ConflictRetries

	srv := server.New(db, server.Options{
		Version:        Version,
		Location:       cfg.Location(),
		JWTSecret:      cfg.JWTSecret,
		SessionTTL:     cfg.SessionTTL,
		Retry:          retry,
		OriginPatterns: cfg.OriginPatterns,
		AuthRateLimit:  cfg.AuthRateLimit,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(ctx); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				if n := srv.RateLimiter().Cleanup(); n > 0 {
					logger.Debug("cleaned up rate limiter", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if a.cfg.Backup.S3.Enabled() && a.cfg.Backup.Interval > 0 {
		svc, err := a.backupService(db)
		if err != nil {
			return err
		}
		go svc.Schedule(ctx, a.cfg.Backup.Interval, a.cfg.Backup.Retention)
		logger.Info("scheduled backups", "interval", a.cfg.Backup.Interval, "bucket", a.cfg.Backup.S3.Bucket)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cadence starting", "addr", httpServer.Addr, "version", Version, "timezone", cfg.Location().String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
