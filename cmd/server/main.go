package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/adapters"
	"github.com/ZanzyTHEbar/gitfolio/internal/config"
	"github.com/ZanzyTHEbar/gitfolio/internal/monitoring"
	"github.com/ZanzyTHEbar/gitfolio/internal/resilience"
	"github.com/gin-gonic/gin"
)

const (
	shutdownTimeout   = 30 * time.Second
	retentionInterval = time.Hour
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.New(os.Getenv("GITFOLIO_CONFIG")))
	if err != nil {
		return err
	}

	logger := monitoring.NewLogger(os.Stdout, monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger.Logger)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()

	github, err := adapters.NewGitHubAdapter(adapters.GitHubConfig{
		Token:             cfg.GitHubToken,
		BaseURL:           cfg.GitHubBaseURL,
		RequestsPerSecond: cfg.SourceRPS,
		Burst:             cfg.SourceBurst,
		Retry:             resilience.SourceRetryConfig(),
		Pool:              resilience.DefaultPoolConfig(),
		Observer:          metrics.ObserveSourceRequest,
	})
	if err != nil {
		return err
	}
	if !github.Authenticated() {
		logger.Warn("No GitHub token configured, requests are limited to 60 per hour")
	}

	app, err := newApp(ctx, cfg, github, func() string { return github.BreakerState().String() }, metrics, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	go app.runRetention(ctx, cfg.Retention, retentionInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Analyses can take up to AnalysisTimeout.
		WriteTimeout: cfg.AnalysisTimeout + 30*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.SystemLogger("server_start", "listening on :"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("Server exited")
	return nil
}
