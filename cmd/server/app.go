package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/ZanzyTHEbar/gitfolio/internal/cache"
	"github.com/ZanzyTHEbar/gitfolio/internal/config"
	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/ZanzyTHEbar/gitfolio/internal/middleware"
	"github.com/ZanzyTHEbar/gitfolio/internal/monitoring"
	"github.com/ZanzyTHEbar/gitfolio/internal/ratelimit"
	"github.com/ZanzyTHEbar/gitfolio/internal/service"
	"github.com/ZanzyTHEbar/gitfolio/internal/store"
	"github.com/gin-gonic/gin"
)

// app owns every long-lived component behind the HTTP router
type app struct {
	router   *gin.Engine
	profiles *service.ProfileService
	closers  []func()
}

// newApp wires store, cache, rate limiter and profile service around source.
// sourceState reports the upstream circuit state for /health; nil means none.
func newApp(ctx context.Context, cfg *config.Config, source analysis.RecordSource, sourceState func() string, metrics *monitoring.Metrics, logger *monitoring.Logger) (*app, error) {
	a := &app{}

	st, err := store.Open(cfg.DataDir, store.DefaultPoolConfig())
	if err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("cannot open profile store in %s", cfg.DataDir), err)
	}
	a.closers = append(a.closers, func() { apperrors.SafeClose(st, "profile store") })

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Redis unavailable, continuing with in-memory cache and rate limiting", "error", err)
	}
	a.closers = append(a.closers, func() { apperrors.SafeClose(redisClient, "redis client") })

	var profileCache cache.ProfileCache
	if redisClient.IsEnabled() {
		profileCache = cache.NewRedisCache(redisClient.GetClient(), cfg.CacheTTL, metrics)
	} else {
		memory := cache.NewCache(cfg.CacheTTL, metrics)
		a.closers = append(a.closers, memory.Close)
		profileCache = memory
	}

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{IPLimitPerMin: cfg.IPLimitPerMin}, metrics)
	a.closers = append(a.closers, limiter.Close)

	analyzer := analysis.NewAnalyzer(source,
		analysis.WithWorkers(cfg.Workers),
		analysis.WithFailureRecorder(metrics),
		analysis.WithLogger(logger.Logger),
	)

	a.profiles = service.NewProfileService(analyzer, st, profileCache, metrics, logger, service.Config{
		MaxAge:          cfg.MaxAge,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})

	compression := middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())

	var redisPing func(ctx context.Context) error
	if redisClient.IsEnabled() {
		redisPing = redisClient.HealthCheck
	}

	if sourceState == nil {
		sourceState = func() string { return "n/a" }
	}

	a.router = setupRouter(routerDeps{
		Config:      cfg,
		Profiles:    a.profiles,
		Metrics:     metrics,
		Logger:      logger,
		Limiter:     limiter,
		Compression: compression,
		SourceState: sourceState,
		StorePing:   st.Ping,
		RedisPing:   redisPing,
		StoreStats:  st.GetPoolStats,
		CacheStats:  profileCache.Stats,
		RedisStats:  redisClient.GetPoolStats,
	})
	return a, nil
}

// runRetention prunes expired profiles every interval until ctx is done
func (a *app) runRetention(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}

	prune := func() {
		if _, err := a.profiles.Prune(ctx, retention); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Failed to prune stored profiles", "error", err)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			return
		}
	}
}

// Close releases components in reverse construction order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
