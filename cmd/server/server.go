package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/config"
	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/ZanzyTHEbar/gitfolio/internal/middleware"
	"github.com/ZanzyTHEbar/gitfolio/internal/monitoring"
	"github.com/ZanzyTHEbar/gitfolio/internal/ratelimit"
	"github.com/ZanzyTHEbar/gitfolio/internal/security"
	"github.com/ZanzyTHEbar/gitfolio/internal/service"
	"github.com/ZanzyTHEbar/gitfolio/internal/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

type routerDeps struct {
	Config      *config.Config
	Profiles    *service.ProfileService
	Metrics     *monitoring.Metrics
	Logger      *monitoring.Logger
	Limiter     *ratelimit.RateLimiter
	Compression *middleware.CompressionMiddleware

	SourceState func() string
	StorePing   func(ctx context.Context) error
	// RedisPing is nil when Redis is not configured
	RedisPing   func(ctx context.Context) error
	StoreStats  func() map[string]interface{}
	CacheStats  func() map[string]interface{}
	RedisStats  func() map[string]interface{}
}

type handlers struct {
	routerDeps
}

func setupRouter(d routerDeps) *gin.Engine {
	r := gin.New()

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(d.Metrics, d.Logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", monitoring.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{monitoring.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"}
	r.Use(cors.New(corsConfig))

	r.Use(security.SecurityHeadersMiddleware(security.HeadersConfig{EnableHSTS: d.Config.EnableHSTS}))
	r.Use(d.Compression.Handler())

	h := &handlers{routerDeps: d}

	r.GET("/", h.root)
	r.GET("/health", h.health)
	r.GET("/metrics", h.metrics)

	// Analysis hits the upstream API, so it is the only rate limited surface.
	analyze := r.Group("/analyze", d.Limiter.IPRateLimitMiddleware())
	analyze.GET("/:username", security.UsernameParam(), h.analyzeGet)
	analyze.POST("", h.analyzePost)

	r.GET("/data", h.latest)
	r.GET("/data/:username", security.UsernameParam(), h.getData)
	r.DELETE("/data", h.clearAll)
	r.DELETE("/data/:username", security.UsernameParam(), h.deleteData)

	r.GET("/leaderboard", h.leaderboard)

	return r
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "GitFolio API",
		"version":     config.APIVersion,
		"description": "GitHub Profile Analyzer and Portfolio Generator",
		"endpoints": gin.H{
			"analyze":     "/analyze/{username}",
			"data":        "/data",
			"user_data":   "/data/{username}",
			"leaderboard": "/leaderboard",
			"health":      "/health",
			"metrics":     "/metrics",
		},
	})
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status, code, storeStatus := "healthy", http.StatusOK, "ok"
	if err := h.StorePing(ctx); err != nil {
		status, code, storeStatus = "degraded", http.StatusServiceUnavailable, err.Error()
	}

	// A failing Redis degrades cache and rate limiting to memory but keeps serving.
	redisStatus, redisErr := redisHealth(ctx, h.RedisPing)
	if redisErr != nil {
		apperrors.LogError(c, redisErr)
		status = "degraded"
	}

	c.JSON(code, gin.H{
		"status":         status,
		"github_token":   h.Config.TokenConfigured(),
		"api_version":    config.APIVersion,
		"source_circuit": h.SourceState(),
		"store":          storeStatus,
		"redis":          redisStatus,
		"redis_enabled":  h.RedisStats()["enabled"],
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// redisHealth reports "disabled", "ok", or the failed ping as a network error
func redisHealth(ctx context.Context, ping func(ctx context.Context) error) (string, *apperrors.AppError) {
	if ping == nil {
		return "disabled", nil
	}
	if err := ping(ctx); err != nil {
		appErr := apperrors.NewNetworkError("Redis health check failed", err)
		return appErr.Error(), appErr
	}
	return "ok", nil
}

func (h *handlers) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     h.Metrics.GetStats(),
		"cache":       h.CacheStats(),
		"store":       h.StoreStats(),
		"rate_limit":  h.Limiter.GetStats(),
		"compression": h.Compression.GetStats(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) respondAnalysis(c *gin.Context, username string) {
	profile, err := h.Profiles.Analyze(c.Request.Context(), username)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, types.AnalyzeResponse{
		Status:  "success",
		Message: fmt.Sprintf("Successfully analyzed profile: %s", username),
		Data:    profile,
	})
}

func (h *handlers) analyzeGet(c *gin.Context) {
	h.respondAnalysis(c, c.GetString("username"))
}

func (h *handlers) analyzePost(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewValidationError("Username is required", err.Error()))
		return
	}

	username, err := security.ValidateUsername(req.Username)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondAnalysis(c, username)
}

func (h *handlers) latest(c *gin.Context) {
	profile, err := h.Profiles.Latest(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *handlers) getData(c *gin.Context) {
	forceRefresh := false
	if raw := c.Query("force_refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperrors.NewValidationError("force_refresh must be a boolean", raw))
			return
		}
		forceRefresh = parsed
	}

	profile, err := h.Profiles.Get(c.Request.Context(), c.GetString("username"), forceRefresh)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *handlers) deleteData(c *gin.Context) {
	username := c.GetString("username")
	if err := h.Profiles.Delete(c.Request.Context(), username); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Data cleared for user: %s", username),
	})
}

func (h *handlers) clearAll(c *gin.Context) {
	removed, err := h.Profiles.Clear(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.StatusResponse{
		Status:  "success",
		Message: "All data cleared successfully",
		Removed: &removed,
	})
}

func (h *handlers) leaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			_ = c.Error(apperrors.NewValidationError("limit must be an integer", raw))
			return
		}
		limit = parsed
	}

	entries, err := h.Profiles.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
