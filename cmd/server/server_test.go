package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/adapters"
	"github.com/ZanzyTHEbar/gitfolio/internal/config"
	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/ZanzyTHEbar/gitfolio/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePath = "../../internal/adapters/testdata/octocat.json"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:            "8000",
		DataDir:         t.TempDir(),
		CacheTTL:        15 * time.Minute,
		MaxAge:          24 * time.Hour,
		AnalysisTimeout: 30 * time.Second,
		Workers:         4,
		SourceRPS:       10,
		SourceBurst:     5,
		IPLimitPerMin:   100,
		LogLevel:        "debug",
	}
}

func setupRouterWithConfig(t *testing.T, cfg *config.Config) (*gin.Engine, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	source, err := adapters.LoadFixture(fixturePath)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLogger(io.Discard, slog.LevelDebug)

	a, err := newApp(context.Background(), cfg, source, nil, metrics, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a.router, metrics
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, _ := setupRouterWithConfig(t, testConfig(t))
	return r
}

func do(r http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealthEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "GET /health returns OK status", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "POST /health not routed", method: http.MethodPost, path: "/health", expectedStatus: http.StatusNotFound},
		{name: "PUT /health not routed", method: http.MethodPut, path: "/health", expectedStatus: http.StatusNotFound},
		{name: "DELETE /health not routed", method: http.MethodDelete, path: "/health", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	body := decode(t, do(r, http.MethodGet, "/health", nil))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "not configured", body["github_token"])
	assert.Equal(t, config.APIVersion, body["api_version"])
	assert.Equal(t, "n/a", body["source_circuit"])
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, "disabled", body["redis"])
	assert.Equal(t, false, body["redis_enabled"])
}

func TestRedisHealth(t *testing.T) {
	tests := []struct {
		name           string
		ping           func(ctx context.Context) error
		expectedStatus string
		expectErr      bool
	}{
		{name: "not configured", expectedStatus: "disabled"},
		{name: "reachable", ping: func(context.Context) error { return nil }, expectedStatus: "ok"},
		{
			name:           "unreachable",
			ping:           func(context.Context) error { return errors.New("dial tcp 127.0.0.1:6379: connection refused") },
			expectedStatus: "[NETWORK_ERROR] Redis health check failed",
			expectErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := redisHealth(context.Background(), tt.ping)
			assert.Equal(t, tt.expectedStatus, status)
			if !tt.expectErr {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNetwork))
			assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
		})
	}
}

func TestHealthReportsConfiguredToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.GitHubToken = "ghp_test"
	r, _ := setupRouterWithConfig(t, cfg)

	body := decode(t, do(r, http.MethodGet, "/health", nil))
	assert.Equal(t, "configured", body["github_token"])
}

func TestRootEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	w := do(r, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, config.APIVersion, body["version"])
	endpoints := body["endpoints"].(map[string]interface{})
	assert.Equal(t, "/analyze/{username}", endpoints["analyze"])
	assert.Equal(t, "/data", endpoints["data"])
}

func TestAnalyzeEndpoint_ValidRequests(t *testing.T) {
	r := setupTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "GET /analyze/:username", method: http.MethodGet, path: "/analyze/octocat"},
		{name: "GET with @ prefix", method: http.MethodGet, path: "/analyze/@octocat"},
		{name: "POST /analyze", method: http.MethodPost, path: "/analyze", body: `{"username":"octocat"}`},
		{name: "POST with profile URL", method: http.MethodPost, path: "/analyze", body: `{"username":"https://github.com/octocat"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			w := do(r, tt.method, tt.path, body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			response := decode(t, w)
			assert.Equal(t, "success", response["status"])
			assert.Equal(t, "Successfully analyzed profile: octocat", response["message"])

			data := response["data"].(map[string]interface{})
			assert.Equal(t, "octocat", data["username"])
			assert.Contains(t, data, "ai_summary")

			stats := data["stats"].(map[string]interface{})
			assert.Equal(t, float64(93), stats["total_stars"])
			assert.Equal(t, float64(47), stats["total_commits"])

			score := data["collaboration_score"].(map[string]interface{})["overall_score"].(float64)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
		})
	}
}

func TestAnalyzeEndpoint_InvalidRequests(t *testing.T) {
	r := setupTestRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		expectedDetail string
	}{
		{name: "unknown user", method: http.MethodGet, path: "/analyze/ghost", expectedStatus: http.StatusNotFound, expectedDetail: "GitHub user ghost not found"},
		{name: "invalid login", method: http.MethodGet, path: "/analyze/bad_login", expectedStatus: http.StatusBadRequest, expectedDetail: "Invalid GitHub username format"},
		{name: "missing username", method: http.MethodPost, path: "/analyze", body: `{}`, expectedStatus: http.StatusBadRequest, expectedDetail: "Username is required"},
		{name: "malformed json", method: http.MethodPost, path: "/analyze", body: `{"username":`, expectedStatus: http.StatusBadRequest},
		{name: "blank username", method: http.MethodPost, path: "/analyze", body: `{"username":"   "}`, expectedStatus: http.StatusBadRequest},
		{name: "too long", method: http.MethodPost, path: "/analyze", body: `{"username":"` + strings.Repeat("a", 40) + `"}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			w := do(r, tt.method, tt.path, body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			response := decode(t, w)
			if tt.expectedDetail != "" {
				assert.Equal(t, tt.expectedDetail, response["detail"])
			}
			assert.NotEmpty(t, response["request_id"])
		})
	}
}

func TestDataLifecycle(t *testing.T) {
	r := setupTestRouter(t)

	w := do(r, http.MethodGet, "/data", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No profile data found. Please analyze a profile first.", decode(t, w)["detail"])

	w = do(r, http.MethodGet, "/data/octocat", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No data found for user: octocat", decode(t, w)["detail"])

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/analyze/octocat", nil).Code)

	w = do(r, http.MethodGet, "/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "octocat", decode(t, w)["username"])

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{name: "fresh profile", path: "/data/octocat", expectedStatus: http.StatusOK},
		{name: "case insensitive", path: "/data/OctoCat", expectedStatus: http.StatusOK},
		{name: "explicit no refresh", path: "/data/octocat?force_refresh=false", expectedStatus: http.StatusOK},
		{name: "force refresh misses", path: "/data/octocat?force_refresh=true", expectedStatus: http.StatusNotFound},
		{name: "bad force refresh", path: "/data/octocat?force_refresh=maybe", expectedStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStatus, do(r, http.MethodGet, tt.path, nil).Code)
		})
	}

	w = do(r, http.MethodDelete, "/data/octocat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data cleared for user: octocat", decode(t, w)["message"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/data/octocat", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/data/octocat", nil).Code)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/analyze", strings.NewReader(`{"username":"octocat"}`)).Code)
	w = do(r, http.MethodDelete, "/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "All data cleared successfully", body["message"])
	assert.Equal(t, float64(1), body["removed"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/data", nil).Code)
}

func TestLeaderboardEndpoint(t *testing.T) {
	r := setupTestRouter(t)

	body := decode(t, do(r, http.MethodGet, "/leaderboard", nil))
	assert.Equal(t, float64(0), body["count"])

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/analyze/octocat", nil).Code)

	w := do(r, http.MethodGet, "/leaderboard?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(1), body["count"])
	entry := body["entries"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "octocat", entry["username"])
	assert.Equal(t, float64(1), entry["rank"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/leaderboard?limit=ten", nil).Code)
}

func TestServer_CORSHeaders(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestServer_ResponseHeaders(t *testing.T) {
	r := setupTestRouter(t)

	w := do(r, http.MethodGet, "/health", nil)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, w.Header().Get(monitoring.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(monitoring.RequestIDHeader, "client-supplied")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "client-supplied", w.Header().Get(monitoring.RequestIDHeader))
}

func TestServer_RateLimitsAnalysis(t *testing.T) {
	cfg := testConfig(t)
	cfg.IPLimitPerMin = 2
	r, metrics := setupRouterWithConfig(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/analyze/octocat", nil).Code)
	}

	w := do(r, http.MethodGet, "/analyze/octocat", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "Rate limit exceeded", decode(t, w)["detail"])

	// Reads are not limited
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/data/octocat", nil).Code)
	assert.Equal(t, int64(1), metrics.RateLimitIPBlocks)
}

func TestServer_CompressesProfiles(t *testing.T) {
	r := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analyze/octocat", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "success", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	r, metrics := setupRouterWithConfig(t, testConfig(t))

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/analyze/octocat", nil).Code)

	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	for _, key := range []string{"service", "cache", "store", "rate_limit", "compression"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, int64(1), metrics.AnalysesCompleted)
	// the fixture replays one failed collaborator listing
	assert.Equal(t, int64(1), metrics.GetFetchFailures()["collaborators"])
}

func TestServer_ConcurrentRequests(t *testing.T) {
	r := setupTestRouter(t)

	const workers = 10
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(r, http.MethodGet, "/analyze/octocat", nil).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/data/octocat", nil).Code)
}
