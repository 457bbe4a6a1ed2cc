package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "octocat", expected: "octocat"},
		{input: "  octocat  ", expected: "octocat"},
		{input: "@octocat", expected: "octocat"},
		{input: "github:octocat", expected: "octocat"},
		{input: "https://github.com/octocat", expected: "octocat"},
		{input: "HTTPS://GitHub.com/octocat/", expected: "octocat"},
		{input: "github.com/octocat", expected: "octocat"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUsername(tt.input))
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{name: "plain login", input: "octocat", expected: "octocat"},
		{name: "hyphenated", input: "mona-lisa", expected: "mona-lisa"},
		{name: "digits", input: "user123", expected: "user123"},
		{name: "single character", input: "a", expected: "a"},
		{name: "prefixed", input: "@torvalds", expected: "torvalds"},
		{name: "max length", input: strings.Repeat("a", MaxLoginLength), expected: strings.Repeat("a", MaxLoginLength)},
		{name: "empty", input: "   ", expectError: true},
		{name: "too long", input: strings.Repeat("a", MaxLoginLength+1), expectError: true},
		{name: "leading hyphen", input: "-octocat", expectError: true},
		{name: "trailing hyphen", input: "octocat-", expectError: true},
		{name: "double hyphen", input: "octo--cat", expectError: true},
		{name: "repository path", input: "octocat/Hello-World", expectError: true},
		{name: "script", input: "<script>alert(1)</script>", expectError: true},
		{name: "sql", input: "'; DROP TABLE profiles; --", expectError: true},
		{name: "null byte", input: "octo\x00cat", expectError: true},
		{name: "invalid utf8", input: "octo\xff\xfecat", expectError: true},
		{name: "underscore", input: "octo_cat", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			login, err := ValidateUsername(tt.input)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, login)
		})
	}
}

func TestUsernameParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	router.GET("/data/:username", UsernameParam(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString("username")})
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "valid", path: "/data/octocat", expectedStatus: http.StatusOK, expectedBody: `{"username":"octocat"}`},
		{name: "prefixed", path: "/data/@octocat", expectedStatus: http.StatusOK, expectedBody: `{"username":"octocat"}`},
		{name: "invalid", path: "/data/bad_login", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		config   HeadersConfig
		wantHSTS bool
	}{
		{name: "plain http", config: HeadersConfig{}},
		{name: "hsts enabled", config: HeadersConfig{EnableHSTS: true}, wantHSTS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(SecurityHeadersMiddleware(tt.config))
			router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
			assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
			assert.Equal(t, tt.wantHSTS, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}
