package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressedRouter(cm *CompressionMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(cm.Handler())
	router.GET("/large", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"summary": strings.Repeat("octocat ", 500)})
	})
	router.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/text", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", []byte(strings.Repeat("x", 4096)))
	})
	return router
}

func TestCompressionMiddleware(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	router := newCompressedRouter(cm)

	tests := []struct {
		name           string
		path           string
		acceptEncoding string
		expectGzip     bool
	}{
		{name: "large json gzipped", path: "/large", acceptEncoding: "gzip, deflate", expectGzip: true},
		{name: "large json without accept", path: "/large"},
		{name: "small json passes through", path: "/small", acceptEncoding: "gzip"},
		{name: "other content type passes through", path: "/text", acceptEncoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			if !tt.expectGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				return
			}

			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			assert.Contains(t, w.Header().Get("Vary"), "Accept-Encoding")

			gz, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(gz)
			require.NoError(t, err)
			assert.Contains(t, string(body), `"summary":"octocat octocat`)
		})
	}
}

func TestCompressionStats(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	router := newCompressedRouter(cm)

	for _, path := range []string{"/large", "/small"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	stats := cm.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["compressed_requests"])
	assert.Greater(t, stats["compressed_bytes"].(int64), int64(0))
	assert.Less(t, stats["compression_ratio"].(float64), 1.0)
}
