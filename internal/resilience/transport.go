package resilience

import (
	"log/slog"
	"net/http"
	"time"
)

// PoolConfig sizes the shared HTTP transport
type PoolConfig struct {
	MaxIdle        int           `mapstructure:"max_idle"`
	MaxActive      int           `mapstructure:"max_active"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdle:        20,
		MaxActive:      16,
		IdleTimeout:    90 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// NewTransport builds a pooled transport for one upstream host
func NewTransport(cfg PoolConfig) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdle,
		MaxConnsPerHost:       cfg.MaxActive,
		MaxIdleConnsPerHost:   max(cfg.MaxIdle/2, 1),
		IdleConnTimeout:       cfg.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// RequestObserver receives the outcome of every upstream request.
// status is 0 when the round trip failed.
type RequestObserver func(method, host string, status int, duration time.Duration)

// ObservedTransport logs and reports each round trip
type ObservedTransport struct {
	Base     http.RoundTripper
	Observer RequestObserver
}

func (t *ObservedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	status := 0
	if err != nil {
		slog.Warn("Request failed", "url", req.URL.Path, "error", err, "duration_ms", duration.Milliseconds())
	} else {
		status = resp.StatusCode
		slog.Debug("Request completed", "url", req.URL.Path, "status", status, "duration_ms", duration.Milliseconds())
	}

	if t.Observer != nil {
		t.Observer(req.Method, req.URL.Host, status, duration)
	}
	return resp, err
}

// NewHTTPClient returns a client on a pooled, observed transport
func NewHTTPClient(cfg PoolConfig, observer RequestObserver) *http.Client {
	return &http.Client{
		Transport: &ObservedTransport{Base: NewTransport(cfg), Observer: observer},
		Timeout:   cfg.RequestTimeout,
	}
}
