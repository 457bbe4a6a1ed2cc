package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds in-process service counters, served as JSON on /metrics
type Metrics struct {
	RequestCount int64
	ErrorCount   int64
	CacheHits    int64
	CacheMisses  int64
	StoreHits    int64
	StoreMisses  int64

	AnalysesStarted   int64
	AnalysesCompleted int64
	AnalysesFailed    int64

	SourceRequests int64
	SourceErrors   int64

	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64

	StartTime time.Time

	responseTimes []time.Duration
	responseMu    sync.RWMutex

	requestCountByStatus map[int]int64
	statusMu             sync.RWMutex

	// secondary fetches that degraded to their defaults, by fetch site
	fetchFailures map[string]int64
	// upstream requests by host
	sourceByHost map[string]int64
	labelsMu     sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		responseTimes:        make([]time.Duration, 0, maxResponseSamples),
		requestCountByStatus: make(map[int]int64),
		fetchFailures:        make(map[string]int64),
		sourceByHost:         make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

func (m *Metrics) IncrementStoreHit() {
	atomic.AddInt64(&m.StoreHits, 1)
}

func (m *Metrics) IncrementStoreMiss() {
	atomic.AddInt64(&m.StoreMisses, 1)
}

func (m *Metrics) IncrementAnalysisStarted() {
	atomic.AddInt64(&m.AnalysesStarted, 1)
}

// RecordAnalysisResult counts a finished analysis run
func (m *Metrics) RecordAnalysisResult(err error) {
	if err != nil {
		atomic.AddInt64(&m.AnalysesFailed, 1)
		return
	}
	atomic.AddInt64(&m.AnalysesCompleted, 1)
}

// RecordFetchFailure counts a degraded secondary fetch
func (m *Metrics) RecordFetchFailure(site string) {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()
	m.fetchFailures[site]++
}

// ObserveSourceRequest matches resilience.RequestObserver
func (m *Metrics) ObserveSourceRequest(method, host string, status int, duration time.Duration) {
	atomic.AddInt64(&m.SourceRequests, 1)
	if status == 0 || status >= 400 {
		atomic.AddInt64(&m.SourceErrors, 1)
	}
	m.labelsMu.Lock()
	m.sourceByHost[host]++
	m.labelsMu.Unlock()
}

func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// RecordResponseTime keeps the last maxResponseSamples durations for percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.responseMu.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseMu.Unlock()
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.requestCountByStatus[statusCode]++
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseMu.RLock()
	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	m.responseMu.RUnlock()

	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetFetchFailures returns degraded fetch counts by site
func (m *Metrics) GetFetchFailures() map[string]int64 {
	m.labelsMu.RLock()
	defer m.labelsMu.RUnlock()
	return copyCounts(m.fetchFailures)
}

func (m *Metrics) getSourceByHost() map[string]int64 {
	m.labelsMu.RLock()
	defer m.labelsMu.RUnlock()
	return copyCounts(m.sourceByHost)
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	sourceRequests := atomic.LoadInt64(&m.SourceRequests)
	sourceErrors := atomic.LoadInt64(&m.SourceErrors)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     percent(errors, requests),
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": percent(cacheHits, cacheHits+cacheMisses),
		"store_hits":             atomic.LoadInt64(&m.StoreHits),
		"store_misses":           atomic.LoadInt64(&m.StoreMisses),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),

		"analysis": map[string]interface{}{
			"started":        atomic.LoadInt64(&m.AnalysesStarted),
			"completed":      atomic.LoadInt64(&m.AnalysesCompleted),
			"failed":         atomic.LoadInt64(&m.AnalysesFailed),
			"fetch_failures": m.GetFetchFailures(),
		},
		"source": map[string]interface{}{
			"requests":           sourceRequests,
			"errors":             sourceErrors,
			"error_rate_percent": percent(sourceErrors, sourceRequests),
			"by_host":            m.getSourceByHost(),
		},
		"rate_limit": map[string]interface{}{
			"ip_blocks":      atomic.LoadInt64(&m.RateLimitIPBlocks),
			"redis_errors":   atomic.LoadInt64(&m.RateLimitRedisErrors),
			"fallback_count": atomic.LoadInt64(&m.RateLimitFallbackCount),
		},

		"go_goroutines":        runtime.NumGoroutine(),
		"go_gc_count":          mem.NumGC,
		"go_gc_pause_total_ns": mem.PauseTotalNs,
		"go_heap_alloc_bytes":  mem.HeapAlloc,
		"go_heap_sys_bytes":    mem.HeapSys,
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, c := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.CacheHits, &m.CacheMisses, &m.StoreHits, &m.StoreMisses,
		&m.AnalysesStarted, &m.AnalysesCompleted, &m.AnalysesFailed, &m.SourceRequests, &m.SourceErrors,
		&m.RateLimitIPBlocks, &m.RateLimitRedisErrors, &m.RateLimitFallbackCount,
	} {
		atomic.StoreInt64(c, 0)
	}

	m.responseMu.Lock()
	m.responseTimes = m.responseTimes[:0]
	m.responseMu.Unlock()

	m.statusMu.Lock()
	m.requestCountByStatus = make(map[int]int64)
	m.statusMu.Unlock()

	m.labelsMu.Lock()
	m.fetchFailures = make(map[string]int64)
	m.sourceByHost = make(map[string]int64)
	m.labelsMu.Unlock()

	m.StartTime = time.Now()
}
