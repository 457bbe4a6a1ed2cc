package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
)

// ProfileCache holds recently analyzed profiles keyed by login.
// Logins are case-insensitive.
type ProfileCache interface {
	Get(ctx context.Context, username string) (*analysis.AnalyzedProfile, bool)
	Set(ctx context.Context, username string, profile *analysis.AnalyzedProfile)
	Delete(ctx context.Context, username string)
	Clear(ctx context.Context)
	Stats() map[string]interface{}
}

// Metrics receives cache hit and miss counts
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

const keyPrefix = "profile:"

func profileKey(username string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(username))
}

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired at now
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache is an in-process ProfileCache with TTL. Profiles are stored
// encoded so callers never share a mutable copy.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*CacheItem
	ttl     time.Duration
	now     func() time.Time
	metrics Metrics
	stop    chan struct{}
	once    sync.Once
}

// NewCache creates a new cache with the specified TTL and starts the sweeper
func NewCache(ttl time.Duration, metrics Metrics) *Cache {
	cache := &Cache{
		items:   make(map[string]*CacheItem),
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
		stop:    make(chan struct{}),
	}

	go cache.cleanup(5 * time.Minute)

	return cache
}

// cleanup removes expired items periodically
func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// Close stops the sweeper
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) Get(ctx context.Context, username string) (*analysis.AnalyzedProfile, bool) {
	key := profileKey(username)

	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || item.IsExpired(c.now()) {
		c.miss()
		return nil, false
	}

	var profile analysis.AnalyzedProfile
	if err := json.Unmarshal(item.Data, &profile); err != nil {
		slog.Error("Failed to decode cached profile", "error", err, "key", key)
		c.miss()
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.IncrementCacheHit()
	}
	return &profile, true
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.IncrementCacheMiss()
	}
}

func (c *Cache) Set(ctx context.Context, username string, profile *analysis.AnalyzedProfile) {
	data, err := json.Marshal(profile)
	if err != nil {
		slog.Error("Failed to encode profile for cache", "error", err, "username", username)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[profileKey(username)] = &CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

func (c *Cache) Delete(ctx context.Context, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, profileKey(username))
}

func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalItems := len(c.items)
	expiredItems := 0
	for _, item := range c.items {
		if item.IsExpired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"backend":       "memory",
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

var _ ProfileCache = (*Cache)(nil)
