package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/redis/go-redis/v9"
)

const (
	redisNamespace = "gitfolio:"
	scanBatch      = 100
)

// RedisCache is a ProfileCache shared between server replicas
type RedisCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	metrics Metrics
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration, metrics Metrics) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, metrics: metrics}
}

func redisKey(username string) string {
	return redisNamespace + profileKey(username)
}

func (r *RedisCache) Get(ctx context.Context, username string) (*analysis.AnalyzedProfile, bool) {
	key := redisKey(username)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Redis cache read failed", "key", key, "error", err)
		}
		r.miss()
		return nil, false
	}

	var profile analysis.AnalyzedProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		slog.Error("Failed to decode cached profile", "error", err, "key", key)
		r.miss()
		return nil, false
	}

	if r.metrics != nil {
		r.metrics.IncrementCacheHit()
	}
	return &profile, true
}

func (r *RedisCache) miss() {
	if r.metrics != nil {
		r.metrics.IncrementCacheMiss()
	}
}

func (r *RedisCache) Set(ctx context.Context, username string, profile *analysis.AnalyzedProfile) {
	data, err := json.Marshal(profile)
	if err != nil {
		slog.Error("Failed to encode profile for cache", "error", err, "username", username)
		return
	}
	if err := r.client.Set(ctx, redisKey(username), data, r.ttl).Err(); err != nil {
		slog.Warn("Redis cache write failed", "username", username, "error", err)
	}
}

func (r *RedisCache) Delete(ctx context.Context, username string) {
	if err := r.client.Del(ctx, redisKey(username)).Err(); err != nil {
		slog.Warn("Redis cache delete failed", "username", username, "error", err)
	}
}

// Clear removes every cached profile, leaving other keys in the database alone
func (r *RedisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, redisNamespace+keyPrefix+"*", scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("Redis cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Redis cache clear failed", "keys", len(keys), "error", err)
	}
}

func (r *RedisCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"backend":     "redis",
		"ttl_seconds": r.ttl.Seconds(),
	}
	if pool := r.client.PoolStats(); pool != nil {
		stats["total_conns"] = pool.TotalConns
		stats["idle_conns"] = pool.IdleConns
	}
	return stats
}

var _ ProfileCache = (*RedisCache)(nil)
