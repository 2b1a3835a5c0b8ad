// Package ratelimit provides fixed-window admission control keyed by caller.
// The memory limiter suits a single instance; the Redis limiter shares
// counters across instances.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"dentaldir/internal/config"
)

// Limiter decides whether a caller may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// New returns the limiter for cfg, or nil when rate limiting is disabled.
// A non-nil rdb selects the Redis limiter.
func New(cfg *config.Config, rdb *redis.Client) Limiter {
	if cfg.RateLimit.Requests <= 0 {
		return nil
	}
	window := cfg.RateLimitWindow()
	if rdb != nil {
		return NewRedis(rdb, cfg.RateLimit.Requests, window)
	}
	return NewMemory(cfg.RateLimit.Requests, window)
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*counter
}

type counter struct {
	start time.Time
	count int
}

// NewMemory allows limit requests per key per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*counter),
	}
}

// Allow counts one request for key.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.windows[key]
	if !ok || now.Sub(c.start) >= m.window {
		m.prune(now)
		m.windows[key] = &counter{start: now, count: 1}
		return true, nil
	}
	if c.count >= m.limit {
		return false, nil
	}
	c.count++
	return true, nil
}

// prune drops expired windows; callers hold mu.
func (m *Memory) prune(now time.Time) {
	for key, c := range m.windows {
		if now.Sub(c.start) >= m.window {
			delete(m.windows, key)
		}
	}
}

// Redis is a fixed-window limiter. Each window has its own key, counted
// with INCR and given a TTL in the same MULTI/EXEC.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedis allows limit requests per key per window across instances.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window, prefix: "dentaldir:ratelimit:", now: time.Now}
}

// Allow counts one request for key.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	bucket := r.now().UnixNano() / int64(r.window)
	redisKey := fmt.Sprintf("%s%s:%d", r.prefix, key, bucket)
	var incr *redis.IntCmd
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, r.window)
		return nil
	}); err != nil {
		return false, fmt.Errorf("rate limit count: %w", err)
	}
	return incr.Val() <= int64(r.limit), nil
}
