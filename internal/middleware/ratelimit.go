package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/cnst"
	"github.com/penguinmails/tenantcore/internal/common/config"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
	"github.com/penguinmails/tenantcore/pkg/metrics"
)

// Decision is one rate-limit verdict.
type Decision struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Limiter counts requests per key within fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// NewLimiter builds the limiter named by the configuration.
func NewLimiter(cfg *config.RateLimitConfig) (Limiter, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLimiter(cfg.Window, cfg.Max), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, cfg.Redis.Prefix, cfg.Window, cfg.Max), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend: %s", cfg.Backend)
	}
}

type memoryEntry struct {
	count       int64
	windowStart time.Time
}

// MemoryLimiter is a fixed-window counter held in process memory.
// Suitable for single-instance deployments and tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int64
	entries map[string]*memoryEntry
	swept   time.Time

	now func() time.Time
}

// NewMemoryLimiter creates an in-memory fixed-window limiter.
func NewMemoryLimiter(window time.Duration, max int64) *MemoryLimiter {
	return &MemoryLimiter{
		window:  window,
		max:     max,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow counts one request against the key's current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.window)
	l.sweep(start)

	e := l.entries[key]
	if e == nil || e.windowStart.Before(start) {
		e = &memoryEntry{windowStart: start}
		l.entries[key] = e
	}
	e.count++

	remaining := l.max - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   e.count <= l.max,
		Remaining: remaining,
		ResetAt:   start.Add(l.window),
	}, nil
}

// sweep drops entries from closed windows, at most once per window.
func (l *MemoryLimiter) sweep(start time.Time) {
	if l.swept.Equal(start) {
		return
	}
	l.swept = start
	for key, e := range l.entries {
		if e.windowStart.Before(start) {
			delete(l.entries, key)
		}
	}
}

// RedisLimiter is a fixed-window counter shared across instances. Keys
// embed the window start so counters roll over naturally.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
	max    int64

	now func() time.Time
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter.
func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration, max int64) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		window: window,
		max:    max,
		now:    time.Now,
	}
}

// Allow counts one request against the key's current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	start := l.now().Truncate(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, start.Unix())

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		// Expiry slightly past the window end so the rollover read
		// never races the delete.
		l.client.Expire(ctx, redisKey, l.window+time.Second)
	}

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.max,
		Remaining: remaining,
		ResetAt:   start.Add(l.window),
	}, nil
}

// RateLimit enforces the fixed-window limit keyed by the caller's
// identity when authenticated, otherwise the client IP, combined with
// the route. Limiter outages fail open with a warning so a broken
// counter store never takes the API down.
func RateLimit(limiter Limiter, max int64, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetRequestContext(c).UserID
		if principal == "" {
			principal = "ip:" + c.ClientIP()
		}
		key := principal + ":" + c.Request.Method + ":" + c.FullPath()

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("key", key),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header(cnst.HeaderRateLimit, strconv.FormatInt(max, 10))
		c.Header(cnst.HeaderRateRemaining, strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			if m != nil {
				m.RateLimited(c.FullPath())
			}
			errorx.RespondError(c, logger, errorx.RateLimited(decision.ResetAt))
			return
		}
		c.Next()
	}
}
