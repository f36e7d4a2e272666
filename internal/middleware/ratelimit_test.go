package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/penguinmails/tenantcore/internal/common/cnst"
	"github.com/penguinmails/tenantcore/internal/common/errorx"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	limiter := NewMemoryLimiter(time.Minute, 3).WithClock(fixedClock(at))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
	assert.Equal(t, at.Truncate(time.Minute).Add(time.Minute), d.ResetAt)

	// A different key has its own counter.
	d, err = limiter.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// The next window starts fresh.
	limiter.WithClock(fixedClock(at.Add(time.Minute)))
	d, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, "test", time.Minute, 2)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Remaining)

	_, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	d, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Advancing past the window rolls the counter over.
	srv.FastForward(2 * time.Minute)
	limiter.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	d, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimitMiddlewareOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// Pin the clock so all eleven requests land in one window and the
	// advertised reset stays in the future.
	at := time.Now()
	limiter := NewMemoryLimiter(10*time.Second, 10).WithClock(fixedClock(at))

	r := gin.New()
	r.Use(RequestID(), RateLimit(limiter, 10, nil, zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		errorx.RespondSuccess(c, gin.H{"ok": true}, "")
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		r.ServeHTTP(last, req)
		if i < 10 {
			require.Equal(t, http.StatusOK, last.Code, "request %d", i+1)
			assert.Equal(t, strconv.Itoa(9-i), last.Header().Get(cnst.HeaderRateRemaining))
		}
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get(cnst.HeaderRetryAfter))

	var envelope errorx.ErrorEnvelope
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, errorx.CodeRateLimited, envelope.Code)
}

func TestRateLimitKeysByIdentityOverIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewMemoryLimiter(time.Minute, 1)

	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) {
		GetRequestContext(c).UserID = c.GetHeader("X-Test-User")
	}, RateLimit(limiter, 1, nil, zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	// Two users behind the same IP do not share a bucket.
	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusOK, send("bob"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	limiter := NewRedisLimiter(client, "test", time.Minute, 1)
	srv.Close()

	r := gin.New()
	r.Use(RequestID(), RateLimit(limiter, 1, nil, zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
