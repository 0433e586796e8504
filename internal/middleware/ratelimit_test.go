package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("bypass in test and development", func(t *testing.T) {
		for _, env := range []string{"test", "development", ""} {
			allowed, err := NewRateLimiter(nil, env).Allow(ctx, "r", "1", 1, time.Minute)
			assert.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("nil redis in production errors", func(t *testing.T) {
		allowed, err := NewRateLimiter(nil, "production").Allow(ctx, "r", "1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})

	t.Run("counts within window", func(t *testing.T) {
		l := NewRateLimiter(newMiniRedis(t), "production")
		for i := 0; i < 3; i++ {
			allowed, err := l.Allow(ctx, "login", "ip:1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed, "hit %d", i+1)
		}
		allowed, err := l.Allow(ctx, "login", "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = l.Allow(ctx, "login", "ip:2", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "other callers have their own budget")
	})
}

func TestRateLimiter_Limit(t *testing.T) {
	call := func(t *testing.T, h fiber.Handler) int {
		app := fiber.New()
		app.Get("/test", h, func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, call(t, NewRateLimiter(nil, "test").Limit("r", 1, time.Minute, FailClosed)))
	assert.Equal(t, http.StatusOK, call(t, NewRateLimiter(nil, "production").Limit("r", 1, time.Minute, FailOpen)))
	assert.Equal(t, http.StatusServiceUnavailable, call(t, NewRateLimiter(nil, "production").Limit("r", 1, time.Minute, FailClosed)))

	limited := NewRateLimiter(newMiniRedis(t), "production").Limit("r", 1, time.Minute, FailOpen)
	app := fiber.New()
	app.Get("/test", limited, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, "request %d", i+1)
	}
}
