package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gatekeeper/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const approvedPostsKey = "posts:approved"

// ApprovedPostsTTL bounds how stale the public feed can get if an
// invalidation is lost.
const ApprovedPostsTTL = 2 * time.Minute

// ApprovedPostsKey is the key of the cached public feed.
func ApprovedPostsKey() string {
	return approvedPostsKey
}

// Aside reads key from Redis and decodes it into T. On a miss it calls load,
// stores the JSON encoding for ttl and returns the loaded value. Without a
// Redis client every call goes to load. Cache errors never fail the read.
func Aside[T any](ctx context.Context, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if client == nil {
		return load(ctx)
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		var cached T
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
		middleware.Logger.WarnContext(ctx, "discarding undecodable cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err == nil {
		if setErr := client.Set(ctx, key, encoded, ttl).Err(); setErr != nil {
			middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", setErr)
		}
	}
	return value, nil
}

// Invalidate removes keys. Failures are logged; a stale entry expires on its TTL.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

// InvalidateApprovedPosts drops the cached public feed.
func InvalidateApprovedPosts(ctx context.Context) {
	Invalidate(ctx, ApprovedPostsKey())
}
