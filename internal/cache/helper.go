package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"zing/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss it calls fetch (which must populate
// dest) and stores the result with ttl. Cache failures degrade to a fetch.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		observability.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest, ttl); err != nil {
		observability.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// GetCount reads an integer counter. ok is false on a miss.
func (c *Cache) GetCount(ctx context.Context, key string) (n int64, ok bool) {
	if !c.Enabled() {
		return 0, false
	}
	s, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	n, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Generation returns the current generation of key. Read it before loading
// the value to cache and pass it to SetCountAt.
func (c *Cache) Generation(ctx context.Context, key string) int64 {
	if !c.Enabled() {
		return 0
	}
	n, err := c.client.Get(ctx, generationKey(key)).Int64()
	if err != nil {
		return 0
	}
	return n
}

// SetCountAt stores n under key only while key is still at generation gen,
// so a value loaded before a concurrent Bump is never written back. It
// reports whether the value was stored.
func (c *Cache) SetCountAt(ctx context.Context, key string, gen, n int64, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}
	gk := generationKey(key)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, n, ttl)
			return nil
		})
		return err
	}, gk)
	if err != nil && !errors.Is(err, errStaleGeneration) && !errors.Is(err, redis.TxFailedErr) {
		observability.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return err == nil
}

// Bump drops key and advances its generation.
func (c *Cache) Bump(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	gk := generationKey(key)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gk)
		pipe.Expire(ctx, gk, generationTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		observability.Logger.WarnContext(ctx, "cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
