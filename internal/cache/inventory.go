package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	TrendingKeyPrefix = "zing:trending:%dh"
	UnreadKeyPrefix   = "zing:unread:%s"
)

const (
	UnreadTTL = 5 * time.Minute
	// generationTTL outlives every value it guards.
	generationTTL = time.Hour
)

var errStaleGeneration = errors.New("cache generation changed")

func generationKey(key string) string {
	return key + ":gen"
}

// TrendingKey is the cache key for the trending list over a window in hours.
func TrendingKey(windowHours int) string {
	return fmt.Sprintf(TrendingKeyPrefix, windowHours)
}

// UnreadKey is the cache key for a user's unread notification count.
func UnreadKey(userID string) string {
	return fmt.Sprintf(UnreadKeyPrefix, userID)
}

// Invalidate deletes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	c.client.Del(ctx, keys...)
}

// InvalidateUnread drops the cached unread count for userID. Reads that
// started earlier can no longer store their count.
func (c *Cache) InvalidateUnread(ctx context.Context, userID string) {
	c.Bump(ctx, UnreadKey(userID))
}
