package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefinitionKey is the cache key of a test definition
func DefinitionKey(seriesID, testID uint) string {
	return fmt.Sprintf("series:%d:test:%d", seriesID, testID)
}

// AccessKey is the cache key of an access decision
func AccessKey(userID string, seriesID, testID uint) string {
	return fmt.Sprintf("user:%s:series:%d:test:%d", userID, seriesID, testID)
}

// SafeSet stores a value and logs instead of failing
func SafeSet(ctx context.Context, helper *CacheHelper, key string, value interface{}, ttl time.Duration) {
	if err := helper.Set(ctx, key, value, ttl); err != nil {
		slog.WarnContext(ctx, "Failed to set cache key",
			"error", err,
			"key", key)
	}
}

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateTestCache drops the cached definition of a test and every access decision
// taken against it.
func InvalidateTestCache(ctx context.Context, cm *CacheManager, seriesID, testID uint) {
	SafeDelete(ctx, cm.Definition, DefinitionKey(seriesID, testID))
	SafeInvalidatePattern(ctx, cm.Access, fmt.Sprintf("user:*:series:%d:test:%d", seriesID, testID))
}
