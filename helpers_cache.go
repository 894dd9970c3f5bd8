// includenav/helpers_cache.go
// Contains helper functions for memory caching (Ristretto).
package includenav

import (
	"fmt"
	"log/slog"
	"time"
)

// MemoryCache is the slice of the navigator that withMemoryCache needs.
type MemoryCache interface {
	GetMemoryCache(key string) (any, bool)
	SetMemoryCache(key string, value any, cost int64, ttl time.Duration) bool
	MemoryCacheEnabled() bool
}

// withMemoryCache wraps a function call with caching logic.
// Tries to fetch from cache using cacheKey. If miss, calls computeFn,
// stores the result with cost and ttl, and returns it.
// Returns the result (cached or computed), whether it was a hit, and any error from computeFn.
func withMemoryCache[T any](
	cache MemoryCache,
	cacheKey string,
	cost int64, // <= 0 means estimate from the value
	ttl time.Duration,
	computeFn func() (T, error),
	logger *slog.Logger,
) (T, bool, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	cacheLogger := logger.With("cache_key", cacheKey)

	if cache == nil || !cache.MemoryCacheEnabled() {
		result, err := computeFn()
		return result, false, err
	}

	if cached, found := cache.GetMemoryCache(cacheKey); found {
		if typed, ok := cached.(T); ok {
			cacheLogger.Debug("Memory cache hit")
			return typed, true, nil
		}
		cacheLogger.Error("Memory cache type assertion failed", "expected_type", fmt.Sprintf("%T", zero), "actual_type", fmt.Sprintf("%T", cached))
	} else {
		cacheLogger.Debug("Memory cache miss")
	}

	computed, err := computeFn()
	if err != nil {
		return zero, false, err // Errors are not cached.
	}

	if cost <= 0 {
		cost = estimateCost(computed)
	}
	if !cache.SetMemoryCache(cacheKey, computed, cost, ttl) {
		cacheLogger.Warn("Memory cache Set failed, item not cached", "cost", cost, "ttl", ttl)
	}
	return computed, false, nil
}

// estimateCost approximates the ristretto cost of v in bytes.
func estimateCost(v any) int64 {
	switch val := v.(type) {
	case string:
		return max(int64(len(val)), 1)
	case []byte:
		return max(int64(len(val)), 1)
	case []string:
		cost := int64(0)
		for _, s := range val {
			cost += int64(len(s))
		}
		return max(cost, 1)
	default:
		return 1
	}
}
