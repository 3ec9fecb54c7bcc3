package utils

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"golang.org/x/sync/singleflight"
)

var cacheGroup singleflight.Group

func generationKey(setKey string) string {
	return setKey + ":generation"
}

// CachedObject returns the cached value under key, or builds it once with load and caches it.
// Concurrent callers for the same key share one load. Keys are tracked in setKey so a whole
// family of entries can be dropped with ClearCacheSet. A result is not cached when
// ClearCacheSet ran for setKey while it was being loaded.
func CachedObject[T any](ctx context.Context, setKey string, key string, ttl time.Duration, load func() (*T, error)) (*T, error) {
	var cached T
	exists, err := config.GetRedisObject(ctx, key, &cached)
	if err != nil {
		config.LogError(config.GetLogger(), "redisHelper.go", "CachedObject", "read cache", key, err)
	} else if exists {
		return &cached, nil
	}

	v, err, _ := cacheGroup.Do(key, func() (interface{}, error) {
		generation, genErr := config.GetRedisCounter(ctx, generationKey(setKey))
		result, err := load()
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			config.LogError(config.GetLogger(), "redisHelper.go", "CachedObject", "read cache generation", setKey, genErr)
			return result, nil
		}
		if _, err := config.SetRedisObjectIfCounter(ctx, generationKey(setKey), generation, setKey, key, result, ttl); err != nil {
			config.LogError(config.GetLogger(), "redisHelper.go", "CachedObject", "write cache", key, err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// ClearCacheSet removes every key recorded in setKey, and the set itself.
// Loads already in flight for setKey will not write their results.
func ClearCacheSet(ctx context.Context, setKey string) error {
	if err := config.IncrRedisCounter(ctx, generationKey(setKey)); err != nil {
		return err
	}
	keys, err := config.GetRedisSetMembers(ctx, setKey)
	if err != nil {
		return err
	}
	return config.RemoveRedisKey(ctx, append(keys, setKey)...)
}
