package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/order-engine/internal/core/domain"
	"github.com/rl1809/order-engine/internal/port"
)

const (
	versionKeyPrefix = "cachever:"
	entryKeyPrefix   = "cache:"
	cacheEntryTTL    = 10 * time.Minute
)

// RedisAdapter implements the coarse read-through cache. Every cache region
// carries a version counter; invalidation bumps the counter, which orphans
// all entries written under the old version in one O(1) step. Bumping an
// already-bumped region changes nothing observable, so redundant
// invalidations are harmless.
type RedisAdapter struct {
	client    *redis.Client
	publisher port.InvalidationPublisher
}

// NewRedisAdapter wraps client. publisher may be nil; when set, every
// invalidation is also broadcast for sibling instances.
func NewRedisAdapter(client *redis.Client, publisher port.InvalidationPublisher) *RedisAdapter {
	return &RedisAdapter{client: client, publisher: publisher}
}

func (r *RedisAdapter) Invalidate(ctx context.Context, regions ...domain.CacheRegion) error {
	pipe := r.client.Pipeline()
	for _, region := range regions {
		pipe.Incr(ctx, versionKeyPrefix+string(region))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bump cache versions: %w", err)
	}

	if r.publisher != nil {
		if err := r.publisher.PublishInvalidation(ctx, regions); err != nil {
			return fmt.Errorf("publish invalidation: %w", err)
		}
	}
	return nil
}

func (r *RedisAdapter) Get(ctx context.Context, region domain.CacheRegion, key string, dest any) (bool, error) {
	entryKey, err := r.entryKey(ctx, region, key)
	if err != nil {
		return false, err
	}

	data, err := r.client.Get(ctx, entryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode cached value: %w", err)
	}
	return true, nil
}

func (r *RedisAdapter) Put(ctx context.Context, region domain.CacheRegion, key string, value any) error {
	entryKey, err := r.entryKey(ctx, region, key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := r.client.Set(ctx, entryKey, data, cacheEntryTTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *RedisAdapter) entryKey(ctx context.Context, region domain.CacheRegion, key string) (string, error) {
	version, err := r.client.Get(ctx, versionKeyPrefix+string(region)).Int64()
	if errors.Is(err, redis.Nil) {
		version = 0
	} else if err != nil {
		return "", fmt.Errorf("read cache version: %w", err)
	}
	return fmt.Sprintf("%s%s:v%d:%s", entryKeyPrefix, region, version, key), nil
}
