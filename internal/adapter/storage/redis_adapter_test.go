package storage

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-engine/internal/core/domain"
)

func getRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return rdb
}

type quotePayload struct {
	ProductID  string `json:"product_id"`
	FinalPrice string `json:"final_price"`
}

func TestCache_PutGetRoundtrip(t *testing.T) {
	rdb := getRedis(t)
	defer rdb.Close()

	ctx := context.Background()
	cache := NewRedisAdapter(rdb, nil)

	stored := quotePayload{ProductID: "prod-1", FinalPrice: "108.25"}
	require.NoError(t, cache.Put(ctx, domain.CacheRegionProductPrice, "prod-1", stored))

	var loaded quotePayload
	hit, err := cache.Get(ctx, domain.CacheRegionProductPrice, "prod-1", &loaded)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, stored, loaded)

	hit, err = cache.Get(ctx, domain.CacheRegionProductPrice, "prod-absent", &loaded)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_InvalidateDiscardsRegion(t *testing.T) {
	rdb := getRedis(t)
	defer rdb.Close()

	ctx := context.Background()
	cache := NewRedisAdapter(rdb, nil)

	require.NoError(t, cache.Put(ctx, domain.CacheRegionProductPrice, "prod-1",
		quotePayload{ProductID: "prod-1", FinalPrice: "108.25"}))
	require.NoError(t, cache.Put(ctx, domain.CacheRegionProducts, "prod-1",
		quotePayload{ProductID: "prod-1"}))

	require.NoError(t, cache.Invalidate(ctx, domain.CacheRegionProductPrice))

	var loaded quotePayload
	hit, err := cache.Get(ctx, domain.CacheRegionProductPrice, "prod-1", &loaded)
	require.NoError(t, err)
	assert.False(t, hit, "invalidated region still served an entry")

	// other regions are untouched
	hit, err = cache.Get(ctx, domain.CacheRegionProducts, "prod-1", &loaded)
	require.NoError(t, err)
	assert.True(t, hit)
}

// Redundant invalidations must be harmless: nothing observable changes
// beyond the first call.
func TestCache_InvalidateIsIdempotent(t *testing.T) {
	rdb := getRedis(t)
	defer rdb.Close()

	ctx := context.Background()
	cache := NewRedisAdapter(rdb, nil)

	require.NoError(t, cache.Put(ctx, domain.CacheRegionProducts, "prod-2",
		quotePayload{ProductID: "prod-2"}))

	regions := domain.ProductCacheRegions()
	require.NoError(t, cache.Invalidate(ctx, regions...))
	require.NoError(t, cache.Invalidate(ctx, regions...))
	require.NoError(t, cache.Invalidate(ctx, regions...))

	var loaded quotePayload
	hit, err := cache.Get(ctx, domain.CacheRegionProducts, "prod-2", &loaded)
	require.NoError(t, err)
	assert.False(t, hit)

	// the region keeps working after repeated invalidation
	require.NoError(t, cache.Put(ctx, domain.CacheRegionProducts, "prod-2",
		quotePayload{ProductID: "prod-2"}))
	hit, err = cache.Get(ctx, domain.CacheRegionProducts, "prod-2", &loaded)
	require.NoError(t, err)
	assert.True(t, hit)
}
