package port

import (
	"context"

	"github.com/rl1809/order-engine/internal/core/domain"
)

// CacheRepository is the coarse read-through cache in front of product and
// pricing views. Invalidate discards whole regions and is idempotent; every
// component that mutates product or pricing data is obliged to call it,
// including collaborators outside the order pipeline.
type CacheRepository interface {
	// Invalidate discards every cached entry in the given regions
	Invalidate(ctx context.Context, regions ...domain.CacheRegion) error

	// Get loads a cached value into dest, reporting whether it was present
	Get(ctx context.Context, region domain.CacheRegion, key string, dest any) (bool, error)

	// Put stores a value under region/key
	Put(ctx context.Context, region domain.CacheRegion, key string, value any) error
}

// InvalidationPublisher broadcasts invalidation events so sibling instances
// and surrounding services can drop their own views.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, regions []domain.CacheRegion) error
}
