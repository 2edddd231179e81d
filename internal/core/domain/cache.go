package domain

// CacheRegion names a coarse-grained cache namespace. Invalidation discards
// an entire region at once: derived views (prices in particular) pull from
// several entities, so the precise affected key set cannot be enumerated.
type CacheRegion string

const (
	CacheRegionProducts       CacheRegion = "products"
	CacheRegionProductDetails CacheRegion = "productDetails"
	CacheRegionProductPrice   CacheRegion = "productPrice"
	CacheRegionPricingConfig  CacheRegion = "pricingConfig"
)

// ProductCacheRegions is the set invalidated after any stock mutation or
// order confirmation.
func ProductCacheRegions() []CacheRegion {
	return []CacheRegion{
		CacheRegionProducts,
		CacheRegionProductDetails,
		CacheRegionProductPrice,
	}
}
