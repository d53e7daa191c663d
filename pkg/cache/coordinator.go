package cache

import (
	"context"

	"fleetops/pkg/optimizer"
	"fleetops/pkg/optimizer/types"
)

// CachedCoordinator wraps a route optimization coordinator with the C9
// result cache, so callers (the batching engine) can treat it exactly
// like the coordinator itself while skipping repeat optimizations of an
// identical pickup/delivery/fleet combination within the cache's TTL.
type CachedCoordinator struct {
	coord *optimizer.Coordinator
	cache *OptimizeResultCache
}

// NewCachedCoordinator wraps coord with result in front of it.
func NewCachedCoordinator(coord *optimizer.Coordinator, result *OptimizeResultCache) *CachedCoordinator {
	return &CachedCoordinator{coord: coord, cache: result}
}

// Optimize returns a cached result when one exists for req, otherwise
// runs the full pipeline and caches a successful result for next time.
func (c *CachedCoordinator) Optimize(ctx context.Context, req types.OptimizationRequest) (*types.OptimizationResult, error) {
	if cached, ok := c.cache.Get(ctx, req); ok {
		return cached, nil
	}

	result, err := c.coord.Optimize(ctx, req)
	if err != nil {
		return nil, err
	}

	c.cache.Put(ctx, req, result)
	return result, nil
}
