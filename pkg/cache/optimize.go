package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"fleetops/pkg/fleet"
	"fleetops/pkg/metrics"
	"fleetops/pkg/optimizer/types"
)

// OptimizeResultCache memoizes optimization results (C9): a write-only-
// on-success, TTL-keyed cache in front of the coordinator, keyed by a
// canonical hash of the request. A cache hit never reflects fleet or
// driver state newer than when the entry was written — callers bound how
// stale a hit may be by choosing the cache's TTL.
type OptimizeResultCache struct {
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewOptimizeResultCache wraps an existing Cache with optimization-result
// semantics. metrics may be nil.
func NewOptimizeResultCache(c Cache, ttl time.Duration, m *metrics.Metrics) *OptimizeResultCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OptimizeResultCache{cache: c, ttl: ttl, metrics: m}
}

const optimizeKeyPrefix = "optimize"

// Get returns a cached result for req, reporting a cache hit/miss metric
// under the "optimize" key prefix.
func (o *OptimizeResultCache) Get(ctx context.Context, req types.OptimizationRequest) (*types.OptimizationResult, bool) {
	key := optimizeKeyPrefix + ":" + RequestHash(req)

	data, err := o.cache.Get(ctx, key)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordCacheMiss(optimizeKeyPrefix)
		}
		return nil, false
	}

	var result types.OptimizationResult
	if err := json.Unmarshal(data, &result); err != nil {
		_ = o.cache.Delete(ctx, key)
		if o.metrics != nil {
			o.metrics.RecordCacheMiss(optimizeKeyPrefix)
		}
		return nil, false
	}

	if o.metrics != nil {
		o.metrics.RecordCacheHit(optimizeKeyPrefix)
	}
	return &result, true
}

// Put stores a successful optimization result under req's canonical key.
// Callers must only call Put after a successful Optimize call — this
// cache never stores a failed or partial result.
func (o *OptimizeResultCache) Put(ctx context.Context, req types.OptimizationRequest, result *types.OptimizationResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	key := optimizeKeyPrefix + ":" + RequestHash(req)
	_ = o.cache.Set(ctx, key, data, o.ttl)

	if o.metrics != nil {
		if stats, err := o.cache.Stats(ctx); err == nil {
			o.metrics.SetCacheEntries(int(stats.Size))
		}
	}
}

// RequestHash returns a stable, order-independent hash of an
// OptimizationRequest, used as a cache key. It covers the sorted pickup,
// delivery and vehicle IDs, the business rules and the preferences;
// coordinates, weights, priorities and capacities are not part of the key.
func RequestHash(req types.OptimizationRequest) string {
	canon := canonicalRequest{
		Pickups:     sortedPointIDs(req.PickupPoints),
		Deliveries:  sortedDeliveryIDs(req.DeliveryPoints),
		Fleet:       sortedVehicleIDs(req.Fleet),
		Rules:       req.BusinessRules,
		Preferences: req.Preferences,
	}
	data, _ := json.Marshal(canon)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

type canonicalRequest struct {
	Pickups     []string
	Deliveries  []string
	Fleet       []string
	Rules       fleet.BusinessRules
	Preferences types.Preferences
}

func sortedPointIDs(points []fleet.Point) []string {
	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	return ids
}

func sortedDeliveryIDs(points []fleet.DeliveryPoint) []string {
	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	return ids
}

func sortedVehicleIDs(vehicles []fleet.Vehicle) []string {
	ids := make([]string, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
	}
	sort.Strings(ids)
	return ids
}
