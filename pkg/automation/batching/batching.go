// Package batching implements the batching engine (C10): every tick it
// groups pending orders sharing a pickup location into batches and runs
// each batch through the route optimization coordinator.
package batching

import (
	"context"
	"time"

	"fleetops/pkg/automation"
	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/optimizer/types"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

// DefaultInterval is the §4.7 batching tick cadence.
const DefaultInterval = 30 * time.Second

// DefaultMaxBatchSize caps how many deliveries one optimize call covers
// per pickup group per tick.
const DefaultMaxBatchSize = 25

// Optimizer is the subset of *optimizer.Coordinator the batching engine
// needs; callers may substitute a caching wrapper (pkg/cache) in front
// of the coordinator without this package knowing the difference.
type Optimizer interface {
	Optimize(ctx context.Context, req types.OptimizationRequest) (*types.OptimizationResult, error)
}

// Engine wraps an automation.Runner configured for batching.
type Engine struct {
	*automation.Runner
}

// New builds the batching engine. coord runs each pickup group's
// deliveries through the full optimization pipeline; fleet supplies the
// vehicle pool considered for every batch.
func New(st store.Store, coord Optimizer, fleetVehicles func(ctx context.Context) ([]fleet.Vehicle, error),
	businessRules fleet.BusinessRules, hub *events.Hub, br *breaker.Breaker, interval time.Duration, concurrency int, maxBatchSize int) *Engine {

	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}

	e := &Engine{}
	tick := func(ctx context.Context, concurrency int) automation.TickStats {
		return e.tick(ctx, st, coord, fleetVehicles, businessRules, hub, br, maxBatchSize)
	}
	e.Runner = automation.NewRunner("batching", interval, concurrency, tick, hub, nil)
	return e
}

func (e *Engine) tick(ctx context.Context, st store.Store, coord Optimizer,
	fleetVehicles func(ctx context.Context) ([]fleet.Vehicle, error), businessRules fleet.BusinessRules,
	hub *events.Hub, br *breaker.Breaker, maxBatchSize int) automation.TickStats {

	var stats automation.TickStats

	var pending []fleet.Order
	err := br.Execute(ctx, func(ctx context.Context) error {
		var err error
		pending, err = st.ListOrdersByStatus(ctx, fleet.OrderPending)
		return err
	}, nil)
	if err != nil || len(pending) == 0 {
		return stats
	}

	vehicles, err := fleetVehicles(ctx)
	if err != nil || len(vehicles) == 0 {
		return stats
	}

	groups := groupByPickup(pending, maxBatchSize)

	for pickupID, orders := range groups {
		stats.Processed++
		if e.optimizeGroup(ctx, pickupID, orders, vehicles, businessRules, coord, st, hub) {
			continue
		}
		stats.Failures++
	}

	return stats
}

// groupByPickup buckets orders sharing a pickup id, splitting a bucket
// into multiple groups of at most maxBatchSize.
func groupByPickup(orders []fleet.Order, maxBatchSize int) map[string][]fleet.Order {
	byPickup := make(map[string][]fleet.Order)
	for _, o := range orders {
		byPickup[o.PickupID] = append(byPickup[o.PickupID], o)
	}

	groups := make(map[string][]fleet.Order, len(byPickup))
	for pickupID, bucket := range byPickup {
		for len(bucket) > 0 {
			n := maxBatchSize
			if n > len(bucket) {
				n = len(bucket)
			}
			key := pickupID
			if _, exists := groups[key]; exists {
				key = pickupID + "#" + bucket[0].ID
			}
			groups[key] = bucket[:n]
			bucket = bucket[n:]
		}
	}
	return groups
}

func (e *Engine) optimizeGroup(ctx context.Context, pickupID string, orders []fleet.Order, vehicles []fleet.Vehicle,
	businessRules fleet.BusinessRules, coord Optimizer, st store.Store, hub *events.Hub) bool {

	if len(orders) == 0 {
		return true
	}

	pickupPoint := fleet.Point{ID: pickupID, Kind: fleet.PointKindPickup, Lat: orders[0].Delivery.Lat, Lng: orders[0].Delivery.Lng}
	deliveries := make([]fleet.DeliveryPoint, 0, len(orders))
	orderByDeliveryID := make(map[string]fleet.Order, len(orders))
	for _, o := range orders {
		d := o.Delivery
		d.PickupHint = pickupID
		deliveries = append(deliveries, d)
		orderByDeliveryID[d.ID] = o
	}

	req := types.OptimizationRequest{
		PickupPoints:   []fleet.Point{pickupPoint},
		DeliveryPoints: deliveries,
		Fleet:          vehicles,
		BusinessRules:  businessRules,
		Preferences:    types.Preferences{Distribution: types.DistributionBestMatch},
	}

	result, err := coord.Optimize(ctx, req)
	if err != nil {
		return false
	}

	for _, route := range result.Routes {
		for _, wp := range route.Waypoints {
			if wp.Kind != types.WaypointDelivery {
				continue
			}
			o, ok := orderByDeliveryID[wp.PointRef]
			if !ok {
				continue
			}
			o.Status = fleet.OrderAssigned
			o.VehicleID = route.Vehicle.ID
			if err := st.PutOrder(ctx, o); err != nil {
				return false
			}
		}
	}

	if hub != nil {
		hub.Publish(events.Event{Type: events.TypeStateChanged, Payload: pickupID})
	}
	return true
}
