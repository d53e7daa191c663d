// Package dispatch implements the dispatch engine (C10): every tick it
// assigns pending orders to the best-scoring available driver per the
// §4.5 guard and scoring formula.
package dispatch

import (
	"context"
	"sort"
	"time"

	"fleetops/pkg/automation"
	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
	"fleetops/pkg/geo"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

// DefaultInterval is the §4.7 dispatch tick cadence.
const DefaultInterval = 5 * time.Second

// maxDistanceKm bounds the distance factor of the assignment score; a
// driver farther than this from a pickup scores no worse than one
// exactly at the bound (§4.5's distance factor floors at 0).
const maxDistanceKm = 25.0

// Engine wraps an automation.Runner configured for dispatch.
type Engine struct {
	*automation.Runner
}

// New builds the dispatch engine. store and drivers are the shared
// collaborators; breaker guards every Store call.
func New(st store.Store, drivers *driver.Registry, hub *events.Hub, br *breaker.Breaker, interval time.Duration, concurrency int) *Engine {
	e := &Engine{}
	tick := func(ctx context.Context, concurrency int) automation.TickStats {
		return e.tick(ctx, st, drivers, hub, br, concurrency)
	}
	e.Runner = automation.NewRunner("dispatch", interval, concurrency, tick, hub, nil)
	return e
}

func (e *Engine) tick(ctx context.Context, st store.Store, drivers *driver.Registry, hub *events.Hub, br *breaker.Breaker, concurrency int) automation.TickStats {
	var stats automation.TickStats

	var pending []fleet.Order
	err := br.Execute(ctx, func(ctx context.Context) error {
		var err error
		pending, err = st.ListOrdersByStatus(ctx, fleet.OrderPending)
		return err
	}, nil)
	if err != nil {
		return stats // breaker_open or store error: tick-level no-op (§4.7)
	}

	limit := concurrency
	if limit <= 0 {
		limit = 1
	}
	if len(pending) > limit {
		pending = pending[:limit]
	}

	for _, order := range pending {
		stats.Processed++
		if e.assignOne(ctx, order, st, drivers, hub) {
			continue
		}
		stats.Failures++
	}

	return stats
}

// assignOne scores every candidate against order and transitions the
// winner to busy, publishing order-assigned. It returns true (not a
// failure) when no candidate passes the guard — per §4.7 the order
// simply stays pending and is retried next tick.
func (e *Engine) assignOne(ctx context.Context, order fleet.Order, st store.Store, drivers *driver.Registry, hub *events.Hub) bool {
	now := time.Now()
	candidates := drivers.Available(now)
	if len(candidates) == 0 {
		if hub != nil {
			hub.Publish(events.Event{Type: events.TypeOrderUnassigned, Payload: order.ID})
		}
		return true
	}

	pickup := fleet.Point{Lat: order.Delivery.Lat, Lng: order.Delivery.Lng}

	// Available() is built from map iteration, so its order is
	// unspecified; sort by DriverID first so a scanning tie is always
	// broken in favor of the lower driverId (§4.5).
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DriverID < candidates[j].DriverID })

	best := candidates[0]
	bestScore := -1.0
	for _, d := range candidates {
		dist := geo.HaversineKm(d.LastLocation.Lat, d.LastLocation.Lng, pickup.Lat, pickup.Lng)
		gap := 20 - d.CompletedToday
		score := driver.AssignmentScore(d, dist, maxDistanceKm, gap)
		if score > bestScore {
			bestScore = score
			best = d
		}
	}

	next, ok := drivers.Apply(best.DriverID, driver.TransitionInput{
		Event: driver.EventAssignmentAccepted,
		Now:   now,
	})
	if !ok {
		// Lost the race to another tick/engine; retry next tick.
		return true
	}

	order.Status = fleet.OrderAssigned
	order.DriverID = next.DriverID
	assignedAt := now
	order.AssignedAt = &assignedAt

	if err := st.PutOrder(ctx, order); err != nil {
		return false
	}

	if hub != nil {
		hub.Publish(events.Event{Type: events.TypeOrderAssigned, Payload: order.ID})
		hub.Publish(events.Event{Type: events.TypeStateChanged, Payload: next.DriverID})
	}
	return true
}
