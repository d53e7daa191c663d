// Package reopt implements the route-reopt engine (C10): every tick it
// re-sequences each busy driver's remaining deliveries from their current
// location and publishes a state-changed event for the driver when the
// new sequence meaningfully shortens the remaining route. The new
// sequence itself is not written back to the store.
package reopt

import (
	"context"
	"sync"
	"time"

	"fleetops/pkg/automation"
	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
	"fleetops/pkg/geo"
	"fleetops/pkg/optimizer/matrix"
	"fleetops/pkg/optimizer/sequence"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

// DefaultInterval is the §4.7 route-reopt tick cadence.
const DefaultInterval = 60 * time.Second

// moveThresholdKm is the minimum driver displacement since the last
// reopt that makes a driver eligible for re-sequencing this tick.
const moveThresholdKm = 0.5

// improvementThreshold is the fractional distance reduction a re-sequence
// must exceed before the engine publishes state-changed for the driver.
const improvementThreshold = 0.05

// Engine wraps an automation.Runner configured for route re-optimization.
type Engine struct {
	*automation.Runner

	mu       sync.Mutex
	lastSeen map[string]driver.Location // driverID -> location at last reopt
}

// New builds the route-reopt engine.
func New(st store.Store, drivers *driver.Registry, hub *events.Hub, br *breaker.Breaker, interval time.Duration, concurrency int) *Engine {
	e := &Engine{lastSeen: make(map[string]driver.Location)}
	tick := func(ctx context.Context, concurrency int) automation.TickStats {
		return e.tick(ctx, st, drivers, hub, br)
	}
	e.Runner = automation.NewRunner("route_reopt", interval, concurrency, tick, hub, nil)
	return e
}

func (e *Engine) tick(ctx context.Context, st store.Store, drivers *driver.Registry, hub *events.Hub, br *breaker.Breaker) automation.TickStats {
	var stats automation.TickStats

	for _, d := range drivers.Snapshot() {
		if d.State != driver.StateBusy {
			continue
		}
		if !e.eligible(d) {
			continue
		}

		stats.Processed++
		if e.reoptOne(ctx, d, st, hub, br) {
			continue
		}
		stats.Failures++
	}

	return stats
}

// eligible reports whether a driver moved far enough since their last
// reopt to be worth re-sequencing this tick.
func (e *Engine) eligible(d driver.DriverState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	last, ok := e.lastSeen[d.DriverID]
	if !ok {
		e.lastSeen[d.DriverID] = d.LastLocation
		return true
	}

	moved := geo.HaversineKm(last.Lat, last.Lng, d.LastLocation.Lat, d.LastLocation.Lng)
	return moved >= moveThresholdKm
}

func (e *Engine) markSeen(driverID string, loc driver.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen[driverID] = loc
}

func (e *Engine) reoptOne(ctx context.Context, d driver.DriverState, st store.Store, hub *events.Hub, br *breaker.Breaker) bool {
	var assigned []fleet.Order
	err := br.Execute(ctx, func(ctx context.Context) error {
		orders, err := st.ListOrdersByStatus(ctx, fleet.OrderAssigned)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if o.DriverID == d.DriverID {
				assigned = append(assigned, o)
			}
		}
		inProgress, err := st.ListOrdersByStatus(ctx, fleet.OrderInProgress)
		if err != nil {
			return err
		}
		for _, o := range inProgress {
			if o.DriverID == d.DriverID {
				assigned = append(assigned, o)
			}
		}
		return nil
	}, nil)
	if err != nil {
		return false
	}

	if len(assigned) < 2 {
		e.markSeen(d.DriverID, d.LastLocation)
		return true
	}

	origin := fleet.Point{ID: "driver-" + d.DriverID, Lat: d.LastLocation.Lat, Lng: d.LastLocation.Lng}
	deliveries := make([]fleet.DeliveryPoint, 0, len(assigned))
	for _, o := range assigned {
		deliveries = append(deliveries, o.Delivery)
	}

	points := make([]fleet.Point, 0, len(deliveries)+1)
	points = append(points, origin)
	for _, dp := range deliveries {
		points = append(points, dp.Point)
	}
	m := matrix.Build(points)

	currentOrderIDs := make([]string, 0, len(deliveries)+1)
	currentOrderIDs = append(currentOrderIDs, origin.ID)
	for _, dp := range deliveries {
		currentOrderIDs = append(currentOrderIDs, dp.ID)
	}
	currentDistance := pathDistance(currentOrderIDs, m)

	seq := sequence.Build(origin, deliveries, m, nil)

	if currentDistance <= 0 {
		e.markSeen(d.DriverID, d.LastLocation)
		return true
	}

	improvement := (currentDistance - seq.TotalDistanceKm) / currentDistance
	e.markSeen(d.DriverID, d.LastLocation)

	if improvement <= improvementThreshold {
		return true
	}

	if hub != nil {
		hub.Publish(events.Event{Type: events.TypeStateChanged, Payload: d.DriverID})
	}
	return true
}

func pathDistance(ids []string, m *matrix.Matrix) float64 {
	var total float64
	for i := 0; i+1 < len(ids); i++ {
		total += m.AtID(ids[i], ids[i+1])
	}
	return total
}

