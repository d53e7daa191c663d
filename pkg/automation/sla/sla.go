// Package sla implements the SLA escalation engine (C10): every tick it
// bands each open order's remaining time-to-deadline and publishes
// breach-imminent / breach-confirmed events exactly once per order.
package sla

import (
	"context"
	"time"

	"fleetops/pkg/automation"
	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

// DefaultInterval is the §4.7 SLA-escalation tick cadence.
const DefaultInterval = 15 * time.Second

// Band is the closed vocabulary of SLA health states for an open order.
type Band string

const (
	BandOK        Band = "ok"
	BandImminent  Band = "imminent"
	BandConfirmed Band = "confirmed"
)

// EstimateRemainingFunc returns the estimated minutes still needed to
// deliver an order, e.g. from its current route position. A nil estimator
// defaults every order's remaining estimate to 0.
type EstimateRemainingFunc func(ctx context.Context, o fleet.Order) float64

// Engine wraps an automation.Runner configured for SLA escalation.
type Engine struct {
	*automation.Runner
}

// New builds the SLA engine. imminentBand is the §4.7 threshold below
// which an order is banded "imminent" (config.SLAConfig.ImminentBandMin).
func New(st store.Store, estimate EstimateRemainingFunc, hub *events.Hub, br *breaker.Breaker,
	interval time.Duration, concurrency int, imminentBand time.Duration) *Engine {

	if estimate == nil {
		estimate = func(context.Context, fleet.Order) float64 { return 0 }
	}

	e := &Engine{}
	tick := func(ctx context.Context, concurrency int) automation.TickStats {
		return e.tick(ctx, st, estimate, hub, br, imminentBand)
	}
	e.Runner = automation.NewRunner("sla", interval, concurrency, tick, hub, nil)
	return e
}

func (e *Engine) tick(ctx context.Context, st store.Store, estimate EstimateRemainingFunc,
	hub *events.Hub, br *breaker.Breaker, imminentBand time.Duration) automation.TickStats {

	var stats automation.TickStats

	var open []fleet.Order
	err := br.Execute(ctx, func(ctx context.Context) error {
		for _, status := range []fleet.OrderStatus{fleet.OrderPending, fleet.OrderAssigned, fleet.OrderInProgress} {
			orders, err := st.ListOrdersByStatus(ctx, status)
			if err != nil {
				return err
			}
			open = append(open, orders...)
		}
		return nil
	}, nil)
	if err != nil {
		return stats
	}

	now := time.Now()
	for _, o := range open {
		stats.Processed++
		if e.evaluateOne(ctx, o, now, estimate, st, hub, imminentBand) {
			continue
		}
		stats.Failures++
	}

	return stats
}

func (e *Engine) evaluateOne(ctx context.Context, o fleet.Order, now time.Time, estimate EstimateRemainingFunc,
	st store.Store, hub *events.Hub, imminentBand time.Duration) bool {

	remainingMin := estimate(ctx, o)
	timeRemaining := o.SLADeadline.Sub(now) - time.Duration(remainingMin*float64(time.Minute))

	band := bandFor(timeRemaining, imminentBand)

	switch band {
	case BandConfirmed:
		if o.BreachConfirmed {
			return true
		}
		o.BreachConfirmed = true
		o.BreachImminent = true
		if err := st.PutOrder(ctx, o); err != nil {
			return false
		}
		if hub != nil {
			hub.Publish(events.Event{Type: events.TypeSLABreachConfirmed, Payload: slaPayload(o, band, timeRemaining)})
		}

	case BandImminent:
		if o.BreachImminent {
			return true
		}
		o.BreachImminent = true
		if err := st.PutOrder(ctx, o); err != nil {
			return false
		}
		if hub != nil {
			hub.Publish(events.Event{Type: events.TypeSLABreachImminent, Payload: slaPayload(o, band, timeRemaining)})
		}
	}

	return true
}

// bandFor classifies a remaining-time duration into the §4.7 SLA bands:
// confirmed once the deadline has already passed, imminent inside the
// configured band, ok otherwise.
func bandFor(remaining time.Duration, imminentBand time.Duration) Band {
	switch {
	case remaining < 0:
		return BandConfirmed
	case remaining < imminentBand:
		return BandImminent
	default:
		return BandOK
	}
}

// Payload is the event body carried by breach-imminent/breach-confirmed
// events (§4.7: "each event carries orderId/driverId/severity/timeRemaining").
type Payload struct {
	OrderID       string        `json:"orderId"`
	DriverID      string        `json:"driverId"`
	Severity      Band          `json:"severity"`
	TimeRemaining time.Duration `json:"timeRemaining"`
}

func slaPayload(o fleet.Order, band Band, remaining time.Duration) Payload {
	return Payload{OrderID: o.ID, DriverID: o.DriverID, Severity: band, TimeRemaining: remaining}
}
