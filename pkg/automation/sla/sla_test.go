package sla

import (
	"context"
	"testing"
	"time"

	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

func newTestBreaker() *breaker.Breaker {
	return breaker.New("store", breaker.DefaultConfig(), nil)
}

func zeroEstimate(ctx context.Context, o fleet.Order) float64 { return 0 }

func TestTick_ConfirmedBreachPublishesOnceAndPersistsFlag(t *testing.T) {
	st := store.NewInMemoryStore()
	order := fleet.Order{
		ID:          "order-1",
		Status:      fleet.OrderInProgress,
		SLADeadline: time.Now().Add(-time.Minute), // already past deadline
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := events.NewHub()
	sub := hub.Subscribe("test", 10)

	e := New(st, zeroEstimate, hub, newTestBreaker(), time.Hour, 4, 10*time.Minute)
	stats := e.tick(context.Background(), st, zeroEstimate, hub, newTestBreaker(), 10*time.Minute)

	if stats.Processed != 1 {
		t.Fatalf("expected 1 order processed, got %d", stats.Processed)
	}

	got, err := st.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !got.BreachConfirmed || !got.BreachImminent {
		t.Errorf("expected both breach flags set, got confirmed=%v imminent=%v", got.BreachConfirmed, got.BreachImminent)
	}

	confirmedCount := 0
	for _, ev := range sub.Drain() {
		if ev.Type == events.TypeSLABreachConfirmed {
			confirmedCount++
		}
	}
	if confirmedCount != 1 {
		t.Errorf("expected exactly 1 sla-breach-confirmed event, got %d", confirmedCount)
	}
}

func TestTick_ImminentBreachPublishesOnce(t *testing.T) {
	st := store.NewInMemoryStore()
	order := fleet.Order{
		ID:          "order-2",
		Status:      fleet.OrderAssigned,
		SLADeadline: time.Now().Add(5 * time.Minute),
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := events.NewHub()
	sub := hub.Subscribe("test", 10)

	e := New(st, zeroEstimate, hub, newTestBreaker(), time.Hour, 4, 10*time.Minute)
	e.tick(context.Background(), st, zeroEstimate, hub, newTestBreaker(), 10*time.Minute)

	got, err := st.GetOrder(context.Background(), "order-2")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !got.BreachImminent || got.BreachConfirmed {
		t.Errorf("expected only the imminent flag set, got confirmed=%v imminent=%v", got.BreachConfirmed, got.BreachImminent)
	}

	imminentCount := 0
	for _, ev := range sub.Drain() {
		if ev.Type == events.TypeSLABreachImminent {
			imminentCount++
		}
	}
	if imminentCount != 1 {
		t.Errorf("expected exactly 1 sla-breach-imminent event, got %d", imminentCount)
	}
}

func TestTick_HealthyOrderPublishesNothing(t *testing.T) {
	st := store.NewInMemoryStore()
	order := fleet.Order{
		ID:          "order-3",
		Status:      fleet.OrderPending,
		SLADeadline: time.Now().Add(time.Hour),
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := events.NewHub()
	sub := hub.Subscribe("test", 10)

	e := New(st, zeroEstimate, hub, newTestBreaker(), time.Hour, 4, 10*time.Minute)
	e.tick(context.Background(), st, zeroEstimate, hub, newTestBreaker(), 10*time.Minute)

	if got := sub.Drain(); len(got) != 0 {
		t.Errorf("expected no SLA events for a healthy order, got %+v", got)
	}
}

func TestTick_AlreadyConfirmedOrderIsNotRepublished(t *testing.T) {
	st := store.NewInMemoryStore()
	order := fleet.Order{
		ID:              "order-4",
		Status:          fleet.OrderInProgress,
		SLADeadline:     time.Now().Add(-time.Minute),
		BreachConfirmed: true,
		BreachImminent:  true,
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := events.NewHub()
	sub := hub.Subscribe("test", 10)

	e := New(st, zeroEstimate, hub, newTestBreaker(), time.Hour, 4, 10*time.Minute)
	e.tick(context.Background(), st, zeroEstimate, hub, newTestBreaker(), 10*time.Minute)

	if got := sub.Drain(); len(got) != 0 {
		t.Errorf("expected no repeated publish for an already-confirmed breach, got %+v", got)
	}
}

func TestBandFor_Thresholds(t *testing.T) {
	band := 10 * time.Minute

	if got := bandFor(-time.Second, band); got != BandConfirmed {
		t.Errorf("expected confirmed for negative remaining, got %v", got)
	}
	if got := bandFor(5*time.Minute, band); got != BandImminent {
		t.Errorf("expected imminent inside the band, got %v", got)
	}
	if got := bandFor(time.Hour, band); got != BandOK {
		t.Errorf("expected ok well outside the band, got %v", got)
	}
}
