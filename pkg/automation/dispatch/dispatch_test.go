package dispatch

import (
	"context"
	"testing"
	"time"

	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

func newTestBreaker() *breaker.Breaker {
	return breaker.New("store", breaker.DefaultConfig(), nil)
}

func seedAvailableDriver(t *testing.T, reg *driver.Registry, id string, lat, lng float64) {
	t.Helper()
	reg.Upsert(driver.DriverState{
		DriverID:     id,
		State:        driver.StateAvailable,
		Active:       true,
		LastLocation: driver.Location{Lat: lat, Lng: lng, Updated: time.Now()},
		Rating:       4,
		StateSince:   time.Now(),
	})
}

func guard() driver.Guard {
	return driver.Guard{
		MaxWorkingHours:     8,
		BreakThresholdCount: 6,
		TargetDeliveries:    20,
		LocationFreshness:   5 * time.Minute,
		ReturnRadiusKm:      15,
		BreakDuration:       15 * time.Minute,
	}
}

func TestEngine_AssignsPendingOrderToNearestAvailableDriver(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	seedAvailableDriver(t, reg, "near", 1.0, 1.0)
	seedAvailableDriver(t, reg, "far", 10.0, 10.0)

	order := fleet.Order{
		ID:     "order-1",
		Status: fleet.OrderPending,
		Delivery: fleet.DeliveryPoint{
			Point: fleet.Point{ID: "d1", Lat: 1.01, Lng: 1.01},
		},
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := events.NewHub()
	sub := hub.Subscribe("test", 10)

	e := New(st, reg, hub, newTestBreaker(), time.Hour, 4)
	stats := e.tick(context.Background(), st, reg, hub, newTestBreaker(), 4)

	if stats.Processed != 1 {
		t.Fatalf("expected 1 order processed, got %d", stats.Processed)
	}

	got, err := st.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != fleet.OrderAssigned {
		t.Errorf("expected order assigned, got %v", got.Status)
	}
	if got.DriverID != "near" {
		t.Errorf("expected nearest driver 'near' to win, got %q", got.DriverID)
	}

	found := false
	for _, ev := range sub.Drain() {
		if ev.Type == events.TypeOrderAssigned {
			found = true
		}
	}
	if !found {
		t.Error("expected an order-assigned event to be published")
	}

	_ = e // engine constructed but tick invoked directly for determinism
}

func TestEngine_NoAvailableDriversLeavesOrderPendingAndPublishesUnassigned(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())

	order := fleet.Order{
		ID:     "order-2",
		Status: fleet.OrderPending,
		Delivery: fleet.DeliveryPoint{
			Point: fleet.Point{ID: "d2", Lat: 2, Lng: 2},
		},
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := events.NewHub()
	sub := hub.Subscribe("test", 10)

	e := New(st, reg, hub, newTestBreaker(), time.Hour, 4)
	e.tick(context.Background(), st, reg, hub, newTestBreaker(), 4)

	got, err := st.GetOrder(context.Background(), "order-2")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != fleet.OrderPending {
		t.Errorf("expected order to remain pending, got %v", got.Status)
	}

	found := false
	for _, ev := range sub.Drain() {
		if ev.Type == events.TypeOrderUnassigned {
			found = true
		}
	}
	if !found {
		t.Error("expected an order-unassigned event to be published")
	}
}

func TestEngine_TiedScoresBreakByDriverID(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	// Every candidate sits at the same location, so every driver scores
	// identically; the tie must resolve to the lowest driverId every run.
	seedAvailableDriver(t, reg, "zz-driver", 1.0, 1.0)
	seedAvailableDriver(t, reg, "aa-driver", 1.0, 1.0)
	seedAvailableDriver(t, reg, "mm-driver", 1.0, 1.0)

	order := fleet.Order{
		ID:     "order-3",
		Status: fleet.OrderPending,
		Delivery: fleet.DeliveryPoint{
			Point: fleet.Point{ID: "d3", Lat: 1.0, Lng: 1.0},
		},
	}
	if err := st.PutOrder(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	e := New(st, reg, nil, newTestBreaker(), time.Hour, 4)

	for i := 0; i < 10; i++ {
		got, err := st.GetOrder(context.Background(), "order-3")
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		got.Status = fleet.OrderPending
		got.DriverID = ""
		got.AssignedAt = nil
		if err := st.PutOrder(context.Background(), got); err != nil {
			t.Fatalf("reset order: %v", err)
		}
		reg.Upsert(driver.DriverState{
			DriverID: "aa-driver", State: driver.StateAvailable, Active: true,
			LastLocation: driver.Location{Lat: 1.0, Lng: 1.0, Updated: time.Now()}, Rating: 4, StateSince: time.Now(),
		})
		reg.Upsert(driver.DriverState{
			DriverID: "mm-driver", State: driver.StateAvailable, Active: true,
			LastLocation: driver.Location{Lat: 1.0, Lng: 1.0, Updated: time.Now()}, Rating: 4, StateSince: time.Now(),
		})
		reg.Upsert(driver.DriverState{
			DriverID: "zz-driver", State: driver.StateAvailable, Active: true,
			LastLocation: driver.Location{Lat: 1.0, Lng: 1.0, Updated: time.Now()}, Rating: 4, StateSince: time.Now(),
		})

		e.tick(context.Background(), st, reg, nil, newTestBreaker(), 4)

		assigned, err := st.GetOrder(context.Background(), "order-3")
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		if assigned.DriverID != "aa-driver" {
			t.Fatalf("expected tie to resolve to lowest driverId 'aa-driver', got %q (run %d)", assigned.DriverID, i)
		}
	}
}

func TestEngine_ConcurrencyCapsOrdersProcessedPerTick(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	seedAvailableDriver(t, reg, "d1", 0, 0)

	for i := 0; i < 5; i++ {
		o := fleet.Order{
			ID:     string(rune('a' + i)),
			Status: fleet.OrderPending,
			Delivery: fleet.DeliveryPoint{
				Point: fleet.Point{ID: "p" + string(rune('a'+i)), Lat: 0, Lng: 0},
			},
		}
		if err := st.PutOrder(context.Background(), o); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	e := New(st, reg, nil, newTestBreaker(), time.Hour, 2)
	stats := e.tick(context.Background(), st, reg, nil, newTestBreaker(), 2)

	if stats.Processed != 2 {
		t.Errorf("expected concurrency to cap processed orders to 2, got %d", stats.Processed)
	}
}
