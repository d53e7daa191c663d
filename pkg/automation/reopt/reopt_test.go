package reopt

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

func busyDriver(id string, lat, lng float64) driver.DriverState {
	return driver.DriverState{
		DriverID:     id,
		State:        driver.StateBusy,
		Active:       true,
		LastLocation: driver.Location{Lat: lat, Lng: lng, Updated: time.Now()},
		StateSince:   time.Now(),
	}
}

func TestEngine_SkipsDriverWithFewerThanTwoAssignedOrders(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	reg.Upsert(busyDriver("d1", 0, 0))

	o := fleet.Order{
		ID: "o1", Status: fleet.OrderAssigned, DriverID: "d1",
		Delivery: fleet.DeliveryPoint{Point: fleet.Point{ID: "o1", Lat: 0.01, Lng: 0.01}},
	}
	if err := st.PutOrder(context.Background(), o); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	e := New(st, reg, nil, newTestBreaker(), time.Hour, 4)
	stats := e.tick(context.Background(), st, reg, nil, newTestBreaker())

	if stats.Processed != 1 {
		t.Fatalf("expected the one busy driver to be evaluated, got %d", stats.Processed)
	}
	if stats.Failures != 0 {
		t.Errorf("a single-order driver should not count as a failure, got %d", stats.Failures)
	}
}

func TestEngine_IgnoresDriversNotBusy(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	reg.Upsert(driver.DriverState{DriverID: "d1", State: driver.StateAvailable, Active: true, StateSince: time.Now()})

	e := New(st, reg, nil, newTestBreaker(), time.Hour, 4)
	stats := e.tick(context.Background(), st, reg, nil, newTestBreaker())

	if stats.Processed != 0 {
		t.Errorf("expected no available-state drivers to be evaluated, got %d", stats.Processed)
	}
}

func TestEngine_SecondTickSkipsUnmovedDriver(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	reg.Upsert(busyDriver("d1", 0, 0))

	for i, id := range []string{"o1", "o2"} {
		o := fleet.Order{
			ID: id, Status: fleet.OrderAssigned, DriverID: "d1",
			Delivery: fleet.DeliveryPoint{Point: fleet.Point{ID: id, Lat: float64(i+1) * 0.05, Lng: float64(i+1) * 0.05}},
		}
		if err := st.PutOrder(context.Background(), o); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	e := New(st, reg, nil, newTestBreaker(), time.Hour, 4)

	first := e.tick(context.Background(), st, reg, nil, newTestBreaker())
	if first.Processed != 1 {
		t.Fatalf("expected first tick to evaluate the driver, got %d", first.Processed)
	}

	second := e.tick(context.Background(), st, reg, nil, newTestBreaker())
	if second.Processed != 0 {
		t.Errorf("expected a driver that hasn't moved to be skipped on the second tick, got %d", second.Processed)
	}
}

func TestEngine_EligibleAfterMovingPastThreshold(t *testing.T) {
	st := store.NewInMemoryStore()
	reg := driver.NewRegistry(guard())
	reg.Upsert(busyDriver("d1", 0, 0))

	for i, id := range []string{"o1", "o2"} {
		o := fleet.Order{
			ID: id, Status: fleet.OrderAssigned, DriverID: "d1",
			Delivery: fleet.DeliveryPoint{Point: fleet.Point{ID: id, Lat: float64(i+1) * 0.05, Lng: float64(i+1) * 0.05}},
		}
		if err := st.PutOrder(context.Background(), o); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	hub := events.NewHub()
	e := New(st, reg, hub, newTestBreaker(), time.Hour, 4)
	e.tick(context.Background(), st, reg, hub, newTestBreaker())

	// Move the driver well past the 500m eligibility threshold.
	reg.Upsert(busyDriver("d1", 1.0, 1.0))

	second := e.tick(context.Background(), st, reg, hub, newTestBreaker())
	if second.Processed != 1 {
		t.Errorf("expected driver to be re-evaluated after moving past the threshold, got %d", second.Processed)
	}
}
