package driver

import (
	"testing"
	"time"
)

func TestRegistry_UpsertAndGet(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	now := time.Now()
	r.Upsert(DriverState{DriverID: "d1", State: StateAvailable, Active: true, LastLocation: Location{Updated: now}})

	got, ok := r.Get("d1")
	if !ok {
		t.Fatal("expected driver d1 to be found")
	}
	if got.DriverID != "d1" {
		t.Errorf("got DriverID %q, want d1", got.DriverID)
	}
}

func TestRegistry_GetUnknownReturnsFalse(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	if _, ok := r.Get("ghost"); ok {
		t.Error("expected unknown driver lookup to fail")
	}
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	r.Upsert(DriverState{DriverID: "d1", State: StateAvailable})

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 driver in snapshot, got %d", len(snap))
	}
	snap[0].State = StateBusy

	got, _ := r.Get("d1")
	if got.State != StateAvailable {
		t.Error("mutating a snapshot entry should not affect the registry's stored state")
	}
}

func TestRegistry_ApplyPerformsLegalTransition(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	now := time.Now()
	r.Upsert(DriverState{DriverID: "d1", State: StateOffline, Active: true})

	next, ok := r.Apply("d1", TransitionInput{Event: EventShiftStart, Now: now})
	if !ok || next.State != StateAvailable {
		t.Fatalf("expected offline->available, got state=%v ok=%v", next.State, ok)
	}

	got, _ := r.Get("d1")
	if got.State != StateAvailable {
		t.Error("expected the registry's stored state to reflect the applied transition")
	}
}

func TestRegistry_ApplyRejectsIllegalTransition(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	now := time.Now()
	r.Upsert(DriverState{DriverID: "d1", State: StateOffline, Active: true})

	_, ok := r.Apply("d1", TransitionInput{Event: EventDeliveryComplete, Now: now})
	if ok {
		t.Error("expected an illegal transition to be rejected")
	}

	got, _ := r.Get("d1")
	if got.State != StateOffline {
		t.Error("expected state to be unchanged after a rejected transition")
	}
}

func TestRegistry_ApplyUnknownDriverReturnsFalse(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	_, ok := r.Apply("ghost", TransitionInput{Event: EventShiftStart, Now: time.Now()})
	if ok {
		t.Error("expected applying a transition to an unknown driver to fail")
	}
}

func TestRegistry_AvailableFiltersByGuard(t *testing.T) {
	r := NewRegistry(DefaultGuard())
	now := time.Now()
	r.Upsert(DriverState{
		DriverID:     "fresh",
		State:        StateAvailable,
		Active:       true,
		LastLocation: Location{Updated: now},
	})
	r.Upsert(DriverState{
		DriverID: "busy",
		State:    StateBusy,
		Active:   true,
	})

	available := r.Available(now)
	if len(available) != 1 || available[0].DriverID != "fresh" {
		t.Errorf("expected only the fresh available driver, got %+v", available)
	}
}
