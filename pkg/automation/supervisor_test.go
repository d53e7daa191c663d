package automation

import (
	"context"
	"sync"
	"testing"
)

type fakeEngine struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (f *fakeEngine) Start(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeEngine) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started && !f.stopped {
		return Status{State: StateRunning}
	}
	return Status{State: StateStopped}
}

func TestSupervisor_StartAllStopAll(t *testing.T) {
	s := NewSupervisor()
	a := &fakeEngine{}
	b := &fakeEngine{}
	s.Register("a", a)
	s.Register("b", b)

	s.StartAll(context.Background())
	if !a.started || !b.started {
		t.Fatal("expected both engines started")
	}

	s.StopAll()
	if !a.stopped || !b.stopped {
		t.Fatal("expected both engines stopped")
	}
}

func TestSupervisor_StartStopSingle(t *testing.T) {
	s := NewSupervisor()
	a := &fakeEngine{}
	s.Register("a", a)

	s.Start(context.Background(), "a")
	if !a.started {
		t.Fatal("expected engine a started")
	}

	s.Stop("a")
	if !a.stopped {
		t.Fatal("expected engine a stopped")
	}
}

func TestSupervisor_UnknownNameIsNoop(t *testing.T) {
	s := NewSupervisor()
	s.Start(context.Background(), "missing")
	s.Stop("missing")
}

func TestSupervisor_StatusAll(t *testing.T) {
	s := NewSupervisor()
	a := &fakeEngine{}
	s.Register("a", a)
	s.Start(context.Background(), "a")

	statuses := s.StatusAll()
	if statuses["a"].State != StateRunning {
		t.Errorf("expected engine a running, got %v", statuses["a"].State)
	}
}

func TestSupervisor_RegisterTwiceKeepsOneOrderSlot(t *testing.T) {
	s := NewSupervisor()
	a1 := &fakeEngine{}
	a2 := &fakeEngine{}
	s.Register("a", a1)
	s.Register("a", a2)

	if len(s.order) != 1 {
		t.Fatalf("expected one order slot for repeated registration, got %d", len(s.order))
	}

	s.StartAll(context.Background())
	if a1.started {
		t.Error("replaced engine should not be started")
	}
	if !a2.started {
		t.Error("replacing engine should be started")
	}
}
