package automation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRunner_ZeroValuesGetDefaults(t *testing.T) {
	r := NewRunner("test", 0, 0, func(context.Context, int) TickStats { return TickStats{} }, nil, nil)
	if r.interval != time.Second {
		t.Errorf("expected default interval 1s, got %v", r.interval)
	}
	if r.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", r.concurrency)
	}
}

func TestRunner_StartStop(t *testing.T) {
	var ticks int64
	r := NewRunner("test", 10*time.Millisecond, 4, func(context.Context, int) TickStats {
		atomic.AddInt64(&ticks, 1)
		return TickStats{Processed: 1}
	}, nil, nil)

	ctx := context.Background()
	r.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	if atomic.LoadInt64(&ticks) == 0 {
		t.Error("expected at least one tick before stop")
	}
	if r.Status().State != StateStopped {
		t.Errorf("expected stopped state, got %v", r.Status().State)
	}
}

func TestRunner_StartTwiceIsNoop(t *testing.T) {
	r := NewRunner("test", 10*time.Millisecond, 1, func(context.Context, int) TickStats { return TickStats{} }, nil, nil)
	ctx := context.Background()
	r.Start(ctx)
	firstStopCh := r.stopCh
	r.Start(ctx)
	if r.stopCh != firstStopCh {
		t.Error("second Start should not replace the running loop's channels")
	}
	r.Stop()
}

func TestRunner_PanicInTickIsRecovered(t *testing.T) {
	r := NewRunner("test", 10*time.Millisecond, 1, func(context.Context, int) TickStats {
		panic("boom")
	}, nil, nil)

	ctx := context.Background()
	r.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	status := r.Status()
	if status.TotalTicks == 0 {
		t.Fatal("expected at least one tick to have run")
	}
	if status.TotalFailed == 0 {
		t.Error("a panicking tick should count as a failure")
	}
}

func TestRunner_DegradedAfterTwoBadStreaks(t *testing.T) {
	r := NewRunner("test", time.Hour, 8, func(context.Context, int) TickStats { return TickStats{} }, nil, nil)

	bad := TickStats{Processed: 10, Failures: 10}
	r.mu.Lock()
	r.applyDegradedPolicy(bad)
	r.applyDegradedPolicy(bad)
	state := r.state
	concurrency := r.concurrency
	r.mu.Unlock()

	if state != StateDegraded {
		t.Errorf("expected degraded after two bad streaks, got %v", state)
	}
	if concurrency != 4 {
		t.Errorf("expected concurrency halved to 4, got %d", concurrency)
	}
}

func TestRunner_RecoversAfterTenGoodTicks(t *testing.T) {
	r := NewRunner("test", time.Hour, 8, func(context.Context, int) TickStats { return TickStats{} }, nil, nil)

	bad := TickStats{Processed: 10, Failures: 10}
	good := TickStats{Processed: 10, Failures: 0}

	r.mu.Lock()
	r.applyDegradedPolicy(bad)
	r.applyDegradedPolicy(bad)
	for i := 0; i < 10; i++ {
		r.applyDegradedPolicy(good)
	}
	state := r.state
	concurrency := r.concurrency
	r.mu.Unlock()

	if state != StateRunning {
		t.Errorf("expected recovery to running, got %v", state)
	}
	if concurrency != 8 {
		t.Errorf("expected concurrency restored to 8, got %d", concurrency)
	}
}

func TestTickStats_FailureRate(t *testing.T) {
	empty := TickStats{}
	if empty.FailureRate() != 0 {
		t.Errorf("expected 0 failure rate for empty tick, got %v", empty.FailureRate())
	}

	half := TickStats{Processed: 10, Failures: 5}
	if half.FailureRate() != 0.5 {
		t.Errorf("expected 0.5 failure rate, got %v", half.FailureRate())
	}
}
