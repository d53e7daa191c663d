package breaker

import (
	"sync"
	"time"

	"fleetops/pkg/config"
)

// Manager owns one Breaker per dependency name, created lazily on first
// use. Its own lock only ever guards the map itself, never a breaker's
// internal state, so creating a breaker for a new dependency never
// blocks a call already in flight through an existing one.
type Manager struct {
	mu       sync.Mutex
	cfg      config.BreakerConfig
	breakers map[string]*Breaker
	onEvent  TransitionFunc
}

// NewManager builds a Manager reading its per-dependency tuning from cfg.
func NewManager(cfg config.BreakerConfig, onEvent TransitionFunc) *Manager {
	return &Manager{cfg: cfg, breakers: make(map[string]*Breaker), onEvent: onEvent}
}

// Get returns the named breaker, constructing it on first use from the
// manager's per-dependency configuration.
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}

	tuning := m.cfg.ForDependency(name)
	b := New(name, Config{
		FailureThreshold: tuning.FailureThreshold,
		SuccessThreshold: tuning.SuccessThreshold,
		Timeout:          msToDuration(tuning.TimeoutMs),
		ResetTimeout:     msToDuration(tuning.ResetTimeoutMs),
		MonitoringWindow: msToDuration(tuning.MonitoringWindowMs),
	}, m.onEvent)
	m.breakers[name] = b
	return b
}

// Snapshots returns every constructed breaker's current state, used by
// a health/status endpoint.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	names := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		names = append(names, b)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(names))
	for _, b := range names {
		out = append(out, b.Snapshot())
	}
	return out
}

func msToDuration(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
