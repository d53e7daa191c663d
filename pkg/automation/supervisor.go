package automation

import (
	"context"
	"sync"
)

// Runnable is the subset of *Runner the supervisor drives; the four
// concrete engine packages each embed *Runner and so satisfy it directly.
type Runnable interface {
	Start(ctx context.Context)
	Stop()
	Status() Status
}

// Supervisor is the engine supervisor (C11): a named registry of the four
// automation engines offering a uniform start/stop/status surface instead
// of each caller reaching into individual engines.
type Supervisor struct {
	mu      sync.RWMutex
	engines map[string]Runnable
	order   []string
}

// NewSupervisor builds an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{engines: make(map[string]Runnable)}
}

// Register adds a named engine. Registering under a name that already
// exists replaces the previous entry without stopping it — callers should
// Stop the old engine themselves first if that matters.
func (s *Supervisor) Register(name string, engine Runnable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.engines[name]; !exists {
		s.order = append(s.order, name)
	}
	s.engines[name] = engine
}

// StartAll starts every registered engine.
func (s *Supervisor) StartAll(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		s.engines[name].Start(ctx)
	}
}

// StopAll stops every registered engine, in reverse registration order.
func (s *Supervisor) StopAll() {
	s.mu.RLock()
	names := append([]string(nil), s.order...)
	engines := make(map[string]Runnable, len(s.engines))
	for k, v := range s.engines {
		engines[k] = v
	}
	s.mu.RUnlock()

	for i := len(names) - 1; i >= 0; i-- {
		engines[names[i]].Stop()
	}
}

// Start starts a single named engine; a no-op if the name is unknown.
func (s *Supervisor) Start(ctx context.Context, name string) {
	s.mu.RLock()
	e, ok := s.engines[name]
	s.mu.RUnlock()
	if ok {
		e.Start(ctx)
	}
}

// Stop stops a single named engine; a no-op if the name is unknown.
func (s *Supervisor) Stop(name string) {
	s.mu.RLock()
	e, ok := s.engines[name]
	s.mu.RUnlock()
	if ok {
		e.Stop()
	}
}

// StatusAll returns every registered engine's current status, keyed by
// name.
func (s *Supervisor) StatusAll() map[string]Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Status, len(s.engines))
	for name, e := range s.engines {
		out[name] = e.Status()
	}
	return out
}
