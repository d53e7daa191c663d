// Package breaker implements the per-dependency circuit breaker (C8):
// a closed/open/half-open state machine guarding outbound calls to
// external dependencies, grounded on the teacher's sliding-window
// bucket-plus-cleanup-ticker idiom in pkg/ratelimit/memory.go, adapted
// from request-counting to success/failure-counting.
package breaker

import (
	"context"
	"sync"
	"time"

	"fleetops/pkg/apperror"
)

// State is one of the three breaker states (§4.8).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes a single breaker's thresholds.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	ResetTimeout     time.Duration
	MonitoringWindow time.Duration
}

// DefaultConfig matches the §4.8 documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		ResetTimeout:     30 * time.Second,
		MonitoringWindow: 60 * time.Second,
	}
}

// outcome is one recorded call result, kept for the sliding-window
// failure-rate computation behind isHealthy().
type outcome struct {
	at      time.Time
	success bool
}

// Snapshot is a read-only view of a breaker's current state, used for
// status reporting and C13 event payloads.
type Snapshot struct {
	Name          string
	State         State
	FailureCount  int
	SuccessCount  int
	NextAttemptAt time.Time
}

// TransitionFunc is invoked with the from/to state whenever a breaker
// transitions; the event hub subscribes through this to publish
// breaker_opened/breaker_recovered.
type TransitionFunc func(name string, from, to State)

// Breaker guards one dependency. All fields are mutated only while
// holding mu — the "single lock per breaker" policy of §5's
// Shared-resource policy.
type Breaker struct {
	mu     sync.Mutex
	name   string
	cfg    Config
	state  State

	failureCount  int
	successCount  int
	nextAttemptAt time.Time
	probeInFlight bool

	history []outcome

	onTransition TransitionFunc
}

// New constructs a breaker in the closed state.
func New(name string, cfg Config, onTransition TransitionFunc) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.MonitoringWindow <= 0 {
		cfg.MonitoringWindow = 60 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, state: StateClosed, onTransition: onTransition}
}

// Execute runs fn under the breaker's timeout, short-circuiting with
// CodeBreakerOpen if the breaker is open and its reset timeout has not
// yet elapsed. If fallback is non-nil, it is invoked whenever the
// breaker short-circuits or fn itself fails, and its result (if no
// error) is returned instead of the original failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error, fallback func(ctx context.Context) error) error {
	if !b.allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return apperror.New(apperror.CodeBreakerOpen, "circuit breaker "+b.name+" is open").WithField(b.name)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)
	b.record(err == nil)

	if err != nil && fallback != nil {
		return fallback(ctx)
	}
	return err
}

// allow decides whether a call may proceed, transitioning open->half_open
// when nextAttemptAt has elapsed (§4.8 "open: ... when now >=
// nextAttemptAt the next call transitions to half_open"). While
// half_open, only a single probe call is admitted at a time (§4.8 "a
// single probe call executes") — concurrent callers are turned away until
// record() reports that probe's outcome.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	case StateOpen:
		if time.Now().Before(b.nextAttemptAt) {
			return false
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return true
	default:
		return true
	}
}

// record applies the call's outcome to the state machine per the §4.8
// per-state transition table.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, outcome{at: time.Now(), success: success})
	b.pruneHistory()

	switch b.state {
	case StateClosed:
		if success {
			b.failureCount = 0
			return
		}
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.nextAttemptAt = time.Now().Add(b.cfg.ResetTimeout)
			b.transition(StateOpen)
		}

	case StateHalfOpen:
		b.probeInFlight = false
		if success {
			b.successCount++
			if b.successCount >= b.cfg.SuccessThreshold {
				b.failureCount = 0
				b.successCount = 0
				b.transition(StateClosed)
			}
			return
		}
		b.failureCount = 0
		b.successCount = 0
		b.nextAttemptAt = time.Now().Add(b.cfg.ResetTimeout)
		b.transition(StateOpen)

	case StateOpen:
		// A call should not reach record() while open (allow() gates
		// it), but a stray late completion is simply ignored.
	}
}

// transition updates state and fires onTransition; must be called with
// mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onTransition != nil {
		b.onTransition(b.name, from, to)
	}
}

// pruneHistory drops outcomes older than the monitoring window; must be
// called with mu held.
func (b *Breaker) pruneHistory() {
	cutoff := time.Now().Add(-b.cfg.MonitoringWindow)
	kept := b.history[:0]
	for _, o := range b.history {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	b.history = kept
}

// failureRate returns the fraction of failed calls within the
// monitoring window; must be called with mu held.
func (b *Breaker) failureRate() float64 {
	if len(b.history) == 0 {
		return 0
	}
	failures := 0
	for _, o := range b.history {
		if !o.success {
			failures++
		}
	}
	return float64(failures) / float64(len(b.history))
}

// IsHealthy reports state=closed && failureRate(monitoringWindow) < 0.5.
func (b *Breaker) IsHealthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneHistory()
	return b.state == StateClosed && b.failureRate() < 0.5
}

// Snapshot returns the breaker's current state for status reporting.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:          b.name,
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		NextAttemptAt: b.nextAttemptAt,
	}
}
