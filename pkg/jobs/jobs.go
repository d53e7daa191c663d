// Package jobs implements the job registry (C12): a bounded in-memory
// history of long-running analytical tasks the automation engines
// launch, capped at 50 terminal entries with the oldest dropped.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed vocabulary of job kinds (§3).
type Kind string

const (
	KindRouteAnalysis Kind = "route_analysis"
	KindFleetPerf     Kind = "fleet_perf"
	KindDemand        Kind = "demand"
	KindSLA           Kind = "sla"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one long-running analytical task; once terminal
// (completed/failed) a Job is never mutated again.
type Job struct {
	ID        string
	Kind      Kind
	Params    map[string]any
	Status    Status
	StartedAt time.Time
	EndedAt   *time.Time
	ResultRaw any
	Err       string
}

func (j Job) terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// maxHistory is the §3 bound on retained terminal jobs.
const maxHistory = 50

// Registry is the process-wide job store: running jobs are kept
// indefinitely, terminal jobs are trimmed to maxHistory oldest-dropped.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	history []string // ids of terminal jobs, oldest first
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Start creates a new running job of the given kind and returns it.
func (r *Registry) Start(kind Kind, params map[string]any) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    params,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	r.jobs[j.ID] = j
	return j
}

// Complete marks a running job completed with the given result.
func (r *Registry) Complete(id string, result any) {
	r.finish(id, StatusCompleted, result, "")
}

// Fail marks a running job failed with the given error message.
func (r *Registry) Fail(id string, errMsg string) {
	r.finish(id, StatusFailed, nil, errMsg)
}

func (r *Registry) finish(id string, status Status, result any, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.terminal() {
		return
	}

	now := time.Now()
	j.Status = status
	j.EndedAt = &now
	j.ResultRaw = result
	j.Err = errMsg

	r.history = append(r.history, id)
	r.evictOldest()
}

// evictOldest drops the oldest terminal job once the history exceeds
// maxHistory; must be called with mu held.
func (r *Registry) evictOldest() {
	for len(r.history) > maxHistory {
		oldest := r.history[0]
		r.history = r.history[1:]
		delete(r.jobs, oldest)
	}
}

// Get returns a copy of a job's current state.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// RunningCount reports how many jobs of kind are currently running, used
// to enforce the per-engine concurrency invariant of §3.
func (r *Registry) RunningCount(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.Kind == kind && j.Status == StatusRunning {
			n++
		}
	}
	return n
}

// List returns every retained job (running plus up to maxHistory
// terminal), most recently started first.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
