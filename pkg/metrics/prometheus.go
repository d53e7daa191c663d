package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the global metrics container for the control plane.
type Metrics struct {
	// Optimization pipeline (C7)
	OptimizationRunsTotal *prometheus.CounterVec
	OptimizationDuration  *prometheus.HistogramVec
	PhaseDuration         *prometheus.HistogramVec
	RoutesProduced        *prometheus.HistogramVec
	UnservicedPoints      *prometheus.HistogramVec

	// Automation engines (C10, C11)
	EngineTicksTotal *prometheus.CounterVec
	EngineTickDuration *prometheus.HistogramVec
	EngineErrorsTotal  *prometheus.CounterVec

	// Circuit breaker (C8)
	BreakerStateChanges *prometheus.CounterVec
	BreakerState        *prometheus.GaugeVec

	// Metrics cache (C9)
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheEntries     prometheus.Gauge

	// Job registry (C12)
	JobsTotal      *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec

	// System metrics
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics initializes and registers the metrics container.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		OptimizationRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimization_runs_total",
				Help:      "Total number of route optimization runs",
			},
			[]string{"status"},
		),

		OptimizationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimization_duration_seconds",
				Help:      "Duration of full optimization runs",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),

		PhaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimization_phase_duration_seconds",
				Help:      "Duration of each optimization phase",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"phase"},
		),

		RoutesProduced: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "routes_produced",
				Help:      "Number of routes produced per optimization run",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"strategy"},
		),

		UnservicedPoints: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "unserviced_points",
				Help:      "Number of delivery points left unassigned per run",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"reason"},
		),

		EngineTicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "engine_ticks_total",
				Help:      "Total number of automation engine ticks",
			},
			[]string{"engine", "status"},
		),

		EngineTickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "engine_tick_duration_seconds",
				Help:      "Duration of a single engine tick",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"engine"},
		),

		EngineErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "engine_errors_total",
				Help:      "Total number of engine tick errors",
			},
			[]string{"engine", "code"},
		),

		BreakerStateChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "breaker_state_changes_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"dependency", "from", "to"},
		),

		BreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "breaker_state",
				Help:      "Current breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"dependency"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of metrics cache hits",
			},
			[]string{"key_prefix"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of metrics cache misses",
			},
			[]string{"key_prefix"},
		),

		CacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_entries",
				Help:      "Current number of entries held in the metrics cache",
			},
		),

		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_total",
				Help:      "Total number of background jobs recorded",
			},
			[]string{"type", "status"},
		),

		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Duration of background jobs",
				Buckets:   []float64{.01, .1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"type"},
		),

		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service build information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics container, initializing it with
// sensible defaults if no server has called InitMetrics yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("fleetops", "")
	}
	return defaultMetrics
}

// RecordOptimizationRun records one full C7 optimization pass.
func (m *Metrics) RecordOptimizationRun(status string, duration time.Duration, routes int, strategy string) {
	m.OptimizationRunsTotal.WithLabelValues(status).Inc()
	m.OptimizationDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.RoutesProduced.WithLabelValues(strategy).Observe(float64(routes))
}

// RecordPhase records the duration of a single optimization phase
// (validate, matrix, cluster, sequence, distribute).
func (m *Metrics) RecordPhase(phase string, duration time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordUnserviced records the number of points left unassigned for a
// given reason code.
func (m *Metrics) RecordUnserviced(reason string, count int) {
	m.UnservicedPoints.WithLabelValues(reason).Observe(float64(count))
}

// RecordEngineTick records one tick of an automation engine.
func (m *Metrics) RecordEngineTick(engine, status string, duration time.Duration) {
	m.EngineTicksTotal.WithLabelValues(engine, status).Inc()
	m.EngineTickDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// RecordEngineError records an engine tick failure by apperror code.
func (m *Metrics) RecordEngineError(engine, code string) {
	m.EngineErrorsTotal.WithLabelValues(engine, code).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(dependency, from, to string, stateValue float64) {
	m.BreakerStateChanges.WithLabelValues(dependency, from, to).Inc()
	m.BreakerState.WithLabelValues(dependency).Set(stateValue)
}

// RecordCacheHit records a metrics cache hit.
func (m *Metrics) RecordCacheHit(keyPrefix string) {
	m.CacheHitsTotal.WithLabelValues(keyPrefix).Inc()
}

// RecordCacheMiss records a metrics cache miss.
func (m *Metrics) RecordCacheMiss(keyPrefix string) {
	m.CacheMissesTotal.WithLabelValues(keyPrefix).Inc()
}

// SetCacheEntries sets the current cache size gauge.
func (m *Metrics) SetCacheEntries(n int) {
	m.CacheEntries.Set(float64(n))
}

// RecordJob records a completed background job (C12).
func (m *Metrics) RecordJob(jobType, status string, duration time.Duration) {
	m.JobsTotal.WithLabelValues(jobType, status).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetServiceInfo sets the build-info gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts the metrics HTTP server.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write error is not actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
