// Command fleetopsd runs the on-demand logistics control plane: the
// route optimization coordinator plus the four automation engines
// (dispatch, batching, route re-optimization, SLA escalation) under a
// shared supervisor. It exposes no REST/gRPC API of its own — /metrics
// and /health are the only HTTP surface, consistent with the control
// plane being a background process, not a request-response service.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"fleetops/pkg/automation"
	"fleetops/pkg/automation/batching"
	"fleetops/pkg/automation/dispatch"
	"fleetops/pkg/automation/reopt"
	"fleetops/pkg/automation/sla"
	"fleetops/pkg/cache"
	"fleetops/pkg/config"
	"fleetops/pkg/events"
	"fleetops/pkg/fleet"
	"fleetops/pkg/fleet/driver"
	"fleetops/pkg/logger"
	"fleetops/pkg/metrics"
	"fleetops/pkg/optimizer"
	"fleetops/pkg/resilience/breaker"
	"fleetops/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	st, closeStore := mustStore(ctx, cfg.Store)
	defer closeStore()

	hub := events.NewHub()
	breakers := breaker.NewManager(cfg.Breaker, func(dependency string, from, to breaker.State) {
		m.RecordBreakerTransition(dependency, string(from), string(to), breakerStateValue(to))
		evt := events.TypeBreakerOpened
		if to == breaker.StateClosed {
			evt = events.TypeBreakerRecovered
		}
		hub.Publish(events.Event{Type: evt, Payload: dependency})
	})

	drivers := driver.NewRegistry(driver.Guard{
		MaxWorkingHours:     8,
		BreakThresholdCount: cfg.Driver.BreakThresholdCount,
		TargetDeliveries:    20,
		LocationFreshness:   time.Duration(cfg.Driver.LocationFreshnessMin) * time.Minute,
		ReturnRadiusKm:      cfg.Driver.ReturnRadiusKm,
		BreakDuration:       time.Duration(cfg.Driver.BreakDurationMin) * time.Minute,
	})
	if err := loadDriversIntoRegistry(ctx, st, drivers); err != nil {
		logger.Warn("failed to seed driver registry from store", "error", err)
	}

	coord := optimizer.New(m, time.Duration(cfg.Optimizer.TimeoutMs)*time.Millisecond)

	var batchOptimizer batching.Optimizer = coord
	if cfg.Cache.Backend != "" {
		baseCache, err := cache.New(cache.FromConfig(cfg.Cache))
		if err != nil {
			logger.Warn("failed to init optimize result cache, continuing without it", "error", err)
		} else {
			resultCache := cache.NewOptimizeResultCache(baseCache, time.Duration(cfg.Cache.TTLMs)*time.Millisecond, m)
			batchOptimizer = cache.NewCachedCoordinator(coord, resultCache)
		}
	}

	fleetVehicles := func(ctx context.Context) ([]fleet.Vehicle, error) {
		return st.ListVehicles(ctx)
	}

	supervisor := automation.NewSupervisor()

	if tuning, ok := cfg.Engine.EngineTuning("dispatch"); ok && tuning.Enabled {
		supervisor.Register("dispatch", dispatch.New(st, drivers, hub, breakers.Get("store"),
			tickDuration(tuning.TickMs, dispatch.DefaultInterval), tuning.Concurrency))
	}

	if tuning, ok := cfg.Engine.EngineTuning("batching"); ok && tuning.Enabled {
		supervisor.Register("batching", batching.New(st, batchOptimizer, fleetVehicles, fleet.BusinessRules{},
			hub, breakers.Get("optimizer"), tickDuration(tuning.TickMs, batching.DefaultInterval),
			tuning.Concurrency, batching.DefaultMaxBatchSize))
	}

	if tuning, ok := cfg.Engine.EngineTuning("route_reopt"); ok && tuning.Enabled {
		supervisor.Register("route_reopt", reopt.New(st, drivers, hub, breakers.Get("store"),
			tickDuration(tuning.TickMs, reopt.DefaultInterval), tuning.Concurrency))
	}

	if tuning, ok := cfg.Engine.EngineTuning("sla"); ok && tuning.Enabled {
		imminentBand := time.Duration(cfg.SLA.ImminentBandMin) * time.Minute
		supervisor.Register("sla", sla.New(st, nil, hub, breakers.Get("store"),
			tickDuration(tuning.TickMs, sla.DefaultInterval), tuning.Concurrency, imminentBand))
	}

	logger.Info("starting fleetops control plane",
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"store_driver", cfg.Store.Driver,
	)

	supervisor.StartAll(ctx)

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping engines")
	supervisor.StopAll()
}

// mustStore builds the configured Store backend and returns a cleanup
// func; terminates the process if a postgres connection cannot be
// established, matching the teacher's fail-fast startup idiom.
func mustStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func()) {
	if cfg.Driver == "postgres" {
		pg, err := store.NewPostgresStore(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to store", "error", err)
		}
		return pg, func() { pg.Close() }
	}

	mem := store.NewInMemoryStore()
	return mem, func() { mem.Close() }
}

// loadDriversIntoRegistry seeds the in-process driver registry from the
// store's persisted driver rows on startup, so the dispatch and reopt
// engines see real availability from their first tick.
func loadDriversIntoRegistry(ctx context.Context, st store.Store, drivers *driver.Registry) error {
	all, err := st.ListDrivers(ctx)
	if err != nil {
		return err
	}
	for _, d := range all {
		drivers.Upsert(d)
	}
	return nil
}

// tickDuration returns the configured tick interval in milliseconds, or
// def when unset.
func tickDuration(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// breakerStateValue maps a breaker state to the gauge value recorded by
// metrics.RecordBreakerTransition (0=closed, 1=half_open, 2=open).
func breakerStateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateOpen:
		return 2
	case breaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
