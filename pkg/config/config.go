// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Engine    EnginesConfig   `koanf:"engine"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Cache     CacheConfig     `koanf:"cache"`
	SLA       SLAConfig       `koanf:"sla"`
	Driver    DriverConfig    `koanf:"driver"`
	Store     StoreConfig     `koanf:"store"`
}

// AppConfig holds general process settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int  `koanf:"max_size"` // MB
	MaxBackups int  `koanf:"max_backups"`
	MaxAge     int  `koanf:"max_age"` // days
	Compress   bool `koanf:"compress"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// OptimizerConfig configures the route optimization coordinator (C7).
type OptimizerConfig struct {
	TimeoutMs       int                `koanf:"timeout_ms"`
	WeightsPreset   string             `koanf:"weights_preset"`
	SpeedFactorKmh  map[string]float64 `koanf:"speed_factor_kmh"`
	CooperativeYield int               `koanf:"cooperative_yield_cells"`
}

// EnginesConfig groups the per-engine tick/concurrency settings of §4.7.
type EnginesConfig struct {
	Dispatch EngineConfig `koanf:"dispatch"`
	Batching EngineConfig `koanf:"batching"`
	Reopt    EngineConfig `koanf:"route_reopt"`
	SLA      EngineConfig `koanf:"sla"`
}

// EngineConfig is one automation engine's tunables.
type EngineConfig struct {
	TickMs      int  `koanf:"tick_ms"`
	Concurrency int  `koanf:"concurrency"`
	Enabled     bool `koanf:"enabled"`
}

// BreakerConfig maps a dependency name to its breaker tuning (§4.8).
type BreakerConfig struct {
	Defaults     BreakerTuning            `koanf:"defaults"`
	PerDependency map[string]BreakerTuning `koanf:"per_dependency"`
}

// BreakerTuning is a single breaker's parameters.
type BreakerTuning struct {
	FailureThreshold  int `koanf:"failure_threshold"`
	SuccessThreshold  int `koanf:"success_threshold"`
	TimeoutMs         int `koanf:"timeout_ms"`
	ResetTimeoutMs    int `koanf:"reset_timeout_ms"`
	MonitoringWindowMs int `koanf:"monitoring_window_ms"`
}

// CacheConfig configures the metrics cache (C9).
type CacheConfig struct {
	TTLMs      int    `koanf:"ttl_ms"`
	SweepMs    int    `koanf:"sweep_ms"`
	Backend    string `koanf:"backend"` // memory, redis
	RedisAddr  string `koanf:"redis_addr"`
	MaxEntries int    `koanf:"max_entries"`
}

// SLAConfig configures the SLA escalation engine's banding (§4.7).
type SLAConfig struct {
	ImminentBandMin int `koanf:"imminent_band_min"`
}

// DriverConfig configures the driver-state guard (§4.5).
type DriverConfig struct {
	LocationFreshnessMin int `koanf:"location_freshness_min"`
	BreakThresholdCount  int `koanf:"break_threshold_count"`
	BreakDurationMin     int `koanf:"break_duration_min"`
	ReturnRadiusKm       float64 `koanf:"return_radius_km"`
}

// StoreConfig configures the opaque persistence collaborator.
type StoreConfig struct {
	Driver         string `koanf:"driver"` // postgres, inmemory
	DSN            string `koanf:"dsn"`
	MaxOpenConns   int    `koanf:"max_open_conns"`
	MigrationsPath string `koanf:"migrations_path"`
	AutoMigrate    bool   `koanf:"auto_migrate"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Optimizer.TimeoutMs <= 0 {
		errs = append(errs, "optimizer.timeout_ms must be positive")
	}

	validPresets := map[string]bool{
		"proximity_focused": true, "load_balanced": true, "cluster_optimized": true,
		"route_continuation": true, "default": true,
	}
	if c.Optimizer.WeightsPreset != "" && !validPresets[c.Optimizer.WeightsPreset] {
		errs = append(errs, fmt.Sprintf("optimizer.weights_preset %q is not a recognised preset", c.Optimizer.WeightsPreset))
	}

	if c.Cache.Backend != "" && c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		errs = append(errs, fmt.Sprintf("cache.backend must be memory or redis, got %s", c.Cache.Backend))
	}

	if c.Store.Driver != "" && c.Store.Driver != "postgres" && c.Store.Driver != "inmemory" {
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or inmemory, got %s", c.Store.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the environment is development-like.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}

// EngineTuning returns the per-engine config by name, used by
// cmd/fleetopsd to construct each of the four engines uniformly before
// registering them with the supervisor (C11).
func (e EnginesConfig) EngineTuning(name string) (EngineConfig, bool) {
	switch name {
	case "dispatch":
		return e.Dispatch, true
	case "batching":
		return e.Batching, true
	case "route_reopt":
		return e.Reopt, true
	case "sla":
		return e.SLA, true
	default:
		return EngineConfig{}, false
	}
}

// ForDependency returns the tuning for a named breaker, falling back to
// Defaults when the dependency has no override.
func (b BreakerConfig) ForDependency(name string) BreakerTuning {
	if t, ok := b.PerDependency[name]; ok {
		return t
	}
	return b.Defaults
}
