// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "FLEETOPS_"
	configEnvVar = "CONFIG_PATH"
)

// Loader loads configuration from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/fleetops/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths sets the search paths for the config file.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix sets the environment-variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load loads configuration with priority:
// 1. Defaults (lowest)
// 2. Config file (yaml)
// 3. Environment variables (highest)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		// The file is optional; log and continue with defaults/env.
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults loads the documented default values (§6 of the
// configuration surface).
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "fleetops",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "fleetops",
		"metrics.subsystem": "",

		// Optimizer (C7)
		"optimizer.timeout_ms":                    5000,
		"optimizer.weights_preset":                "default",
		"optimizer.cooperative_yield_cells":       10000,
		"optimizer.speed_factor_kmh.car":          40.0,
		"optimizer.speed_factor_kmh.van":          35.0,
		"optimizer.speed_factor_kmh.truck":        28.0,
		"optimizer.speed_factor_kmh.motorcycle":   45.0,
		"optimizer.speed_factor_kmh.mixed":        32.0,

		// Engines (C10, C11)
		"engine.dispatch.tick_ms":      5000,
		"engine.dispatch.concurrency":  16,
		"engine.dispatch.enabled":      true,
		"engine.batching.tick_ms":      30000,
		"engine.batching.concurrency":  8,
		"engine.batching.enabled":      true,
		"engine.route_reopt.tick_ms":     60000,
		"engine.route_reopt.concurrency": 8,
		"engine.route_reopt.enabled":     true,
		"engine.sla.tick_ms":           15000,
		"engine.sla.concurrency":       16,
		"engine.sla.enabled":           true,

		// Breaker (C8)
		"breaker.defaults.failure_threshold":   5,
		"breaker.defaults.success_threshold":   2,
		"breaker.defaults.timeout_ms":          60000,
		"breaker.defaults.reset_timeout_ms":    30000,
		"breaker.defaults.monitoring_window_ms": 60000,

		// Cache (C9)
		"cache.ttl_ms":      300000,
		"cache.sweep_ms":    60000,
		"cache.backend":     "memory",
		"cache.redis_addr":  "",
		"cache.max_entries": 10000,

		// SLA (§4.7)
		"sla.imminent_band_min": 10,

		// Driver guard (§4.5)
		"driver.location_freshness_min": 5,
		"driver.break_threshold_count":  6,
		"driver.break_duration_min":     15,
		"driver.return_radius_km":       15.0,

		// Store (opaque collaborator)
		"store.driver":          "inmemory",
		"store.dsn":             "",
		"store.max_open_conns":  25,
		"store.migrations_path": "migrations",
		"store.auto_migrate":    true,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile loads configuration from a YAML file.
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv loads configuration from environment variables.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		// FLEETOPS_ENGINE_DISPATCH_TICK_MS -> engine.dispatch.tick_ms
		name := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		for _, key := range l.k.Keys() {
			if strings.ReplaceAll(key, ".", "_") == name {
				return key
			}
		}
		return strings.ReplaceAll(name, "_", ".")
	}), nil)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load is a convenience function using default settings.
func Load() (*Config, error) {
	return NewLoader().Load()
}
