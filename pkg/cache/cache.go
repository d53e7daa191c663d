// Package cache implements the metrics cache (C9): a process-local,
// TTL-keyed cache shielding expensive aggregate queries from request
// bursts (§4.9), with a memory-backed default and an optional
// Redis-backed implementation for multi-process deployments.
package cache

import (
	"context"
	"errors"
	"time"

	"fleetops/pkg/config"
)

// Backend types for cache implementations.
const (
	// BackendMemory specifies an in-memory cache backend.
	BackendMemory = "memory"
	// BackendRedis specifies a Redis cache backend.
	BackendRedis = "redis"
)

// Standard errors returned by cache operations.
var (
	// ErrKeyNotFound is returned when a requested key does not exist in the cache.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCacheClosed is returned when an operation is attempted on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")
)

// Cache is the §4.9 C9 contract: a key -> (value, insertedAt) map with
// TTL, a bounded Stats view, and Clear. Every concrete backend
// (memory, redis) implements exactly this surface — no bulk or
// glob-pattern operation the control plane never calls.
type Cache interface {
	// Get retrieves the value associated with the given key.
	// Returns ErrKeyNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value for the given key with a specified time-to-live (TTL).
	// If the key already exists, its value and TTL are updated.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key-value pair from the cache.
	// Returns nil if the key was not found or successfully deleted.
	Delete(ctx context.Context, key string) error

	// Stats returns statistics about the cache (§4.9: size, valid, expired).
	Stats(ctx context.Context) (*Stats, error)
	// Clear removes all keys from the cache.
	Clear(ctx context.Context) error
	// Close shuts down the cache and releases any underlying resources.
	Close() error
}

// Stats reports the §4.9 cache view: how many entries are held, how
// many are still within their TTL, and how many are past it but not
// yet swept, plus the hit/miss counters the cache tracks for its own
// `X-Cache` reporting.
type Stats struct {
	Size    int64   // Total number of entries currently held (valid + expired, not yet swept).
	Valid   int64   // Entries still within their TTL.
	Expired int64   // Entries past their TTL, not yet removed by the cleanup sweep.
	Hits    int64   // Number of successful cache retrievals.
	Misses  int64   // Number of failed cache retrievals.
	HitRate float64 // Ratio of hits to total lookups.
	Backend string  // The name of the cache backend (e.g., "memory", "redis").
}

// Options contains configuration parameters for creating a Cache instance.
type Options struct {
	Backend    string        // The desired cache backend: BackendMemory or BackendRedis.
	DefaultTTL time.Duration // The default time-to-live for cache entries if not specified per operation.

	// Memory cache specific options
	MaxEntries      int           // Maximum number of entries for the memory cache.
	CleanupInterval time.Duration // Interval for background cleanup of expired entries in memory cache.

	// Redis cache specific options
	RedisAddr     string // Address of the Redis server (e.g., "localhost:6379").
	RedisPassword string // Password for Redis authentication.
	RedisDB       int    // Redis database number to use.
	RedisPoolSize int    // Maximum number of connections in the Redis client pool.
}

// DefaultOptions returns a new Options struct with sensible default values.
func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      5 * time.Minute,
		MaxEntries:      100000,
		CleanupInterval: 1 * time.Minute,
		RedisAddr:       "localhost:6379",
		RedisDB:         0,
		RedisPoolSize:   10,
	}
}

// FromConfig builds cache Options from the C9 configuration block.
func FromConfig(cfg config.CacheConfig) *Options {
	cleanup := time.Duration(cfg.SweepMs) * time.Millisecond
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Options{
		Backend:         cfg.Backend,
		DefaultTTL:      time.Duration(cfg.TTLMs) * time.Millisecond,
		MaxEntries:      cfg.MaxEntries,
		CleanupInterval: cleanup,
		RedisAddr:       cfg.RedisAddr,
		RedisPoolSize:   10,
	}
}

// New builds a Cache from opts, choosing the backend implementation.
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	switch opts.Backend {
	case BackendRedis:
		return NewRedisCache(opts)
	case BackendMemory, "":
		return NewMemoryCache(opts), nil
	default:
		return NewMemoryCache(opts), nil
	}
}

// MustNew builds a Cache or panics.
func MustNew(opts *Options) Cache {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}
