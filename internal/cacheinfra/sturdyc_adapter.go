package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0.
	NumShards int

	// TTL is the time-to-live for cached entries. After this duration,
	// entries are considered expired. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for point-lookup
// caching.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

func (c Config) toOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycStore adapts a sturdyc client to the cache.Store surface. Sturdyc
// owns per-entry expiry and recency bookkeeping: an entry past its TTL is
// reported as absent on Get, and capacity eviction removes the least recently
// used share of a shard.
type SturdycStore struct {
	client *sturdyc.Client[any]
}

// NewSturdycStore validates cfg and initializes a sturdyc client with the
// provided settings.
//
// Version compatibility note: this adapter assumes the sturdyc v1.x API.
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.toOptions()...,
	)
	return &SturdycStore{client: client}, nil
}

// Get returns the live entry for key.
func (s *SturdycStore) Get(_ context.Context, key string) (any, bool) {
	return s.client.Get(key)
}

// Set inserts or replaces the entry for key with the configured TTL.
func (s *SturdycStore) Set(_ context.Context, key string, value any) {
	s.client.Set(key, value)
}

// Delete removes the entry for key.
func (s *SturdycStore) Delete(_ context.Context, key string) {
	s.client.Delete(key)
}

// Flush drops every entry.
func (s *SturdycStore) Flush(_ context.Context) {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
}

// Len reports the number of live entries.
func (s *SturdycStore) Len(_ context.Context) int {
	return s.client.Size()
}
