package cache

import (
	"time"

	"github.com/fluxori-systems/go-docstore-repository/internal/cacheinfra"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Capacity is the maximum number of entries the cache holds before
	// eviction kicks in.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int

	// TTL is the time-to-live applied to every entry.
	TTL time.Duration

	// EvictionPercentage is the share of entries (1-100) evicted when the
	// cache reaches capacity.
	EvictionPercentage int

	// EvictionInterval sets how often the backend sweeps expired entries.
	// Zero uses the backend default; expiry on lookup is lazy regardless.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewStore constructs the default sturdyc-backed Store from cfg.
func NewStore(cfg Config) (Store, error) {
	return cacheinfra.NewSturdycStore(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
