package repository

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/fluxori-systems/go-docstore-repository/cache"
)

// Config declares the per-collection policy a Repository applies uniformly.
// Build one with DefaultConfig and adjust; Validate runs at construction.
type Config struct {
	// CollectionName is the document store collection this repository
	// owns. Required.
	CollectionName string

	// SoftDeletes makes Delete mark entities instead of removing them and
	// filters marked entities out of default reads.
	SoftDeletes bool

	// Versioning maintains the monotonically increasing version counter
	// and enables optimistic concurrency checks.
	Versioning bool

	// AutoTimestamps maintains createdAt/updatedAt on writes.
	AutoTimestamps bool

	// ValidateOnWrite checks RequiredFields before any mutation.
	ValidateOnWrite bool

	// RequiredFields lists document fields that must be present and
	// non-empty when validation runs.
	RequiredFields []string

	// InitialVersion is assigned at creation; values below 1 mean 1.
	InitialVersion int64

	// EnableCache turns on the per-repository point-lookup cache.
	EnableCache bool

	// CacheTTL bounds how long a cached entity may serve reads. Zero uses
	// the cache package default.
	CacheTTL time.Duration

	// CacheCapacity bounds the number of cached entities. Zero uses the
	// cache package default.
	CacheCapacity int

	// Logger receives debug-level operational events. Nil means no
	// logging.
	Logger *zap.Logger
}

// DefaultConfig returns the policy the platform's repositories run with:
// soft deletes, versioning, automatic timestamps, validation, and caching
// all on.
func DefaultConfig(collectionName string) Config {
	defaults := cache.DefaultConfig()
	return Config{
		CollectionName:  collectionName,
		SoftDeletes:     true,
		Versioning:      true,
		AutoTimestamps:  true,
		ValidateOnWrite: true,
		InitialVersion:  1,
		EnableCache:     true,
		CacheTTL:        defaults.TTL,
		CacheCapacity:   defaults.Capacity,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.CollectionName, validation.Required),
		validation.Field(&c.InitialVersion, validation.Min(0)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheCapacity, validation.Min(0)),
	)
}
