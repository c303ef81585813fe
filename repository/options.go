package repository

import (
	"time"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

// Option structs below are passed by pointer; nil means all defaults. Flags
// are named so the zero value is the default behavior.

// FindOptions tunes a point lookup.
type FindOptions struct {
	// BypassCache forces a store read even when a fresh cache entry exists.
	BypassCache bool

	// IncludeDeleted returns soft-deleted entities instead of reporting
	// them as not found.
	IncludeDeleted bool

	// Transaction reads within an active transaction. Transactional reads
	// always bypass the cache: they must observe the transaction's
	// snapshot, not a process-local projection.
	Transaction docstore.Tx
}

// QueryOptions tunes Find and FindAll.
type QueryOptions struct {
	// Filter is a field -> value equality map; entries are ANDed.
	Filter map[string]any

	// Advanced holds field/operator/value predicates appended after Filter.
	Advanced []docstore.Filter

	// OrderBy names the field results are sorted on; Direction defaults to
	// ascending.
	OrderBy   string
	Direction docstore.Direction

	Limit  int
	Offset int

	// IncludeDeleted includes soft-deleted entities in the result set.
	IncludeDeleted bool

	// UseCache is reserved for future query-result caching. It is accepted
	// and ignored: every query reads the store directly.
	UseCache bool
}

// CountOptions tunes Count.
type CountOptions struct {
	Filter         map[string]any
	Advanced       []docstore.Filter
	IncludeDeleted bool

	// MaxCount caps the count for cost control; zero means unlimited.
	MaxCount int
}

// CreateOptions tunes Create.
type CreateOptions struct {
	// UseProvidedID requires the entity to arrive with a caller-supplied
	// id. Without it, an empty id is filled by the store's generator and a
	// non-empty id is kept.
	UseProvidedID bool

	// UseServerTimestamp stamps createdAt/updatedAt with the store clock
	// at apply time instead of the client clock. The created entity is
	// read back so the caller sees resolved values.
	UseServerTimestamp bool

	// InitialVersion overrides the configured initial version when > 0.
	InitialVersion int64

	// SkipValidation bypasses the required-field check even when the
	// repository is configured to validate on write.
	SkipValidation bool

	// SkipCache leaves the created entity out of the point cache.
	SkipCache bool

	// Transaction and Batch route the write through an active transaction
	// or batch instead of committing directly. They are mutually
	// exclusive; deferred writes never populate the cache.
	Transaction docstore.Tx
	Batch       docstore.WriteBatch
}

// UpdateOptions tunes Update.
type UpdateOptions struct {
	// ExpectedVersion rejects the write with ConflictError when the stored
	// version differs.
	ExpectedVersion *int64

	// ExpectedUpdatedAt rejects the write with ConflictError when the
	// stored updatedAt differs.
	ExpectedUpdatedAt *time.Time

	// BypassSoftDeleteCheck allows updating a soft-deleted entity.
	BypassSoftDeleteCheck bool

	// SkipUpdatedAt leaves updatedAt untouched.
	SkipUpdatedAt bool

	// SkipVersionBump leaves the version untouched.
	SkipVersionBump bool

	// SkipValidation bypasses required-field checks on the changed fields.
	SkipValidation bool

	Transaction docstore.Tx
}

// DeleteOptions tunes Delete.
type DeleteOptions struct {
	// Force performs a hard delete (physical removal) instead of the
	// default soft delete.
	Force bool

	// DeleteSubcollections sweeps collections under "<collection>/<id>/"
	// after a hard delete. The sweep is best-effort and never
	// transactional with the parent delete.
	DeleteSubcollections bool

	// SnapshotBefore returns the pre-delete entity from a hard delete.
	// Soft deletes always return the marked entity.
	SnapshotBefore bool

	Transaction docstore.Tx
	Batch       docstore.WriteBatch
}

// RestoreOptions tunes Restore.
type RestoreOptions struct {
	// SkipVersionBump leaves the version untouched; by default a restore
	// counts as a write and bumps it.
	SkipVersionBump bool

	// AdditionalUpdates is merged into the entity alongside clearing the
	// delete markers. Reserved metadata fields are rejected.
	AdditionalUpdates map[string]any

	Transaction docstore.Tx
}

// TransactionOptions governs RunTransaction retry policy.
type TransactionOptions struct {
	// MaxAttempts bounds callback executions; values below 1 mean 1.
	MaxAttempts int

	// Timeout bounds the whole transaction, retries included.
	Timeout time.Duration

	// RetryDelay is slept between attempts after a contention abort.
	RetryDelay time.Duration
}

// CreateManyOptions tunes CreateMany.
type CreateManyOptions struct {
	UseProvidedID  bool
	InitialVersion int64
	SkipValidation bool
	SkipCache      bool
}

// UpdateItem is one element of an UpdateMany call.
type UpdateItem struct {
	ID      string
	Changes map[string]any

	// ExpectedVersion applies the optimistic check to this item only.
	ExpectedVersion *int64
}

// UpdateManyOptions tunes UpdateMany.
type UpdateManyOptions struct {
	BypassSoftDeleteCheck bool
	SkipValidation        bool
	SkipCache             bool
}

// DeleteManyOptions tunes DeleteMany.
type DeleteManyOptions struct {
	// Force hard-deletes instead of soft-deleting.
	Force bool
}
