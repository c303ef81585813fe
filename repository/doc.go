// Package repository provides a generic, cache-aware repository over a
// document store collection.
//
// # Overview
//
// A Repository[T] is the single point of typed access to one collection. It
// translates CRUD calls into document store operations and applies three
// cross-cutting policies uniformly:
//
//   - Point-lookup caching: FindByID serves fresh cache entries and
//     repopulates on miss; every write invalidates or replaces the touched
//     id before returning. Query results are never cached.
//   - Soft deletes: Delete marks entities rather than removing them, and
//     default reads filter marked entities out; Restore reverses the mark.
//   - Optimistic versioning: every accepted write bumps a version counter by
//     exactly 1, and updates can demand an expected version or timestamp,
//     failing with ConflictError instead of overwriting.
//
// # Entities
//
// Entities embed Metadata and are used through pointer types:
//
//	type Product struct {
//		repository.Metadata
//		Title string `json:"title"`
//		Price float64 `json:"price"`
//	}
//
//	repo, err := repository.New(client, repository.DefaultConfig("products"),
//		repository.ModelHandlers[*Product]{
//			NewRecord: func() *Product { return &Product{} },
//		})
//
// # Transactions
//
// There is no atomicity across two repository calls unless both run inside
// the same RunTransaction callback, passing the Tx handle through the
// operation options. Transactional reads bypass the cache: they must observe
// the transaction's snapshot.
//
// # Failure taxonomy
//
// Operations signal NotFoundError, ValidationError, ConflictError, or
// StoreError; bulk operations aggregate per-item failures into BatchError.
// Validation and conflict failures are detected before any store mutation.
// The repository never formats user-facing messages; callers translate these
// into their own responses.
package repository
