package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fluxori-systems/go-docstore-repository/cache"
	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

// Field names of the metadata block inside stored documents.
const (
	fieldID        = "id"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
	fieldIsDeleted = "isDeleted"
	fieldDeletedAt = "deletedAt"
	fieldVersion   = "version"
)

// reservedFields may not appear in Update changes or Restore additional
// updates; create/delete/restore own those transitions.
var reservedFields = []string{fieldID, fieldCreatedAt, fieldUpdatedAt, fieldIsDeleted, fieldDeletedAt, fieldVersion}

var errMutuallyExclusive = errors.New("repository: Transaction and Batch are mutually exclusive")

// Repository is the single point of typed access to one document store
// collection. It applies caching, soft-delete visibility, and optimistic
// versioning policy uniformly across CRUD, queries, batches, and
// transaction-scoped variants.
type Repository[T Entity] struct {
	client    docstore.Client
	cfg       Config
	handlers  ModelHandlers[T]
	converter Converter[T]
	cache     cache.Store
	logger    *zap.Logger
}

// New validates cfg and constructs a Repository. The repository owns its
// point cache for its lifetime; two repositories never share cache state.
func New[T Entity](client docstore.Client, cfg Config, handlers ModelHandlers[T]) (*Repository[T], error) {
	if client == nil {
		return nil, errors.New("repository: client is required")
	}
	if handlers.NewRecord == nil {
		return nil, errors.New("repository: handlers.NewRecord is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("repository: invalid config: %w", err)
	}

	converter := handlers.Converter
	if converter == nil {
		converter = NewJSONConverter(handlers.NewRecord)
	}

	var store cache.Store
	if cfg.EnableCache {
		cacheCfg := cache.DefaultConfig()
		if cfg.CacheTTL > 0 {
			cacheCfg.TTL = cfg.CacheTTL
		}
		if cfg.CacheCapacity > 0 {
			cacheCfg.Capacity = cfg.CacheCapacity
		}
		var err error
		store, err = cache.NewStore(cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("repository: cache: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository[T]{
		client:    client,
		cfg:       cfg,
		handlers:  handlers,
		converter: converter,
		cache:     store,
		logger:    logger,
	}, nil
}

// Collection returns the collection name this repository owns.
func (r *Repository[T]) Collection() string { return r.cfg.CollectionName }

// Handlers returns the model handlers the repository was built with.
func (r *Repository[T]) Handlers() ModelHandlers[T] { return r.handlers }

func (r *Repository[T]) zero() T {
	var zero T
	return zero
}

func (r *Repository[T]) storeErr(op string, err error) error {
	return &StoreError{Op: op, Collection: r.cfg.CollectionName, Err: err}
}

func (r *Repository[T]) notFound(id string) error {
	return &NotFoundError{Collection: r.cfg.CollectionName, ID: id}
}

// --- cache helpers -------------------------------------------------------

// The cache holds raw documents, not entities: converting on every hit hands
// each caller an independent copy, so cache state is never aliased.

func (r *Repository[T]) cacheGet(ctx context.Context, id string) (docstore.Document, bool) {
	if r.cache == nil {
		return nil, false
	}
	v, ok := r.cache.Get(ctx, cache.Key(r.cfg.CollectionName, id))
	if !ok {
		return nil, false
	}
	doc, ok := v.(docstore.Document)
	return doc, ok
}

func (r *Repository[T]) cacheSet(ctx context.Context, id string, doc docstore.Document) {
	if r.cache == nil || doc == nil {
		return
	}
	r.cache.Set(ctx, cache.Key(r.cfg.CollectionName, id), doc)
}

func (r *Repository[T]) cacheDelete(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, cache.Key(r.cfg.CollectionName, id))
}

// --- reads ---------------------------------------------------------------

// FindByID returns the entity with the given id. Missing entities, and
// soft-deleted entities unless opts.IncludeDeleted, are reported as
// *NotFoundError.
func (r *Repository[T]) FindByID(ctx context.Context, id string, opts *FindOptions) (T, error) {
	if opts == nil {
		opts = &FindOptions{}
	}

	if opts.Transaction != nil {
		snap, err := opts.Transaction.Get(ctx, r.cfg.CollectionName, id)
		if err != nil {
			return r.zero(), r.storeErr("get", err)
		}
		return r.snapshotToEntity(snap, id, opts.IncludeDeleted)
	}

	if !opts.BypassCache {
		if doc, ok := r.cacheGet(ctx, id); ok {
			r.logger.Debug("cache hit",
				zap.String("collection", r.cfg.CollectionName),
				zap.String("id", id))
			if r.cfg.SoftDeletes && !opts.IncludeDeleted && docBool(doc, fieldIsDeleted) {
				return r.zero(), r.notFound(id)
			}
			return r.converter.FromStore(doc)
		}
	}

	snap, err := r.client.Get(ctx, r.cfg.CollectionName, id)
	if err != nil {
		return r.zero(), r.storeErr("get", err)
	}
	if snap.Exists {
		r.cacheSet(ctx, id, snap.Data)
	}
	return r.snapshotToEntity(snap, id, opts.IncludeDeleted)
}

func (r *Repository[T]) snapshotToEntity(snap docstore.Snapshot, id string, includeDeleted bool) (T, error) {
	if !snap.Exists {
		return r.zero(), r.notFound(id)
	}
	if r.cfg.SoftDeletes && !includeDeleted && docBool(snap.Data, fieldIsDeleted) {
		return r.zero(), r.notFound(id)
	}
	return r.converter.FromStore(snap.Data)
}

func (r *Repository[T]) buildQuery(filter map[string]any, advanced []docstore.Filter, includeDeleted bool) docstore.Query {
	var q docstore.Query
	for field, value := range filter {
		q.Filters = append(q.Filters, docstore.Filter{Field: field, Op: docstore.OpEqual, Value: value})
	}
	q.Filters = append(q.Filters, advanced...)
	if r.cfg.SoftDeletes && !includeDeleted {
		q.Filters = append(q.Filters, docstore.Filter{Field: fieldIsDeleted, Op: docstore.OpEqual, Value: false})
	}
	return q
}

// Find returns the entities matching opts. Query results are never cached;
// every call reads the store (opts.UseCache is reserved).
func (r *Repository[T]) Find(ctx context.Context, opts *QueryOptions) ([]T, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}

	q := r.buildQuery(opts.Filter, opts.Advanced, opts.IncludeDeleted)
	q.OrderBy = opts.OrderBy
	q.Direction = opts.Direction
	q.Limit = opts.Limit
	q.Offset = opts.Offset

	snaps, err := r.client.Query(ctx, r.cfg.CollectionName, q)
	if err != nil {
		return nil, r.storeErr("query", err)
	}

	out := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		entity, err := r.converter.FromStore(snap.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// FindAll returns every live entity in the collection.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.Find(ctx, nil)
}

// Count returns the number of entities matching opts.
func (r *Repository[T]) Count(ctx context.Context, opts *CountOptions) (int64, error) {
	if opts == nil {
		opts = &CountOptions{}
	}
	q := r.buildQuery(opts.Filter, opts.Advanced, opts.IncludeDeleted)

	if opts.MaxCount > 0 {
		q.Limit = opts.MaxCount
		snaps, err := r.client.Query(ctx, r.cfg.CollectionName, q)
		if err != nil {
			return 0, r.storeErr("count", err)
		}
		return int64(len(snaps)), nil
	}

	n, err := r.client.Count(ctx, r.cfg.CollectionName, q)
	if err != nil {
		return 0, r.storeErr("count", err)
	}
	return n, nil
}

// Exists reports whether a document with the given id exists, soft-deleted or
// not. A fresh cache entry answers without a store read; a miss always
// checks the store.
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	if _, ok := r.cacheGet(ctx, id); ok {
		return true, nil
	}
	snap, err := r.client.Get(ctx, r.cfg.CollectionName, id)
	if err != nil {
		return false, r.storeErr("get", err)
	}
	return snap.Exists, nil
}

// --- writes --------------------------------------------------------------

// Create writes a new entity and returns it with metadata assigned. The
// returned value is decoded from the written document, not the caller's
// pointer.
func (r *Repository[T]) Create(ctx context.Context, entity T, opts *CreateOptions) (T, error) {
	if opts == nil {
		opts = &CreateOptions{}
	}
	if opts.Transaction != nil && opts.Batch != nil {
		return r.zero(), errMutuallyExclusive
	}
	deferred := opts.Transaction != nil || opts.Batch != nil
	if opts.UseServerTimestamp && deferred {
		return r.zero(), errors.New("repository: UseServerTimestamp requires a direct write")
	}

	meta := entity.Meta()
	id := meta.ID
	if opts.UseProvidedID && id == "" {
		return r.zero(), &ValidationError{Collection: r.cfg.CollectionName, Missing: []string{fieldID}}
	}
	if id == "" {
		id = r.client.GenerateID()
	}

	now := nowUTC()
	meta.ID = id
	meta.IsDeleted = false
	meta.DeletedAt = nil
	meta.Version = r.initialVersion(opts.InitialVersion)
	if r.cfg.AutoTimestamps {
		meta.CreatedAt = now
		meta.UpdatedAt = now
	}

	doc, err := r.converter.ToStore(entity)
	if err != nil {
		return r.zero(), err
	}
	doc[fieldID] = id

	if r.cfg.ValidateOnWrite && !opts.SkipValidation {
		if missing := r.missingRequired(doc); len(missing) > 0 {
			return r.zero(), &ValidationError{Collection: r.cfg.CollectionName, Missing: missing}
		}
	}

	if opts.UseServerTimestamp && r.cfg.AutoTimestamps {
		doc[fieldCreatedAt] = docstore.ServerTimestamp
		doc[fieldUpdatedAt] = docstore.ServerTimestamp
	}

	switch {
	case opts.Transaction != nil:
		if err := opts.Transaction.Set(r.cfg.CollectionName, id, doc); err != nil {
			return r.zero(), r.storeErr("create", err)
		}
	case opts.Batch != nil:
		opts.Batch.Set(r.cfg.CollectionName, id, doc)
	default:
		if err := r.client.Create(ctx, r.cfg.CollectionName, id, doc); err != nil {
			return r.zero(), r.storeErr("create", err)
		}
	}

	if opts.UseServerTimestamp {
		snap, err := r.client.Get(ctx, r.cfg.CollectionName, id)
		if err != nil || !snap.Exists {
			return r.zero(), r.storeErr("create readback", err)
		}
		doc = snap.Data
	}

	if !deferred && !opts.SkipCache {
		r.cacheSet(ctx, id, doc)
	}
	return r.converter.FromStore(doc)
}

func (r *Repository[T]) initialVersion(override int64) int64 {
	v := r.cfg.InitialVersion
	if override > 0 {
		v = override
	}
	if v < 1 {
		v = 1
	}
	return v
}

// missingRequired reports configured required fields that are absent, nil,
// or the empty string.
func (r *Repository[T]) missingRequired(doc docstore.Document) []string {
	var missing []string
	for _, field := range r.cfg.RequiredFields {
		v, ok := doc[field]
		if !ok || v == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// reservedIn reports reserved metadata fields present in changes.
func reservedIn(changes map[string]any) []string {
	var found []string
	for _, field := range reservedFields {
		if _, ok := changes[field]; ok {
			found = append(found, field)
		}
	}
	return found
}

// Update applies a partial field merge to the entity with the given id.
// Optimistic checks run against the freshly read document and reject the
// write before any mutation; reserved metadata fields in changes are
// rejected with ValidationError.
//
// Outside a transaction the version check and the write are separate store
// operations; callers that need the check to be atomic run the update inside
// RunTransaction.
func (r *Repository[T]) Update(ctx context.Context, id string, changes map[string]any, opts *UpdateOptions) (T, error) {
	if opts == nil {
		opts = &UpdateOptions{}
	}

	if reserved := reservedIn(changes); len(reserved) > 0 {
		return r.zero(), &ValidationError{Collection: r.cfg.CollectionName, Reserved: reserved}
	}
	if r.cfg.ValidateOnWrite && !opts.SkipValidation {
		if missing := r.missingRequiredChanges(changes); len(missing) > 0 {
			return r.zero(), &ValidationError{Collection: r.cfg.CollectionName, Missing: missing}
		}
	}

	current, err := r.readForWrite(ctx, id, opts.Transaction)
	if err != nil {
		return r.zero(), err
	}
	if r.cfg.SoftDeletes && !opts.BypassSoftDeleteCheck && docBool(current, fieldIsDeleted) {
		return r.zero(), r.notFound(id)
	}
	if err := r.checkConcurrency(current, id, opts.ExpectedVersion, opts.ExpectedUpdatedAt); err != nil {
		return r.zero(), err
	}

	fields := make(docstore.Document, len(changes)+2)
	for k, v := range changes {
		fields[k] = v
	}
	if r.cfg.AutoTimestamps && !opts.SkipUpdatedAt {
		fields[fieldUpdatedAt] = nowUTC()
	}
	if r.cfg.Versioning && !opts.SkipVersionBump {
		fields[fieldVersion] = docVersion(current) + 1
	}

	if opts.Transaction != nil {
		if err := opts.Transaction.Update(r.cfg.CollectionName, id, fields); err != nil {
			return r.zero(), r.storeErr("update", err)
		}
		// The merge is not visible until the transaction commits.
		r.cacheDelete(ctx, id)
	} else {
		if err := r.client.Update(ctx, r.cfg.CollectionName, id, fields); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return r.zero(), r.notFound(id)
			}
			return r.zero(), r.storeErr("update", err)
		}
	}

	merged := mergeDocuments(current, fields)
	if opts.Transaction == nil {
		r.cacheSet(ctx, id, merged)
	}
	return r.converter.FromStore(merged)
}

// missingRequiredChanges rejects changes that blank out a required field.
func (r *Repository[T]) missingRequiredChanges(changes map[string]any) []string {
	var missing []string
	for _, field := range r.cfg.RequiredFields {
		v, ok := changes[field]
		if !ok {
			continue
		}
		if v == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// readForWrite fetches the current document, bypassing the cache: write
// decisions must be made against store state.
func (r *Repository[T]) readForWrite(ctx context.Context, id string, tx docstore.Tx) (docstore.Document, error) {
	var snap docstore.Snapshot
	var err error
	if tx != nil {
		snap, err = tx.Get(ctx, r.cfg.CollectionName, id)
	} else {
		snap, err = r.client.Get(ctx, r.cfg.CollectionName, id)
	}
	if err != nil {
		return nil, r.storeErr("get", err)
	}
	if !snap.Exists {
		return nil, r.notFound(id)
	}
	return snap.Data, nil
}

func (r *Repository[T]) checkConcurrency(current docstore.Document, id string, expectedVersion *int64, expectedUpdatedAt *time.Time) error {
	if expectedVersion != nil {
		actual := docVersion(current)
		if actual != *expectedVersion {
			r.logger.Debug("version conflict",
				zap.String("collection", r.cfg.CollectionName),
				zap.String("id", id),
				zap.Int64("expected", *expectedVersion),
				zap.Int64("actual", actual))
			return &ConflictError{
				Collection:      r.cfg.CollectionName,
				ID:              id,
				ExpectedVersion: *expectedVersion,
				ActualVersion:   actual,
			}
		}
	}
	if expectedUpdatedAt != nil {
		actual, ok := docTime(current, fieldUpdatedAt)
		if !ok || !actual.Equal(*expectedUpdatedAt) {
			var actualPtr *time.Time
			if ok {
				actualPtr = &actual
			}
			return &ConflictError{
				Collection:        r.cfg.CollectionName,
				ID:                id,
				ExpectedUpdatedAt: expectedUpdatedAt,
				ActualUpdatedAt:   actualPtr,
			}
		}
	}
	return nil
}

// Delete removes the entity with the given id. The default is a soft delete;
// opts.Force removes the document physically. The cache entry for id is
// always purged, whichever route the write takes.
func (r *Repository[T]) Delete(ctx context.Context, id string, opts *DeleteOptions) (T, error) {
	if opts == nil {
		opts = &DeleteOptions{}
	}
	if opts.Transaction != nil && opts.Batch != nil {
		return r.zero(), errMutuallyExclusive
	}

	// Purge before any return path: a stale "live" entry must never be
	// served after a delete, even a failed one we cannot reason about.
	defer r.cacheDelete(ctx, id)

	soft := r.cfg.SoftDeletes && !opts.Force

	current, err := r.readForWrite(ctx, id, opts.Transaction)
	if err != nil {
		return r.zero(), err
	}
	if soft && docBool(current, fieldIsDeleted) {
		return r.zero(), r.notFound(id)
	}

	if soft {
		now := nowUTC()
		fields := docstore.Document{
			fieldIsDeleted: true,
			fieldDeletedAt: now,
		}
		if r.cfg.AutoTimestamps {
			fields[fieldUpdatedAt] = now
		}
		if r.cfg.Versioning {
			fields[fieldVersion] = docVersion(current) + 1
		}

		switch {
		case opts.Transaction != nil:
			err = opts.Transaction.Update(r.cfg.CollectionName, id, fields)
		case opts.Batch != nil:
			opts.Batch.Update(r.cfg.CollectionName, id, fields)
		default:
			err = r.client.Update(ctx, r.cfg.CollectionName, id, fields)
		}
		if err != nil {
			return r.zero(), r.storeErr("delete", err)
		}
		return r.converter.FromStore(mergeDocuments(current, fields))
	}

	switch {
	case opts.Transaction != nil:
		err = opts.Transaction.Delete(r.cfg.CollectionName, id)
	case opts.Batch != nil:
		opts.Batch.Delete(r.cfg.CollectionName, id)
	default:
		err = r.client.Delete(ctx, r.cfg.CollectionName, id)
	}
	if err != nil {
		return r.zero(), r.storeErr("delete", err)
	}

	if opts.DeleteSubcollections {
		r.sweepSubcollections(ctx, id)
	}

	if opts.SnapshotBefore {
		return r.converter.FromStore(current)
	}
	return r.zero(), nil
}

// sweepSubcollections best-effort removes documents under
// "<collection>/<id>/". Failures are logged and swallowed: the parent delete
// already committed and there is no transactional link to preserve.
func (r *Repository[T]) sweepSubcollections(ctx context.Context, id string) {
	prefix := r.cfg.CollectionName + "/" + id + "/"
	names, err := r.client.Collections(ctx, prefix)
	if err != nil {
		r.logger.Debug("subcollection sweep failed",
			zap.String("collection", r.cfg.CollectionName),
			zap.String("id", id),
			zap.Error(err))
		return
	}

	for _, name := range names {
		snaps, err := r.client.Query(ctx, name, docstore.Query{})
		if err != nil {
			r.logger.Debug("subcollection sweep failed",
				zap.String("subcollection", name), zap.Error(err))
			continue
		}
		for start := 0; start < len(snaps); start += docstore.MaxBatchSize {
			end := start + docstore.MaxBatchSize
			if end > len(snaps) {
				end = len(snaps)
			}
			batch := r.client.Batch()
			for _, snap := range snaps[start:end] {
				batch.Delete(name, snap.ID)
			}
			if err := batch.Commit(ctx); err != nil {
				r.logger.Debug("subcollection sweep failed",
					zap.String("subcollection", name), zap.Error(err))
			}
		}
	}
}

// Restore clears the soft-delete markers on a previously soft-deleted
// entity. An entity that is not soft-deleted is reported as not found.
func (r *Repository[T]) Restore(ctx context.Context, id string, opts *RestoreOptions) (T, error) {
	if opts == nil {
		opts = &RestoreOptions{}
	}

	if reserved := reservedIn(opts.AdditionalUpdates); len(reserved) > 0 {
		return r.zero(), &ValidationError{Collection: r.cfg.CollectionName, Reserved: reserved}
	}

	current, err := r.readForWrite(ctx, id, opts.Transaction)
	if err != nil {
		return r.zero(), err
	}
	if !docBool(current, fieldIsDeleted) {
		return r.zero(), r.notFound(id)
	}

	fields := make(docstore.Document, len(opts.AdditionalUpdates)+4)
	for k, v := range opts.AdditionalUpdates {
		fields[k] = v
	}
	fields[fieldIsDeleted] = false
	fields[fieldDeletedAt] = nil
	if r.cfg.AutoTimestamps {
		fields[fieldUpdatedAt] = nowUTC()
	}
	if r.cfg.Versioning && !opts.SkipVersionBump {
		fields[fieldVersion] = docVersion(current) + 1
	}

	if opts.Transaction != nil {
		if err := opts.Transaction.Update(r.cfg.CollectionName, id, fields); err != nil {
			return r.zero(), r.storeErr("restore", err)
		}
		r.cacheDelete(ctx, id)
	} else {
		if err := r.client.Update(ctx, r.cfg.CollectionName, id, fields); err != nil {
			return r.zero(), r.storeErr("restore", err)
		}
	}

	merged := mergeDocuments(current, fields)
	delete(merged, fieldDeletedAt)
	if opts.Transaction == nil {
		r.cacheSet(ctx, id, merged)
	}
	return r.converter.FromStore(merged)
}

// RunTransaction exposes the store's transactional read-modify-write
// primitive. Repository calls made inside fn with the Tx handle participate
// in one atomic unit. Contention retries are the store's job; exhaustion
// surfaces as a StoreError wrapping docstore.ErrAborted.
func (r *Repository[T]) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts *TransactionOptions) error {
	var txOpts *docstore.TxOptions
	if opts != nil {
		txOpts = &docstore.TxOptions{
			MaxAttempts: opts.MaxAttempts,
			RetryDelay:  opts.RetryDelay,
		}
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
	}

	err := r.client.RunTransaction(ctx, fn, txOpts)
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrAborted) || errors.Is(err, context.DeadlineExceeded) {
		return r.storeErr("transaction", err)
	}
	// Callback errors propagate unchanged.
	return err
}

// --- document helpers ----------------------------------------------------

func mergeDocuments(base, fields docstore.Document) docstore.Document {
	merged := make(docstore.Document, len(base)+len(fields))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func docBool(doc docstore.Document, field string) bool {
	v, _ := doc[field].(bool)
	return v
}

// docVersion reads the version counter whichever numeric representation the
// store round-trip produced.
func docVersion(doc docstore.Document) int64 {
	switch v := doc[fieldVersion].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func docTime(doc docstore.Document, field string) (time.Time, bool) {
	switch v := doc[field].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
