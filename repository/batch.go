package repository

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

// BatchItemError reports the failure of one item in a bulk operation.
type BatchItemError struct {
	Index int
	ID    string
	Err   error
}

// BatchError aggregates per-item failures from a bulk operation. Items not
// listed succeeded: bulk operations are chunked at docstore.MaxBatchSize and
// each chunk commits independently, so failure in one chunk does not undo
// the others.
type BatchError struct {
	Items []BatchItemError
}

func (e *BatchError) Error() string {
	if len(e.Items) == 0 {
		return "repository: batch operation failed"
	}
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("item %d (%s): %v", item.Index, item.ID, item.Err))
	}
	return fmt.Sprintf("repository: %d of batch failed: %s", len(e.Items), strings.Join(parts, "; "))
}

// orNil returns e as an error, or nil when nothing failed.
func (e *BatchError) orNil() error {
	if len(e.Items) == 0 {
		return nil
	}
	return e
}

type preparedWrite struct {
	index  int
	id     string
	doc    docstore.Document // full document for sets, changed fields for updates
	merged docstore.Document // post-merge document for cache/result, nil for deletes
}

// chunk slices writes into MaxBatchSize groups.
func chunkWrites(writes []preparedWrite) [][]preparedWrite {
	var chunks [][]preparedWrite
	for start := 0; start < len(writes); start += docstore.MaxBatchSize {
		end := start + docstore.MaxBatchSize
		if end > len(writes) {
			end = len(writes)
		}
		chunks = append(chunks, writes[start:end])
	}
	return chunks
}

// CreateMany creates entities in chunked, independently committed batches.
// Validation runs for every entity before any write; a validation failure
// anywhere aborts the whole call with a BatchError and nothing is written.
// After writes begin, chunk failures are reported per item alongside the
// entities that did commit.
func (r *Repository[T]) CreateMany(ctx context.Context, entities []T, opts *CreateManyOptions) ([]T, error) {
	if opts == nil {
		opts = &CreateManyOptions{}
	}
	if len(entities) == 0 {
		return nil, nil
	}

	batchErr := &BatchError{}
	writes := make([]preparedWrite, 0, len(entities))
	for i, entity := range entities {
		meta := entity.Meta()
		id := meta.ID
		if opts.UseProvidedID && id == "" {
			batchErr.Items = append(batchErr.Items, BatchItemError{
				Index: i,
				Err:   &ValidationError{Collection: r.cfg.CollectionName, Missing: []string{fieldID}},
			})
			continue
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
			batchErr.Items = append(batchErr.Items, BatchItemError{Index: i, ID: id, Err: err})
			continue
		}
		if r.cfg.ValidateOnWrite && !opts.SkipValidation {
			if missing := r.missingRequired(doc); len(missing) > 0 {
				batchErr.Items = append(batchErr.Items, BatchItemError{
					Index: i,
					ID:    id,
					Err:   &ValidationError{Collection: r.cfg.CollectionName, Missing: missing},
				})
				continue
			}
		}
		writes = append(writes, preparedWrite{index: i, id: id, doc: doc, merged: doc})
	}
	if len(batchErr.Items) > 0 {
		// Local rejections abort before any store mutation.
		return nil, batchErr
	}

	var created []T
	for _, chunk := range chunkWrites(writes) {
		batch := r.client.Batch()
		for _, w := range chunk {
			batch.Set(r.cfg.CollectionName, w.id, w.doc)
		}
		if err := batch.Commit(ctx); err != nil {
			r.logger.Debug("batch chunk failed",
				zap.String("collection", r.cfg.CollectionName),
				zap.Int("size", len(chunk)),
				zap.Error(err))
			for _, w := range chunk {
				batchErr.Items = append(batchErr.Items, BatchItemError{Index: w.index, ID: w.id, Err: r.storeErr("createMany", err)})
			}
			continue
		}
		for _, w := range chunk {
			if !opts.SkipCache {
				r.cacheSet(ctx, w.id, w.merged)
			}
			entity, err := r.converter.FromStore(w.merged)
			if err != nil {
				batchErr.Items = append(batchErr.Items, BatchItemError{Index: w.index, ID: w.id, Err: err})
				continue
			}
			created = append(created, entity)
		}
	}
	return created, batchErr.orNil()
}

// UpdateMany applies partial merges to many entities. Each item is read and
// checked individually (soft-delete visibility, reserved fields, optimistic
// version); items failing a check are reported per item and excluded before
// the surviving merges are committed in chunked batches.
func (r *Repository[T]) UpdateMany(ctx context.Context, items []UpdateItem, opts *UpdateManyOptions) ([]T, error) {
	if opts == nil {
		opts = &UpdateManyOptions{}
	}
	if len(items) == 0 {
		return nil, nil
	}

	batchErr := &BatchError{}
	writes := make([]preparedWrite, 0, len(items))
	for i, item := range items {
		if reserved := reservedIn(item.Changes); len(reserved) > 0 {
			batchErr.Items = append(batchErr.Items, BatchItemError{
				Index: i, ID: item.ID,
				Err: &ValidationError{Collection: r.cfg.CollectionName, Reserved: reserved},
			})
			continue
		}
		if r.cfg.ValidateOnWrite && !opts.SkipValidation {
			if missing := r.missingRequiredChanges(item.Changes); len(missing) > 0 {
				batchErr.Items = append(batchErr.Items, BatchItemError{
					Index: i, ID: item.ID,
					Err: &ValidationError{Collection: r.cfg.CollectionName, Missing: missing},
				})
				continue
			}
		}

		current, err := r.readForWrite(ctx, item.ID, nil)
		if err != nil {
			batchErr.Items = append(batchErr.Items, BatchItemError{Index: i, ID: item.ID, Err: err})
			continue
		}
		if r.cfg.SoftDeletes && !opts.BypassSoftDeleteCheck && docBool(current, fieldIsDeleted) {
			batchErr.Items = append(batchErr.Items, BatchItemError{Index: i, ID: item.ID, Err: r.notFound(item.ID)})
			continue
		}
		if err := r.checkConcurrency(current, item.ID, item.ExpectedVersion, nil); err != nil {
			batchErr.Items = append(batchErr.Items, BatchItemError{Index: i, ID: item.ID, Err: err})
			continue
		}

		fields := make(docstore.Document, len(item.Changes)+2)
		for k, v := range item.Changes {
			fields[k] = v
		}
		if r.cfg.AutoTimestamps {
			fields[fieldUpdatedAt] = nowUTC()
		}
		if r.cfg.Versioning {
			fields[fieldVersion] = docVersion(current) + 1
		}
		writes = append(writes, preparedWrite{index: i, id: item.ID, doc: fields, merged: mergeDocuments(current, fields)})
	}

	var updated []T
	for _, chunk := range chunkWrites(writes) {
		batch := r.client.Batch()
		for _, w := range chunk {
			batch.Update(r.cfg.CollectionName, w.id, w.doc)
		}
		if err := batch.Commit(ctx); err != nil {
			for _, w := range chunk {
				r.cacheDelete(ctx, w.id)
				batchErr.Items = append(batchErr.Items, BatchItemError{Index: w.index, ID: w.id, Err: r.storeErr("updateMany", err)})
			}
			continue
		}
		for _, w := range chunk {
			if opts.SkipCache {
				r.cacheDelete(ctx, w.id)
			} else {
				r.cacheSet(ctx, w.id, w.merged)
			}
			entity, err := r.converter.FromStore(w.merged)
			if err != nil {
				batchErr.Items = append(batchErr.Items, BatchItemError{Index: w.index, ID: w.id, Err: err})
				continue
			}
			updated = append(updated, entity)
		}
	}
	return updated, batchErr.orNil()
}

// DeleteMany removes many entities, soft by default, hard with opts.Force.
// Missing ids are reported per item; cache entries for every touched id are
// purged whether or not its chunk committed.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids []string, opts *DeleteManyOptions) error {
	if opts == nil {
		opts = &DeleteManyOptions{}
	}
	if len(ids) == 0 {
		return nil
	}

	soft := r.cfg.SoftDeletes && !opts.Force
	batchErr := &BatchError{}
	writes := make([]preparedWrite, 0, len(ids))

	for i, id := range ids {
		r.cacheDelete(ctx, id)

		if !soft {
			writes = append(writes, preparedWrite{index: i, id: id})
			continue
		}

		current, err := r.readForWrite(ctx, id, nil)
		if err != nil {
			batchErr.Items = append(batchErr.Items, BatchItemError{Index: i, ID: id, Err: err})
			continue
		}
		if docBool(current, fieldIsDeleted) {
			batchErr.Items = append(batchErr.Items, BatchItemError{Index: i, ID: id, Err: r.notFound(id)})
			continue
		}

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
		writes = append(writes, preparedWrite{index: i, id: id, doc: fields})
	}

	for _, chunk := range chunkWrites(writes) {
		batch := r.client.Batch()
		for _, w := range chunk {
			if soft {
				batch.Update(r.cfg.CollectionName, w.id, w.doc)
			} else {
				batch.Delete(r.cfg.CollectionName, w.id)
			}
		}
		if err := batch.Commit(ctx); err != nil {
			for _, w := range chunk {
				batchErr.Items = append(batchErr.Items, BatchItemError{Index: w.index, ID: w.id, Err: r.storeErr("deleteMany", err)})
			}
		}
	}
	return batchErr.orNil()
}
