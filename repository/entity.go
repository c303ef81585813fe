package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

// Metadata carries the bookkeeping fields every stored entity has. Embed it
// in an entity struct; the promoted Meta method satisfies Entity.
//
//	type Product struct {
//		repository.Metadata
//		Title string `json:"title"`
//	}
type Metadata struct {
	// ID is the document key, unique within the collection, assigned at
	// creation.
	ID string `json:"id"`

	// CreatedAt is set once at creation and never changes afterwards.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is refreshed on every successful write.
	UpdatedAt time.Time `json:"updatedAt"`

	// IsDeleted marks the entity soft-deleted. Soft-deleted entities are
	// excluded from reads unless explicitly requested.
	IsDeleted bool `json:"isDeleted"`

	// DeletedAt records when the entity was soft-deleted.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Version increments by exactly 1 on each accepted write and backs
	// optimistic concurrency checks.
	Version int64 `json:"version"`
}

// Meta returns the metadata block. Promoted through embedding, it makes any
// embedding pointer type satisfy Entity.
func (m *Metadata) Meta() *Metadata { return m }

// Entity is the capability contract the repository is generic over.
type Entity interface {
	Meta() *Metadata
}

// ModelHandlers supplies the per-type hooks a Repository needs. NewRecord is
// required; Converter defaults to the JSON converter when nil.
type ModelHandlers[T Entity] struct {
	// NewRecord returns a fresh, zero-valued entity for decoding into.
	NewRecord func() T

	// Converter overrides the entity/document translation at the store
	// boundary.
	Converter Converter[T]
}

// Converter translates entities to and from their raw document form. It must
// round-trip: FromStore(ToStore(x)) preserves every declared field of x.
type Converter[T any] interface {
	ToStore(entity T) (docstore.Document, error)
	FromStore(doc docstore.Document) (T, error)
}

// jsonConverter round-trips entities through encoding/json. Timestamps are
// carried as RFC 3339 strings inside documents and restored into time.Time
// fields on the way out.
type jsonConverter[T Entity] struct {
	newRecord func() T
}

// NewJSONConverter returns the default converter used when ModelHandlers
// leaves Converter nil.
func NewJSONConverter[T Entity](newRecord func() T) Converter[T] {
	return &jsonConverter[T]{newRecord: newRecord}
}

func (c *jsonConverter[T]) ToStore(entity T) (docstore.Document, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("repository: encode entity: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("repository: encode entity: %w", err)
	}
	return doc, nil
}

func (c *jsonConverter[T]) FromStore(doc docstore.Document) (T, error) {
	record := c.newRecord()
	raw, err := json.Marshal(doc)
	if err != nil {
		return record, fmt.Errorf("repository: decode document: %w", err)
	}
	if err := json.Unmarshal(raw, record); err != nil {
		return record, fmt.Errorf("repository: decode document: %w", err)
	}
	return record, nil
}

// nowUTC is the write-time clock: UTC at millisecond precision so document
// round-trips through JSON reproduce timestamps exactly.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
