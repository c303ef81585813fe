// Package bunstore persists documents as JSON rows through uptrace/bun.
//
// One table holds every collection: (collection, id) is the primary key and
// the document body is stored as a JSON blob. Predicates are evaluated
// through the shared docstore query model after rows are fetched by
// collection, which keeps operator semantics identical across SQL dialects;
// limit and offset are applied after the predicate, so pagination and counts
// stay consistent with the filter.
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Collection string    `bun:"collection,pk"`
	ID         string    `bun:"id,pk"`
	Data       []byte    `bun:"data,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

// Store is a docstore.Client backed by a bun database handle.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ docstore.Client = (*Store)(nil)

// New wraps db. Call Init once to create the documents table.
func New(db *bun.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Init creates the documents table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*documentRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bunstore: create table: %w", err)
	}
	return nil
}

func encodeDocument(doc docstore.Document, now time.Time) ([]byte, error) {
	resolved := docstore.ResolveServerTimestamps(doc, now)
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("bunstore: encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (docstore.Document, error) {
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bunstore: decode document: %w", err)
	}
	return doc, nil
}

// Get implements docstore.Client.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Snapshot, error) {
	row := new(documentRow)
	err := s.db.NewSelect().
		Model(row).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Snapshot{ID: id}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("bunstore: get: %w", err)
	}

	doc, err := decodeDocument(row.Data)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{ID: id, Exists: true, Data: doc}, nil
}

// Set implements docstore.Client.
func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Document) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return setInTx(ctx, tx, collection, id, doc, s.now())
	})
}

func setInTx(ctx context.Context, idb bun.IDB, collection, id string, doc docstore.Document, now time.Time) error {
	data, err := encodeDocument(doc, now)
	if err != nil {
		return err
	}
	row := &documentRow{Collection: collection, ID: id, Data: data, UpdatedAt: now}
	_, err = idb.NewInsert().
		Model(row).
		On("CONFLICT (collection, id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bunstore: set: %w", err)
	}
	return nil
}

// Create implements docstore.Client.
func (s *Store) Create(ctx context.Context, collection, id string, doc docstore.Document) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return createInTx(ctx, tx, collection, id, doc, s.now())
	})
}

func createInTx(ctx context.Context, idb bun.IDB, collection, id string, doc docstore.Document, now time.Time) error {
	exists, err := rowExists(ctx, idb, collection, id)
	if err != nil {
		return err
	}
	if exists {
		return docstore.ErrExists
	}

	data, err := encodeDocument(doc, now)
	if err != nil {
		return err
	}
	row := &documentRow{Collection: collection, ID: id, Data: data, UpdatedAt: now}
	if _, err := idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("bunstore: create: %w", err)
	}
	return nil
}

// Update implements docstore.Client.
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return updateInTx(ctx, tx, collection, id, fields, s.now())
	})
}

func updateInTx(ctx context.Context, idb bun.IDB, collection, id string, fields docstore.Document, now time.Time) error {
	row := new(documentRow)
	err := idb.NewSelect().
		Model(row).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("bunstore: update read: %w", err)
	}

	doc, err := decodeDocument(row.Data)
	if err != nil {
		return err
	}
	resolved := docstore.ResolveServerTimestamps(fields, now)
	for k, v := range resolved {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("bunstore: encode document: %w", err)
	}
	_, err = idb.NewUpdate().
		Model((*documentRow)(nil)).
		Set("data = ?", data).
		Set("updated_at = ?", now).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bunstore: update: %w", err)
	}
	return nil
}

// Delete implements docstore.Client.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return deleteInTx(ctx, s.db, collection, id)
}

func deleteInTx(ctx context.Context, idb bun.IDB, collection, id string) error {
	_, err := idb.NewDelete().
		Model((*documentRow)(nil)).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bunstore: delete: %w", err)
	}
	return nil
}

func rowExists(ctx context.Context, idb bun.IDB, collection, id string) (bool, error) {
	exists, err := idb.NewSelect().
		Model((*documentRow)(nil)).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("bunstore: exists: %w", err)
	}
	return exists, nil
}

func (s *Store) loadCollection(ctx context.Context, idb bun.IDB, collection string) ([]docstore.Snapshot, error) {
	var rows []documentRow
	err := idb.NewSelect().
		Model(&rows).
		Where("collection = ?", collection).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bunstore: query: %w", err)
	}

	snaps := make([]docstore.Snapshot, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument(row.Data)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, docstore.Snapshot{ID: row.ID, Exists: true, Data: doc})
	}
	return snaps, nil
}

// Query implements docstore.Client.
func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	snaps, err := s.loadCollection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	return q.Apply(snaps)
}

// Count implements docstore.Client.
func (s *Store) Count(ctx context.Context, collection string, q docstore.Query) (int64, error) {
	snaps, err := s.Query(ctx, collection, docstore.Query{Filters: q.Filters})
	if err != nil {
		return 0, err
	}
	return int64(len(snaps)), nil
}

// Collections implements docstore.Client.
func (s *Store) Collections(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*documentRow)(nil)).
		ColumnExpr("DISTINCT collection").
		Where("collection LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		OrderExpr("collection ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("bunstore: collections: %w", err)
	}
	return names, nil
}

// escapeLike neutralizes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// GenerateID implements docstore.Client.
func (s *Store) GenerateID() string {
	return uuid.NewString()
}
