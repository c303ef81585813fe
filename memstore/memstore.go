// Package memstore provides an in-process docstore.Client backed by Go maps.
//
// Documents carry an internal revision counter used to validate transaction
// read-sets at commit: a transaction whose reads were overwritten by another
// committer aborts and is retried up to its attempt budget. This gives the
// repository layer real contention semantics without an external database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

// storedDoc is a document plus the revision used for transaction validation.
type storedDoc struct {
	data docstore.Document
	rev  uint64
}

// collection guards one named collection. Reads take the lock briefly and
// copy out; document data is never shared with callers.
type collection struct {
	mu   sync.RWMutex
	docs map[string]*storedDoc
}

// Store is an in-memory docstore.Client.
type Store struct {
	collections *xsync.MapOf[string, *collection]

	// commitMu serializes transaction commits so read-set validation and
	// write application are one atomic step.
	commitMu sync.Mutex

	now func() time.Time
}

var _ docstore.Client = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		collections: xsync.NewMapOf[string, *collection](),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) coll(name string) *collection {
	c, _ := s.collections.LoadOrCompute(name, func() *collection {
		return &collection{docs: make(map[string]*storedDoc)}
	})
	return c
}

func cloneDocument(doc docstore.Document) docstore.Document {
	if doc == nil {
		return nil
	}
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case docstore.Document:
		return cloneDocument(tv)
	case map[string]any:
		return map[string]any(cloneDocument(docstore.Document(tv)))
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(tv))
		copy(out, tv)
		return out
	default:
		return v
	}
}

// Get implements docstore.Client.
func (s *Store) Get(ctx context.Context, collectionName, id string) (docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	c := s.coll(collectionName)
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return docstore.Snapshot{ID: id}, nil
	}
	return docstore.Snapshot{ID: id, Exists: true, Data: cloneDocument(doc.data)}, nil
}

// Set implements docstore.Client.
func (s *Store) Set(ctx context.Context, collectionName, id string, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved := docstore.ResolveServerTimestamps(doc, s.now())
	c := s.coll(collectionName)
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.docs[id]
	var rev uint64 = 1
	if prev != nil {
		rev = prev.rev + 1
	}
	c.docs[id] = &storedDoc{data: cloneDocument(resolved), rev: rev}
	return nil
}

// Create implements docstore.Client.
func (s *Store) Create(ctx context.Context, collectionName, id string, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved := docstore.ResolveServerTimestamps(doc, s.now())
	c := s.coll(collectionName)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; ok {
		return docstore.ErrExists
	}
	c.docs[id] = &storedDoc{data: cloneDocument(resolved), rev: 1}
	return nil
}

// Update implements docstore.Client.
func (s *Store) Update(ctx context.Context, collectionName, id string, fields docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved := docstore.ResolveServerTimestamps(fields, s.now())
	c := s.coll(collectionName)
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	merged := cloneDocument(doc.data)
	for k, v := range resolved {
		merged[k] = cloneValue(v)
	}
	c.docs[id] = &storedDoc{data: merged, rev: doc.rev + 1}
	return nil
}

// Delete implements docstore.Client.
func (s *Store) Delete(ctx context.Context, collectionName, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.coll(collectionName)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	return nil
}

// Query implements docstore.Client.
func (s *Store) Query(ctx context.Context, collectionName string, q docstore.Query) ([]docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := s.coll(collectionName)
	c.mu.RLock()
	snaps := make([]docstore.Snapshot, 0, len(c.docs))
	for id, doc := range c.docs {
		snaps = append(snaps, docstore.Snapshot{ID: id, Exists: true, Data: cloneDocument(doc.data)})
	}
	c.mu.RUnlock()

	return q.Apply(snaps)
}

// Count implements docstore.Client.
func (s *Store) Count(ctx context.Context, collectionName string, q docstore.Query) (int64, error) {
	stripped := docstore.Query{Filters: q.Filters}
	snaps, err := s.Query(ctx, collectionName, stripped)
	if err != nil {
		return 0, err
	}
	return int64(len(snaps)), nil
}

// Collections implements docstore.Client.
func (s *Store) Collections(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	s.collections.Range(func(name string, c *collection) bool {
		if !strings.HasPrefix(name, prefix) {
			return true
		}
		c.mu.RLock()
		empty := len(c.docs) == 0
		c.mu.RUnlock()
		if !empty {
			names = append(names, name)
		}
		return true
	})
	sort.Strings(names)
	return names, nil
}

// GenerateID implements docstore.Client.
func (s *Store) GenerateID() string {
	return uuid.NewString()
}

// Batch implements docstore.Client.
func (s *Store) Batch() docstore.WriteBatch {
	return &writeBatch{store: s}
}
