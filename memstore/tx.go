package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

type writeOp struct {
	kind       byte // 's' set, 'u' update, 'd' delete
	collection string
	id         string
	doc        docstore.Document
}

type readKey struct {
	collection string
	id         string
}

// tx buffers writes and records the revision of every document read so the
// commit step can detect writes that raced it.
type tx struct {
	store  *Store
	reads  map[readKey]uint64
	writes []writeOp
}

var _ docstore.Tx = (*tx)(nil)

func (t *tx) Get(ctx context.Context, collectionName, id string) (docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	c := t.store.coll(collectionName)
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := readKey{collection: collectionName, id: id}
	doc, ok := c.docs[id]

	// Record the revision of the first read only: commit validation checks
	// against the transaction's original view, so a document that changed
	// between two reads of the same transaction still aborts it.
	if _, seen := t.reads[key]; !seen {
		if ok {
			t.reads[key] = doc.rev
		} else {
			t.reads[key] = 0
		}
	}
	if !ok {
		return docstore.Snapshot{ID: id}, nil
	}
	return docstore.Snapshot{ID: id, Exists: true, Data: cloneDocument(doc.data)}, nil
}

func (t *tx) Set(collectionName, id string, doc docstore.Document) error {
	t.writes = append(t.writes, writeOp{kind: 's', collection: collectionName, id: id, doc: cloneDocument(doc)})
	return nil
}

func (t *tx) Update(collectionName, id string, fields docstore.Document) error {
	t.writes = append(t.writes, writeOp{kind: 'u', collection: collectionName, id: id, doc: cloneDocument(fields)})
	return nil
}

func (t *tx) Delete(collectionName, id string) error {
	t.writes = append(t.writes, writeOp{kind: 'd', collection: collectionName, id: id})
	return nil
}

// commit validates the read-set and applies the write buffer as one step.
// Returns errConflict when a read document changed since it was read.
var errConflict = fmt.Errorf("memstore: read-set conflict")

func (t *tx) commit(now time.Time) error {
	t.store.commitMu.Lock()
	defer t.store.commitMu.Unlock()

	for key, rev := range t.reads {
		c := t.store.coll(key.collection)
		c.mu.RLock()
		doc, ok := c.docs[key.id]
		current := uint64(0)
		if ok {
			current = doc.rev
		}
		c.mu.RUnlock()
		if current != rev {
			return errConflict
		}
	}

	// Updates against missing documents fail the whole transaction before
	// any write is applied. Earlier buffered Sets satisfy later Updates.
	exists := make(map[readKey]bool, len(t.writes))
	for _, op := range t.writes {
		k := readKey{collection: op.collection, id: op.id}
		switch op.kind {
		case 's':
			exists[k] = true
		case 'd':
			exists[k] = false
		case 'u':
			ok, seen := exists[k]
			if !seen {
				c := t.store.coll(op.collection)
				c.mu.RLock()
				_, ok = c.docs[op.id]
				c.mu.RUnlock()
				exists[k] = ok
			}
			if !ok {
				return docstore.ErrNotFound
			}
		}
	}

	for _, op := range t.writes {
		applyWrite(t.store, op, now)
	}
	return nil
}

func applyWrite(s *Store, op writeOp, now time.Time) {
	c := s.coll(op.collection)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch op.kind {
	case 's':
		resolved := docstore.ResolveServerTimestamps(op.doc, now)
		var rev uint64 = 1
		if prev := c.docs[op.id]; prev != nil {
			rev = prev.rev + 1
		}
		c.docs[op.id] = &storedDoc{data: cloneDocument(resolved), rev: rev}
	case 'u':
		prev := c.docs[op.id]
		if prev == nil {
			return
		}
		resolved := docstore.ResolveServerTimestamps(op.doc, now)
		merged := cloneDocument(prev.data)
		for k, v := range resolved {
			merged[k] = cloneValue(v)
		}
		c.docs[op.id] = &storedDoc{data: merged, rev: prev.rev + 1}
	case 'd':
		delete(c.docs, op.id)
	}
}

// RunTransaction implements docstore.Client. The callback may run multiple
// times; side effects outside the Tx handle must be idempotent.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts *docstore.TxOptions) error {
	attempts := 1
	var delay time.Duration
	if opts != nil {
		if opts.MaxAttempts > 1 {
			attempts = opts.MaxAttempts
		}
		delay = opts.RetryDelay
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := &tx{store: s, reads: make(map[readKey]uint64)}
		if err := fn(ctx, t); err != nil {
			return err
		}

		err := t.commit(s.now())
		if err == nil {
			return nil
		}
		if err != errConflict {
			return err
		}
		if delay > 0 && attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return docstore.ErrAborted
}

type writeBatch struct {
	store *Store
	ops   []writeOp
}

var _ docstore.WriteBatch = (*writeBatch)(nil)

func (b *writeBatch) Set(collectionName, id string, doc docstore.Document) {
	b.ops = append(b.ops, writeOp{kind: 's', collection: collectionName, id: id, doc: cloneDocument(doc)})
}

func (b *writeBatch) Update(collectionName, id string, fields docstore.Document) {
	b.ops = append(b.ops, writeOp{kind: 'u', collection: collectionName, id: id, doc: cloneDocument(fields)})
}

func (b *writeBatch) Delete(collectionName, id string) {
	b.ops = append(b.ops, writeOp{kind: 'd', collection: collectionName, id: id})
}

func (b *writeBatch) Len() int { return len(b.ops) }

// Commit applies the batch all-or-nothing: updates against missing documents
// fail the commit before any write lands.
func (b *writeBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.ops) > docstore.MaxBatchSize {
		return docstore.ErrBatchSize
	}

	b.store.commitMu.Lock()
	defer b.store.commitMu.Unlock()

	// Validate updates against the state the batch itself produces: a Set
	// earlier in the batch satisfies a later Update on the same document.
	exists := make(map[readKey]bool, len(b.ops))
	present := func(k readKey) bool {
		if v, ok := exists[k]; ok {
			return v
		}
		c := b.store.coll(k.collection)
		c.mu.RLock()
		_, ok := c.docs[k.id]
		c.mu.RUnlock()
		exists[k] = ok
		return ok
	}
	for _, op := range b.ops {
		k := readKey{collection: op.collection, id: op.id}
		switch op.kind {
		case 's':
			exists[k] = true
		case 'd':
			exists[k] = false
		case 'u':
			if !present(k) {
				return docstore.ErrNotFound
			}
		}
	}

	now := b.store.now()
	for _, op := range b.ops {
		applyWrite(b.store, op, now)
	}
	b.ops = nil
	return nil
}
