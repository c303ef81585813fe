package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

type writeOp struct {
	kind       byte // 's' set, 'u' update, 'd' delete
	collection string
	id         string
	doc        docstore.Document
}

// tx reads through the SQL transaction and buffers writes until the callback
// returns, matching the write-at-commit semantics of the memory adapter.
type tx struct {
	store  *Store
	bunTx  bun.Tx
	writes []writeOp
}

var _ docstore.Tx = (*tx)(nil)

func (t *tx) Get(ctx context.Context, collection, id string) (docstore.Snapshot, error) {
	row := new(documentRow)
	err := t.bunTx.NewSelect().
		Model(row).
		Where("collection = ?", collection).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Snapshot{ID: id}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, err
	}
	doc, err := decodeDocument(row.Data)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{ID: id, Exists: true, Data: doc}, nil
}

func (t *tx) Set(collection, id string, doc docstore.Document) error {
	t.writes = append(t.writes, writeOp{kind: 's', collection: collection, id: id, doc: doc})
	return nil
}

func (t *tx) Update(collection, id string, fields docstore.Document) error {
	t.writes = append(t.writes, writeOp{kind: 'u', collection: collection, id: id, doc: fields})
	return nil
}

func (t *tx) Delete(collection, id string) error {
	t.writes = append(t.writes, writeOp{kind: 'd', collection: collection, id: id})
	return nil
}

func (t *tx) flush(ctx context.Context, now time.Time) error {
	for _, op := range t.writes {
		var err error
		switch op.kind {
		case 's':
			err = setInTx(ctx, t.bunTx, op.collection, op.id, op.doc, now)
		case 'u':
			err = updateInTx(ctx, t.bunTx, op.collection, op.id, op.doc, now)
		case 'd':
			err = deleteInTx(ctx, t.bunTx, op.collection, op.id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RunTransaction implements docstore.Client. The SQL engine provides
// isolation; attempts beyond the first only matter when the driver reports a
// serialization or busy failure.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts *docstore.TxOptions) error {
	attempts := 1
	var delay time.Duration
	if opts != nil {
		if opts.MaxAttempts > 1 {
			attempts = opts.MaxAttempts
		}
		delay = opts.RetryDelay
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.RunInTx(ctx, nil, func(ctx context.Context, bunTx bun.Tx) error {
			handle := &tx{store: s, bunTx: bunTx}
			if err := fn(ctx, handle); err != nil {
				return err
			}
			return handle.flush(ctx, s.now())
		})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		if delay > 0 && attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%w: %v", docstore.ErrAborted, lastErr)
}

// isRetryable recognizes driver contention failures worth another attempt.
func isRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "serialization failure")
}

type writeBatch struct {
	store *Store
	ops   []writeOp
}

var _ docstore.WriteBatch = (*writeBatch)(nil)

// Batch implements docstore.Client.
func (s *Store) Batch() docstore.WriteBatch {
	return &writeBatch{store: s}
}

func (b *writeBatch) Set(collection, id string, doc docstore.Document) {
	b.ops = append(b.ops, writeOp{kind: 's', collection: collection, id: id, doc: doc})
}

func (b *writeBatch) Update(collection, id string, fields docstore.Document) {
	b.ops = append(b.ops, writeOp{kind: 'u', collection: collection, id: id, doc: fields})
}

func (b *writeBatch) Delete(collection, id string) {
	b.ops = append(b.ops, writeOp{kind: 'd', collection: collection, id: id})
}

func (b *writeBatch) Len() int { return len(b.ops) }

// Commit applies the batch in one SQL transaction.
func (b *writeBatch) Commit(ctx context.Context) error {
	if len(b.ops) > docstore.MaxBatchSize {
		return docstore.ErrBatchSize
	}

	err := b.store.db.RunInTx(ctx, nil, func(ctx context.Context, bunTx bun.Tx) error {
		now := b.store.now()
		for _, op := range b.ops {
			var err error
			switch op.kind {
			case 's':
				err = setInTx(ctx, bunTx, op.collection, op.id, op.doc, now)
			case 'u':
				err = updateInTx(ctx, bunTx, op.collection, op.id, op.doc, now)
			case 'd':
				err = deleteInTx(ctx, bunTx, op.collection, op.id)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = nil
	return nil
}
