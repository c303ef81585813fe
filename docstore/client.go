package docstore

import (
	"context"
	"time"
)

// MaxBatchSize is the largest number of writes a single WriteBatch may hold.
// It mirrors the per-batch limit of managed document stores; callers with
// more writes than this must split them across independently committed
// batches.
const MaxBatchSize = 500

// Document is the raw, schemaless representation of a stored entity.
// Adapters treat it as opaque apart from ServerTimestamp resolution.
type Document map[string]any

// Snapshot is the result of a point read.
type Snapshot struct {
	ID     string
	Exists bool
	Data   Document
}

// TxOptions governs the retry policy of RunTransaction. The zero value means
// a single attempt with no delay between retries.
type TxOptions struct {
	// MaxAttempts is the total number of times the callback may run before
	// the transaction is abandoned with ErrAborted. Values below 1 are
	// treated as 1.
	MaxAttempts int

	// RetryDelay is slept between attempts after a contention abort.
	RetryDelay time.Duration
}

// Tx is the handle for reads and writes participating in a transaction.
// Writes are buffered until the enclosing RunTransaction callback returns
// nil; they are never visible to reads outside the transaction beforehand.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)

	// Set creates or replaces the document.
	Set(collection, id string, doc Document) error

	// Update merges fields into an existing document; ErrNotFound is
	// surfaced at commit if the document does not exist.
	Update(collection, id string, fields Document) error

	Delete(collection, id string) error
}

// WriteBatch accumulates writes that commit atomically. A batch is not a
// transaction: it performs no reads and provides no isolation, only
// all-or-nothing application of its writes.
type WriteBatch interface {
	Set(collection, id string, doc Document)
	Update(collection, id string, fields Document)
	Delete(collection, id string)

	// Len reports the number of buffered writes.
	Len() int

	// Commit applies all buffered writes. ErrBatchSize is returned without
	// applying anything when Len exceeds MaxBatchSize.
	Commit(ctx context.Context) error
}

// Client is the document store surface the repository layer consumes.
// Implementations must be safe for concurrent use.
type Client interface {
	// Get performs a point read. A missing document is reported through
	// Snapshot.Exists, not an error.
	Get(ctx context.Context, collection, id string) (Snapshot, error)

	// Set creates or replaces the document.
	Set(ctx context.Context, collection, id string, doc Document) error

	// Create writes the document only if it does not already exist;
	// otherwise ErrExists.
	Create(ctx context.Context, collection, id string, doc Document) error

	// Update merges fields into an existing document; ErrNotFound if the
	// document does not exist.
	Update(ctx context.Context, collection, id string, fields Document) error

	// Delete removes the document. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// Query returns the snapshots matching q, ordered and sliced per q.
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)

	// Count reports how many documents match q's filters. OrderBy, Limit
	// and Offset on q are ignored.
	Count(ctx context.Context, collection string, q Query) (int64, error)

	// Collections lists the collection names starting with prefix, in
	// lexical order. An empty prefix lists every collection.
	Collections(ctx context.Context, prefix string) ([]string, error)

	// GenerateID returns a new document id unique within the store.
	GenerateID() string

	// RunTransaction executes fn with a Tx handle, retrying on contention
	// per opts. A nil opts uses the zero TxOptions.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error, opts *TxOptions) error

	// Batch returns a new, empty WriteBatch.
	Batch() WriteBatch
}

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp, used as a Document field value, is replaced by the store's
// current time when the write is applied.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the server timestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveServerTimestamps returns a copy of doc with every ServerTimestamp
// sentinel replaced by now. Documents without sentinels are returned as-is.
func ResolveServerTimestamps(doc Document, now time.Time) Document {
	dirty := false
	for _, v := range doc {
		if IsServerTimestamp(v) {
			dirty = true
			break
		}
	}
	if !dirty {
		return doc
	}

	out := make(Document, len(doc))
	for k, v := range doc {
		if IsServerTimestamp(v) {
			out[k] = now
		} else {
			out[k] = v
		}
	}
	return out
}
