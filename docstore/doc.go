// Package docstore defines the document store contract consumed by the
// repository layer, together with the query model shared by every store
// adapter.
//
// # Overview
//
// A document store is addressed by (collection, id) and holds schemaless
// documents. This package fixes the surface the rest of the module depends
// on:
//
//   - Client: point reads/writes, filtered queries, counts, batches, and
//     transactions over named collections
//   - Tx: the explicit transaction handle threaded through transactional calls
//   - WriteBatch: an all-or-nothing group of writes, bounded by MaxBatchSize
//   - Query/Filter/Operator: the filter model, with exactly the operator set
//     `<, <=, ==, !=, >=, >, array-contains, array-contains-any, in, not-in`
//
// Two adapters implement Client: the in-memory memstore used in tests and
// single-process deployments, and the bun-backed bunstore that persists
// documents as JSON rows.
//
// # Transactions
//
// Transaction participation is always explicit: calls made inside a
// RunTransaction callback take the Tx handle, never an ambient context value.
// Reads observe the transaction's snapshot; writes are buffered and applied
// atomically at commit. Adapters retry contended transactions up to the
// configured attempt budget and surface exhaustion as ErrAborted.
//
// # Server timestamps
//
// A Document field set to ServerTimestamp is resolved to the store's clock at
// apply time. Callers that need the resolved value read the document back
// after the write commits.
package docstore
