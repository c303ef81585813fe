package docstore

import "errors"

var (
	// ErrNotFound reports a write against a document that does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrExists reports a Create against a document that already exists.
	ErrExists = errors.New("docstore: document already exists")

	// ErrAborted reports a transaction that could not commit within its
	// attempt budget.
	ErrAborted = errors.New("docstore: transaction aborted")

	// ErrBatchSize reports a batch commit exceeding MaxBatchSize.
	ErrBatchSize = errors.New("docstore: batch exceeds maximum size")

	// ErrInvalidQuery reports a query using an unknown operator or an
	// operand the operator cannot be applied to.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)
