package engine

import "errors"

var (
	// ErrStorageUnavailable is returned when the database cannot be opened or
	// has already been closed. It is never retried by the engine.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTransactionAborted is returned when a transaction failed to commit.
	// Retrying the single operation is safe.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrIndexNotFound is returned for lookups against an undeclared index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrCollectionNotFound is returned for operations on an undeclared collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidRecord is returned when record data is not valid JSON. The
	// operation writes nothing and fails the same way when retried.
	ErrInvalidRecord = errors.New("invalid record")
)

// recordError carries a failure caused by record data or a caller-supplied
// function out of a transaction, so it is not reported as an aborted commit.
type recordError struct {
	err error
}

func (e *recordError) Error() string {
	return e.err.Error()
}

func (e *recordError) Unwrap() error {
	return e.err
}
