package duprdb

import "errors"

// Sentinel errors for the submission store.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("dupr record not found")

	// ErrNoRowsAffected indicates a conditional UPDATE matched no rows, for
	// example a batch claim lost to another worker.
	ErrNoRowsAffected = errors.New("no rows affected")
)
