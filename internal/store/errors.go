package store

import "errors"

var (
	// ErrDuplicateKey signals that a record with the same id already exists.
	// For the dedup gate this is the expected duplicate-delivery outcome,
	// not a failure.
	ErrDuplicateKey = errors.New("record already exists")

	// ErrNotFound signals a delete targeted a record that is already gone.
	ErrNotFound = errors.New("record not found")
)
