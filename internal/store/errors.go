package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint,
	// e.g. registering a username or email that is already taken.
	ErrDuplicate = errors.New("duplicate record")
)
