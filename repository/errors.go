package repository

import "errors"

// Sentinel errors shared by repository implementations.
var (
	// ErrDuplicateUser indicates a username or email is already taken.
	ErrDuplicateUser = errors.New("username or email already exists")

	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotOwner indicates a write was attempted on a document the caller
	// does not own.
	ErrNotOwner = errors.New("not the owner of this record")
)
