package store

import "errors"

var (
	// ErrConflict reports a write rejected by a uniqueness or state guard.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)
