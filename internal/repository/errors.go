package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate entity")

	// ErrStaleState is returned when a conditional update matched no row
	// because the stored value no longer equals the expected one.
	ErrStaleState = errors.New("stale state")
)
