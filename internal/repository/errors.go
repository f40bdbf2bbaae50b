package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict is returned when an update carried a stale version.
	ErrVersionConflict = errors.New("entity version conflict")

	// ErrDuplicate is returned when a unique attribute is already taken.
	ErrDuplicate = errors.New("entity already exists")
)
