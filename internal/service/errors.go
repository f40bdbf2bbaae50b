package service

import (
	"errors"
	"fmt"

	"travel/internal/repository"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when input fails validation. It is
	// always wrapped with the offending detail.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when an operation is not allowed from the
	// entity's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden is returned when the caller may not act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrConcurrencyConflict is returned when a concurrent writer won a race
	// that could not be resolved by re-reading.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("already exists")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// notFound translates a repository miss into ErrNotFound and passes other
// errors through.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}
