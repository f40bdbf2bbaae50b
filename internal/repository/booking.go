package repository

import (
	"context"

	"travel/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// UpdateStatus sets the status of a booking if its version still equals
	// expectedVersion, and bumps the version. Returns ErrVersionConflict on a
	// stale version.
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, expectedVersion int64) error
}
