package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travel/internal/domain"
	"travel/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, listing_id, guest_id, start_date, end_date, total_price, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.ListingID,
		booking.GuestID,
		booking.StartDate,
		booking.EndDate,
		booking.TotalPrice,
		booking.Status,
		booking.Version,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `
		SELECT id, listing_id, guest_id, start_date, end_date, total_price, status, version, created_at, updated_at
		FROM bookings WHERE id = $1
	`

	var booking domain.Booking
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.ListingID,
		&booking.GuestID,
		&booking.StartDate,
		&booking.EndDate,
		&booking.TotalPrice,
		&booking.Status,
		&booking.Version,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	booking.StartDate = domain.CivilDate(booking.StartDate)
	booking.EndDate = domain.CivilDate(booking.EndDate)
	return &booking, nil
}

// UpdateStatus sets the status of a booking when its version matches.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, expectedVersion int64) error {
	query := `
		UPDATE bookings
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	result, err := r.q.ExecContext(ctx, query, status, id, expectedVersion)
	if err != nil {
		return mapWriteError(err)
	}
	return checkVersioned(ctx, r.q, result, "bookings", id)
}
