package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travel/internal/domain"
	"travel/internal/repository"
)

// ListingRepository is a PostgreSQL implementation of repository.ListingRepository.
type ListingRepository struct {
	q Querier
}

const listingColumns = `id, host_id, name, description, location, price_per_night, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create persists a new listing.
func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (id, host_id, name, description, location, price_per_night, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		listing.ID,
		listing.HostID,
		listing.Name,
		listing.Description,
		listing.Location,
		listing.PricePerNight,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves a listing by ID.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	listing, err := scanListing(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return listing, err
}

// GetAll retrieves listings, newest first.
func (r *ListingRepository) GetAll(ctx context.Context, limit, offset int) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// Update updates the descriptive fields and price of a listing.
func (r *ListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	query := `
		UPDATE listings
		SET name = $1, description = $2, location = $3, price_per_night = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.q.ExecContext(ctx, query,
		listing.Name,
		listing.Description,
		listing.Location,
		listing.PricePerNight,
		listing.UpdatedAt,
		listing.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a listing. Bookings, payments and reviews go with it through
// ON DELETE CASCADE.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var listing domain.Listing
	err := row.Scan(
		&listing.ID,
		&listing.HostID,
		&listing.Name,
		&listing.Description,
		&listing.Location,
		&listing.PricePerNight,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
