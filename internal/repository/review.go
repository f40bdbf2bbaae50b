package repository

import (
	"context"

	"travel/internal/domain"
)

// ReviewRepository defines the persistence operations for reviews.
type ReviewRepository interface {
	// Create persists a new review.
	Create(ctx context.Context, review *domain.Review) error

	// GetByListingID retrieves reviews of a listing, newest first.
	GetByListingID(ctx context.Context, listingID string) ([]*domain.Review, error)
}
