package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travel/internal/domain"
	"travel/internal/repository"
)

// ReviewService handles listing reviews.
type ReviewService struct {
	store repository.Store
}

// NewReviewService creates a new ReviewService.
func NewReviewService(store repository.Store) *ReviewService {
	return &ReviewService{store: store}
}

// Create adds the caller's review of a listing.
func (s *ReviewService) Create(ctx context.Context, caller domain.Caller, listingID string, rating int, comment string) (*domain.Review, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, invalidArgument("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}

	if _, err := s.store.Listings().GetByID(ctx, listingID); err != nil {
		return nil, notFound(err, "listing", listingID)
	}

	review := &domain.Review{
		ID:        uuid.New().String(),
		ListingID: listingID,
		UserID:    caller.UserID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Reviews().Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// List returns the reviews of a listing.
func (s *ReviewService) List(ctx context.Context, listingID string) ([]*domain.Review, error) {
	if _, err := s.store.Listings().GetByID(ctx, listingID); err != nil {
		return nil, notFound(err, "listing", listingID)
	}
	return s.store.Reviews().GetByListingID(ctx, listingID)
}
