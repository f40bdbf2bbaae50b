package postgres

import (
	"context"

	"travel/internal/domain"
)

// ReviewRepository is a PostgreSQL implementation of repository.ReviewRepository.
type ReviewRepository struct {
	q Querier
}

// Create persists a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, listing_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		review.ID,
		review.ListingID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	return mapWriteError(err)
}

// GetByListingID retrieves reviews of a listing, newest first.
func (r *ReviewRepository) GetByListingID(ctx context.Context, listingID string) ([]*domain.Review, error) {
	query := `
		SELECT id, listing_id, user_id, rating, comment, created_at
		FROM reviews WHERE listing_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.q.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(
			&review.ID,
			&review.ListingID,
			&review.UserID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, &review)
	}
	return reviews, rows.Err()
}
