package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review represents a guest's rating of a listing.
type Review struct {
	ID        string
	ListingID string
	UserID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
}
