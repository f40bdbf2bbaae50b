package redis

import (
	"context"
	"time"

	"travel/internal/domain"
	"travel/internal/notification"
)

// ListingCacheInterface defines the interface for listing cache operations.
type ListingCacheInterface interface {
	GetListing(ctx context.Context, listingID string) (*domain.Listing, error)
	SetListing(ctx context.Context, listing *domain.Listing) error
	InvalidateListing(ctx context.Context, listingID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquirePaymentLock(ctx context.Context, paymentID, token string, ttl time.Duration) (bool, error)
	ReleasePaymentLock(ctx context.Context, paymentID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ ListingCacheInterface = (*CacheStore)(nil)
	_ LockStoreInterface    = (*LockStore)(nil)
	_ notification.Queue    = (*JobQueue)(nil)
)
