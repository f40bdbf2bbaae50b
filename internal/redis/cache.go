package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"travel/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client redis.Cmdable
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client redis.Cmdable) *CacheStore {
	return &CacheStore{client: client}
}

// ListingCacheTTL bounds how stale a cached listing can be if an
// invalidation is lost.
const ListingCacheTTL = 60 * time.Second

const listingCachePrefix = "cache:listing:"

// cachedListing is the JSON form of a listing in cache.
type cachedListing struct {
	ID            string          `json:"id"`
	HostID        string          `json:"host_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// GetListing retrieves a listing from cache. A miss returns nil, nil.
func (s *CacheStore) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	data, err := s.client.Get(ctx, listingCachePrefix+listingID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var c cachedListing
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &domain.Listing{
		ID:            c.ID,
		HostID:        c.HostID,
		Name:          c.Name,
		Description:   c.Description,
		Location:      c.Location,
		PricePerNight: c.PricePerNight,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}, nil
}

// SetListing stores a listing in cache.
func (s *CacheStore) SetListing(ctx context.Context, listing *domain.Listing) error {
	data, err := json.Marshal(cachedListing{
		ID:            listing.ID,
		HostID:        listing.HostID,
		Name:          listing.Name,
		Description:   listing.Description,
		Location:      listing.Location,
		PricePerNight: listing.PricePerNight,
		CreatedAt:     listing.CreatedAt,
		UpdatedAt:     listing.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, listingCachePrefix+listing.ID, data, ListingCacheTTL).Err()
}

// InvalidateListing removes a listing from cache.
func (s *CacheStore) InvalidateListing(ctx context.Context, listingID string) error {
	return s.client.Del(ctx, listingCachePrefix+listingID).Err()
}
