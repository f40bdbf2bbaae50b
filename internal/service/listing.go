package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/redis"
	"travel/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListingService handles listing operations. Reads go through the cache
// when one is configured.
type ListingService struct {
	store repository.Store
	cache redis.ListingCacheInterface
	log   *zap.Logger
}

// NewListingService creates a new ListingService. cache may be nil.
func NewListingService(store repository.Store, cache redis.ListingCacheInterface, log *zap.Logger) *ListingService {
	return &ListingService{
		store: store,
		cache: cache,
		log:   log.With(zap.String("service", "listing")),
	}
}

// ListingInput contains the editable fields of a listing.
type ListingInput struct {
	Name          string
	Description   string
	Location      string
	PricePerNight decimal.Decimal
}

func (in ListingInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidArgument("name is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return invalidArgument("location is required")
	}
	if !domain.ValidAmount(in.PricePerNight) {
		return invalidArgument("price per night must be positive with at most %d decimal places", domain.MoneyPlaces)
	}
	return nil
}

// Create adds a listing owned by the calling host.
func (s *ListingService) Create(ctx context.Context, caller domain.Caller, in ListingInput) (*domain.Listing, error) {
	if caller.Role != domain.RoleHost && !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:            uuid.New().String(),
		HostID:        caller.UserID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Location:      strings.TrimSpace(in.Location),
		PricePerNight: in.PricePerNight,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Listings().Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return listing, nil
}

// Get retrieves a listing by ID.
func (s *ListingService) Get(ctx context.Context, listingID string) (*domain.Listing, error) {
	if s.cache != nil {
		cached, err := s.cache.GetListing(ctx, listingID)
		if err != nil {
			s.log.Warn("listing cache read", zap.String("listing_id", listingID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	listing, err := s.store.Listings().GetByID(ctx, listingID)
	if err != nil {
		return nil, notFound(err, "listing", listingID)
	}

	if s.cache != nil {
		if err := s.cache.SetListing(ctx, listing); err != nil {
			s.log.Warn("listing cache write", zap.String("listing_id", listingID), zap.Error(err))
		}
	}
	return listing, nil
}

// List returns a page of listings, newest first.
func (s *ListingService) List(ctx context.Context, limit, offset int) ([]*domain.Listing, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Listings().GetAll(ctx, limit, offset)
}

// Update replaces the editable fields of a listing. Existing bookings keep
// the total they were created with.
func (s *ListingService) Update(ctx context.Context, caller domain.Caller, listingID string, in ListingInput) (*domain.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	listing, err := s.ownedListing(ctx, caller, listingID)
	if err != nil {
		return nil, err
	}

	listing.Name = strings.TrimSpace(in.Name)
	listing.Description = in.Description
	listing.Location = strings.TrimSpace(in.Location)
	listing.PricePerNight = in.PricePerNight
	listing.UpdatedAt = time.Now().UTC()

	if err := s.store.Listings().Update(ctx, listing); err != nil {
		return nil, notFound(err, "listing", listingID)
	}
	s.invalidate(ctx, listingID)
	return listing, nil
}

// Delete removes a listing with its bookings, payments and reviews.
func (s *ListingService) Delete(ctx context.Context, caller domain.Caller, listingID string) error {
	if _, err := s.ownedListing(ctx, caller, listingID); err != nil {
		return err
	}

	if err := s.store.Listings().Delete(ctx, listingID); err != nil {
		return notFound(err, "listing", listingID)
	}
	s.invalidate(ctx, listingID)

	s.log.Info("listing deleted", zap.String("listing_id", listingID))
	return nil
}

func (s *ListingService) ownedListing(ctx context.Context, caller domain.Caller, listingID string) (*domain.Listing, error) {
	listing, err := s.store.Listings().GetByID(ctx, listingID)
	if err != nil {
		return nil, notFound(err, "listing", listingID)
	}
	if !caller.Owns(listing.HostID) {
		return nil, ErrForbidden
	}
	return listing, nil
}

func (s *ListingService) invalidate(ctx context.Context, listingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateListing(ctx, listingID); err != nil {
		s.log.Warn("listing cache invalidate", zap.String("listing_id", listingID), zap.Error(err))
	}
}
