package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/repository"
	"travel/internal/service"
)

// MockListingCache is an in-memory listing cache with call counters.
type MockListingCache struct {
	mu       sync.Mutex
	listings map[string]domain.Listing

	GetCalls        int
	Hits            int
	Invalidations   int
	GetListingError error
}

func NewMockListingCache() *MockListingCache {
	return &MockListingCache{listings: make(map[string]domain.Listing)}
}

func (m *MockListingCache) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetListingError != nil {
		return nil, m.GetListingError
	}
	l, ok := m.listings[listingID]
	if !ok {
		return nil, nil
	}
	m.Hits++
	return &l, nil
}

func (m *MockListingCache) SetListing(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[listing.ID] = *listing
	return nil
}

func (m *MockListingCache) InvalidateListing(ctx context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidations++
	delete(m.listings, listingID)
	return nil
}

func listingInput(price string) service.ListingInput {
	return service.ListingInput{
		Name:          "Beach House",
		Description:   "Two bedrooms",
		Location:      "Diani",
		PricePerNight: decimal.RequireFromString(price),
	}
}

func TestListing_CreateRequiresHost(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.listings.Create(ctx, f.guest, listingInput("80.00"))
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.listings.Create(ctx, f.host, listingInput("80.005"))
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	listing, err := f.listings.Create(ctx, f.host, listingInput("80.00"))
	require.NoError(t, err)
	assert.Equal(t, "host-1", listing.HostID)
}

func TestListing_GetUsesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	cache := NewMockListingCache()
	listings := service.NewListingService(f.store, cache, zap.NewNop())

	first, err := listings.Get(ctx, "listing-1")
	require.NoError(t, err)
	second, err := listings.Get(ctx, "listing-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, cache.GetCalls)
	assert.Equal(t, 1, cache.Hits)

	_, err = listings.Update(ctx, f.host, "listing-1", listingInput("60.00"))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Invalidations)

	updated, err := listings.Get(ctx, "listing-1")
	require.NoError(t, err)
	assert.True(t, updated.PricePerNight.Equal(decimal.RequireFromString("60.00")))
}

func TestListing_CacheErrorFallsBackToStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	cache := NewMockListingCache()
	cache.GetListingError = assert.AnError
	listings := service.NewListingService(f.store, cache, zap.NewNop())

	listing, err := listings.Get(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, "Lake Cabin", listing.Name)
}

func TestListing_UpdateKeepsExistingBookingTotals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	booking := f.book(t)

	_, err := f.listings.Update(ctx, f.host, "listing-1", listingInput("75.00"))
	require.NoError(t, err)

	stored, err := f.store.Bookings().GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", stored.TotalPrice.StringFixed(2))
}

func TestListing_DeleteCascades(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	booking := f.book(t)
	payment := f.pay(t, booking)

	err := f.listings.Delete(ctx, f.guest, "listing-1")
	assert.ErrorIs(t, err, service.ErrForbidden)

	require.NoError(t, f.listings.Delete(ctx, f.host, "listing-1"))

	_, err = f.store.Bookings().GetByID(ctx, booking.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.Payments().GetByID(ctx, payment.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.listings.Get(ctx, "listing-1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListing_ListClampsPage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.listings.Create(ctx, f.host, listingInput("10.00"))
		require.NoError(t, err)
	}

	all, err := f.listings.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	page, err := f.listings.List(ctx, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestReview_CreateAndList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	reviews := service.NewReviewService(f.store)

	_, err := reviews.Create(ctx, f.guest, "listing-1", 6, "too good")
	assert.ErrorIs(t, err, service.ErrInvalidArgument)

	_, err = reviews.Create(ctx, f.guest, "missing", 4, "")
	assert.ErrorIs(t, err, service.ErrNotFound)

	review, err := reviews.Create(ctx, f.guest, "listing-1", 5, "Quiet and clean")
	require.NoError(t, err)
	assert.Equal(t, "guest-1", review.UserID)

	list, err := reviews.List(ctx, "listing-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Rating)
}
