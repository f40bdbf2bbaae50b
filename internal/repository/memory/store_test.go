package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel/internal/domain"
	"travel/internal/repository"
)

func seed(t *testing.T, s *Store) (*domain.Listing, *domain.Booking) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "host-1", Email: "host@example.com", Role: domain.RoleHost}))
	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "guest-1", Email: "guest@example.com", Role: domain.RoleGuest}))

	listing := &domain.Listing{ID: "listing-1", HostID: "host-1", Name: "Cabin", PricePerNight: decimal.RequireFromString("50.00"), CreatedAt: now}
	require.NoError(t, s.Listings().Create(ctx, listing))

	booking := &domain.Booking{
		ID:         "booking-1",
		ListingID:  listing.ID,
		GuestID:    "guest-1",
		TotalPrice: decimal.RequireFromString("200.00"),
		Status:     domain.BookingStatusPending,
		Version:    1,
	}
	require.NoError(t, s.Bookings().Create(ctx, booking))
	return listing, booking
}

func TestStore_DuplicateEmail(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "u1", Email: "a@example.com"}))
	err := s.Users().Create(ctx, &domain.User{ID: "u2", Email: "a@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStore_UpdateStatusRejectsStaleVersion(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	_, booking := seed(t, s)

	require.NoError(t, s.Bookings().UpdateStatus(ctx, booking.ID, domain.BookingStatusConfirmed, 1))
	err := s.Bookings().UpdateStatus(ctx, booking.ID, domain.BookingStatusCanceled, 1)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	got, err := s.Bookings().GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)

	err = s.Bookings().UpdateStatus(ctx, "missing", domain.BookingStatusCanceled, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	_, booking := seed(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Bookings().UpdateStatus(ctx, booking.ID, domain.BookingStatusConfirmed, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Bookings().GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_WithinTxCommits(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	_, booking := seed(t, s)

	err := s.WithinTx(ctx, func(tx repository.Store) error {
		return tx.Bookings().UpdateStatus(ctx, booking.ID, domain.BookingStatusConfirmed, 1)
	})
	require.NoError(t, err)

	got, err := s.Bookings().GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, got.Status)
}

func TestStore_SingleCompletedPaymentPerBooking(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	_, booking := seed(t, s)

	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, s.Payments().Create(ctx, &domain.Payment{
			ID:            id,
			BookingID:     booking.ID,
			Amount:        booking.TotalPrice,
			Currency:      "KES",
			Status:        domain.PaymentStatusInitialized,
			TransactionID: "tx-" + id,
			Version:       1,
		}))
	}

	p1, err := s.Payments().GetByID(ctx, "p1")
	require.NoError(t, err)
	p1.Status = domain.PaymentStatusCompleted
	require.NoError(t, s.Payments().Update(ctx, p1, 1))

	p2, err := s.Payments().GetByID(ctx, "p2")
	require.NoError(t, err)
	p2.Status = domain.PaymentStatusCompleted
	assert.ErrorIs(t, s.Payments().Update(ctx, p2, 1), repository.ErrDuplicate)
}

func TestStore_DeleteListingCascades(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	listing, booking := seed(t, s)

	require.NoError(t, s.Payments().Create(ctx, &domain.Payment{ID: "p1", BookingID: booking.ID, TransactionID: "tx-1", Version: 1}))
	require.NoError(t, s.Reviews().Create(ctx, &domain.Review{ID: "r1", ListingID: listing.ID, UserID: "guest-1", Rating: 5}))

	require.NoError(t, s.Listings().Delete(ctx, listing.ID))

	_, err := s.Bookings().GetByID(ctx, booking.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Payments().GetByID(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	reviews, err := s.Reviews().GetByListingID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}
