package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/repository"
)

// BookingService handles booking operations.
type BookingService struct {
	store    repository.Store
	payments *PaymentService
	log      *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(store repository.Store, payments *PaymentService, log *zap.Logger) *BookingService {
	return &BookingService{
		store:    store,
		payments: payments,
		log:      log.With(zap.String("service", "booking")),
	}
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	ListingID string
	StartDate time.Time
	EndDate   time.Time
}

// Create books a stay for the caller. The total is always computed from the
// listing's nightly price.
func (s *BookingService) Create(ctx context.Context, caller domain.Caller, req CreateBookingRequest) (*domain.Booking, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	if req.ListingID == "" {
		return nil, invalidArgument("listing id is required")
	}

	start := domain.CivilDate(req.StartDate)
	end := domain.CivilDate(req.EndDate)
	nights := domain.NightsBetween(start, end)
	if nights < 1 {
		return nil, invalidArgument("end date must be after start date")
	}

	listing, err := s.store.Listings().GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, notFound(err, "listing", req.ListingID)
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		ID:         uuid.New().String(),
		ListingID:  listing.ID,
		GuestID:    caller.UserID,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: domain.StayPrice(listing.PricePerNight, nights),
		Status:     domain.BookingStatusPending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Bookings().Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("listing_id", listing.ID),
		zap.Int("nights", nights),
		zap.String("total", booking.TotalPrice.StringFixed(domain.MoneyPlaces)),
	)
	return booking, nil
}

// Get retrieves a booking visible to its guest, the listing's host or staff.
func (s *BookingService) Get(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error) {
	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking", bookingID)
	}

	if caller.Owns(booking.GuestID) {
		return booking, nil
	}

	listing, err := s.store.Listings().GetByID(ctx, booking.ListingID)
	if err != nil {
		return nil, notFound(err, "listing", booking.ListingID)
	}
	if !caller.Owns(listing.HostID) {
		return nil, ErrForbidden
	}
	return booking, nil
}

// Cancel cancels a pending booking and every open payment attempt for it.
func (s *BookingService) Cancel(ctx context.Context, caller domain.Caller, bookingID string) (*domain.Booking, error) {
	var canceled *domain.Booking

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		booking, err := tx.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking", bookingID)
		}
		if !caller.Owns(booking.GuestID) {
			return ErrForbidden
		}
		if booking.Status != domain.BookingStatusPending {
			return invalidState("booking is %s", booking.Status)
		}

		if err := tx.Bookings().UpdateStatus(ctx, booking.ID, domain.BookingStatusCanceled, booking.Version); err != nil {
			return err
		}

		n, err := s.payments.cancelOpenPayments(ctx, tx, booking.ID)
		if err != nil {
			return err
		}

		booking.Status = domain.BookingStatusCanceled
		booking.Version++
		canceled = booking

		s.log.Info("booking canceled",
			zap.String("booking_id", booking.ID),
			zap.Int("payments_canceled", n),
		)
		return nil
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return nil, fmt.Errorf("booking %s changed concurrently: %w", bookingID, ErrConcurrencyConflict)
	}
	if err != nil {
		return nil, err
	}
	return canceled, nil
}
