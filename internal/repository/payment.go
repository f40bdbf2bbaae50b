package repository

import (
	"context"

	"travel/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByBookingID retrieves every payment attempt for a booking, oldest first.
	GetByBookingID(ctx context.Context, bookingID string) ([]*domain.Payment, error)

	// Update writes status, payment method and gateway details of a payment
	// if its version still equals expectedVersion, and bumps the version.
	// Amount, currency and transaction ID are never rewritten.
	Update(ctx context.Context, payment *domain.Payment, expectedVersion int64) error
}
