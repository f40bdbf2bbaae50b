package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travel/internal/domain"
	"travel/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

const paymentColumns = `
	id, booking_id, amount, currency, status, transaction_id, payment_method,
	checkout_url, gateway_reference, gateway_response, initialized_at, verified_at,
	version, created_at, updated_at
`

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, amount, currency, status, transaction_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.TransactionID,
		payment.Version,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return mapWriteError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// GetByBookingID retrieves every payment attempt for a booking, oldest first.
func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// Update writes the mutable fields of a payment when its version matches.
// A second completed payment for the same booking violates the partial
// unique index and surfaces as ErrDuplicate.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment, expectedVersion int64) error {
	query := `
		UPDATE payments
		SET status = $1, payment_method = $2, checkout_url = $3, gateway_reference = $4,
			gateway_response = $5, initialized_at = $6, verified_at = $7,
			version = version + 1, updated_at = NOW()
		WHERE id = $8 AND version = $9
	`

	var raw any
	if len(payment.Gateway.RawResponse) > 0 {
		raw = []byte(payment.Gateway.RawResponse)
	}

	result, err := r.q.ExecContext(ctx, query,
		payment.Status,
		nullString(payment.PaymentMethod),
		nullString(payment.Gateway.CheckoutURL),
		nullString(payment.Gateway.Reference),
		raw,
		nullTime(payment.Gateway.InitializedAt),
		nullTime(payment.Gateway.VerifiedAt),
		payment.ID,
		expectedVersion,
	)
	if err != nil {
		return mapWriteError(err)
	}

	return checkVersioned(ctx, r.q, result, "payments", payment.ID)
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		payment       domain.Payment
		method        sql.NullString
		checkoutURL   sql.NullString
		reference     sql.NullString
		raw           []byte
		initializedAt sql.NullTime
		verifiedAt    sql.NullTime
	)

	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.TransactionID,
		&method,
		&checkoutURL,
		&reference,
		&raw,
		&initializedAt,
		&verifiedAt,
		&payment.Version,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.PaymentMethod = method.String
	payment.Gateway.CheckoutURL = checkoutURL.String
	payment.Gateway.Reference = reference.String
	payment.Gateway.RawResponse = raw
	payment.Gateway.InitializedAt = initializedAt.Time
	payment.Gateway.VerifiedAt = verifiedAt.Time

	return &payment, nil
}
