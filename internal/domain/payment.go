package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusInitialized PaymentStatus = "initialized"
	PaymentStatusCompleted   PaymentStatus = "completed"
	PaymentStatusFailed      PaymentStatus = "failed"
	PaymentStatusCanceled    PaymentStatus = "canceled"
)

// IsOpen reports whether the payment can still move towards completion.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusPending || s == PaymentStatusInitialized
}

// GatewayTransactionDetails holds what the payment gateway told us about a
// transaction.
type GatewayTransactionDetails struct {
	CheckoutURL   string
	Reference     string
	RawResponse   json.RawMessage
	InitializedAt time.Time
	VerifiedAt    time.Time
}

// Payment represents one attempt to pay for a booking.
type Payment struct {
	ID        string
	BookingID string
	Amount    decimal.Decimal
	Currency  string
	Status    PaymentStatus
	// TransactionID is sent to the gateway as tx_ref and doubles as its
	// idempotency key. It never changes after creation.
	TransactionID string
	PaymentMethod string
	Gateway       GatewayTransactionDetails
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
