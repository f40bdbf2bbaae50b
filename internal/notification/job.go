// Package notification delivers booking and payment emails asynchronously.
//
// Jobs carry references only. Their content is rendered from the ledger when
// a worker picks them up, so a retried job always reflects current state.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the notification a job produces.
type Kind string

const (
	KindBookingConfirmation Kind = "booking-confirmation"
	KindPaymentConfirmation Kind = "payment-confirmation"
	KindPaymentCheckoutLink Kind = "payment-checkout-link"
)

// Valid reports whether k is a known job kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBookingConfirmation, KindPaymentConfirmation, KindPaymentCheckoutLink:
		return true
	}
	return false
}

// Job is a unit of notification work.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	BookingID  string    `json:"booking_id"`
	PaymentID  string    `json:"payment_id,omitempty"`
	Recipient  string    `json:"recipient"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob creates a first-attempt job.
func NewJob(kind Kind, bookingID, paymentID, recipient string) Job {
	return Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		BookingID:  bookingID,
		PaymentID:  paymentID,
		Recipient:  recipient,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Delivery is a job handed to a worker. Receipt identifies the in-flight
// copy to the queue that produced it.
type Delivery struct {
	Job     Job
	Receipt string
}

// Queue is a durable job queue with at-least-once delivery.
type Queue interface {
	// Enqueue makes a job ready for delivery.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks up to timeout for a ready job and marks it in flight.
	// It returns nil, nil when nothing became ready.
	Dequeue(ctx context.Context, timeout time.Duration) (*Delivery, error)

	// Ack removes a delivered job.
	Ack(ctx context.Context, d *Delivery) error

	// Retry schedules the next attempt of a job at the given time.
	Retry(ctx context.Context, d *Delivery, at time.Time) error

	// Bury moves a job to the dead-letter list.
	Bury(ctx context.Context, d *Delivery, reason string) error

	// PromoteDue makes delayed jobs whose time has come ready again.
	PromoteDue(ctx context.Context, now time.Time) (int, error)

	// Recover returns jobs left in flight by a crashed process to the ready list.
	Recover(ctx context.Context) (int, error)
}

// Enqueuer is the producer side of a Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// DeadJob is a buried job with the reason it was given up on.
type DeadJob struct {
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	BuriedAt time.Time `json:"buried_at"`
}

// ErrDeliveryFailed marks a job that exhausted its attempts or hit a
// permanent sink error. It is only ever logged.
var ErrDeliveryFailed = errors.New("notification delivery failed")
