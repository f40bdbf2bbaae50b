package repository

import "context"

// Store is the ledger: the single source of truth for users, listings,
// bookings, payments and reviews.
type Store interface {
	Users() UserRepository
	Listings() ListingRepository
	Bookings() BookingRepository
	Payments() PaymentRepository
	Reviews() ReviewRepository

	// WithinTx runs fn against a transaction-scoped Store. Changes made
	// through tx are committed together if fn returns nil and discarded
	// otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
