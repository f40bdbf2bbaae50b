// Package memory holds an in-process ledger used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"travel/internal/domain"
	"travel/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type state struct {
	users    map[string]*domain.User
	listings map[string]*domain.Listing
	bookings map[string]*domain.Booking
	payments map[string]*domain.Payment
	reviews  map[string]*domain.Review
}

func newState() *state {
	return &state{
		users:    make(map[string]*domain.User),
		listings: make(map[string]*domain.Listing),
		bookings: make(map[string]*domain.Booking),
		payments: make(map[string]*domain.Payment),
		reviews:  make(map[string]*domain.Review),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, v := range s.users {
		cp := *v
		c.users[id] = &cp
	}
	for id, v := range s.listings {
		cp := *v
		c.listings[id] = &cp
	}
	for id, v := range s.bookings {
		cp := *v
		c.bookings[id] = &cp
	}
	for id, v := range s.payments {
		cp := *v
		c.payments[id] = &cp
	}
	for id, v := range s.reviews {
		cp := *v
		c.reviews[id] = &cp
	}
	return c
}

// Store is an in-memory implementation of repository.Store.
//
// Writes, including whole transactions, are serialized by writeMu. A
// transaction works on a private copy of the data that replaces the shared
// copy on commit.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *state
	inTx    bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) Users() repository.UserRepository       { return userRepository{s} }
func (s *Store) Listings() repository.ListingRepository { return listingRepository{s} }
func (s *Store) Bookings() repository.BookingRepository { return bookingRepository{s} }
func (s *Store) Payments() repository.PaymentRepository { return paymentRepository{s} }
func (s *Store) Reviews() repository.ReviewRepository   { return reviewRepository{s} }

// WithinTx runs fn against a snapshot and publishes it when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &Store{data: snapshot, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	if !s.inTx {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

type userRepository struct{ s *Store }

func (r userRepository) Create(_ context.Context, user *domain.User) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.users[user.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, u := range d.users {
			if u.Email == user.Email {
				return repository.ErrDuplicate
			}
		}
		cp := *user
		d.users[user.ID] = &cp
		return nil
	})
}

func (r userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	r.s.read(func(d *state) {
		if u, ok := d.users[id]; ok {
			cp := *u
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	r.s.read(func(d *state) {
		for _, u := range d.users {
			if u.Email == email {
				cp := *u
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

type listingRepository struct{ s *Store }

func (r listingRepository) Create(_ context.Context, listing *domain.Listing) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.listings[listing.ID]; ok {
			return repository.ErrDuplicate
		}
		cp := *listing
		d.listings[listing.ID] = &cp
		return nil
	})
}

func (r listingRepository) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	var out *domain.Listing
	r.s.read(func(d *state) {
		if l, ok := d.listings[id]; ok {
			cp := *l
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r listingRepository) GetAll(_ context.Context, limit, offset int) ([]*domain.Listing, error) {
	var all []*domain.Listing
	r.s.read(func(d *state) {
		for _, l := range d.listings {
			cp := *l
			all = append(all, &cp)
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r listingRepository) Update(_ context.Context, listing *domain.Listing) error {
	return r.s.write(func(d *state) error {
		existing, ok := d.listings[listing.ID]
		if !ok {
			return repository.ErrNotFound
		}
		existing.Name = listing.Name
		existing.Description = listing.Description
		existing.Location = listing.Location
		existing.PricePerNight = listing.PricePerNight
		existing.UpdatedAt = listing.UpdatedAt
		return nil
	})
}

func (r listingRepository) Delete(_ context.Context, id string) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.listings[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.listings, id)
		for bid, b := range d.bookings {
			if b.ListingID != id {
				continue
			}
			delete(d.bookings, bid)
			for pid, p := range d.payments {
				if p.BookingID == bid {
					delete(d.payments, pid)
				}
			}
		}
		for rid, rv := range d.reviews {
			if rv.ListingID == id {
				delete(d.reviews, rid)
			}
		}
		return nil
	})
}

type bookingRepository struct{ s *Store }

func (r bookingRepository) Create(_ context.Context, booking *domain.Booking) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.bookings[booking.ID]; ok {
			return repository.ErrDuplicate
		}
		cp := *booking
		d.bookings[booking.ID] = &cp
		return nil
	})
}

func (r bookingRepository) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	var out *domain.Booking
	r.s.read(func(d *state) {
		if b, ok := d.bookings[id]; ok {
			cp := *b
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r bookingRepository) UpdateStatus(_ context.Context, id string, status domain.BookingStatus, expectedVersion int64) error {
	return r.s.write(func(d *state) error {
		b, ok := d.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		if b.Version != expectedVersion {
			return repository.ErrVersionConflict
		}
		b.Status = status
		b.Version++
		b.UpdatedAt = time.Now().UTC()
		return nil
	})
}

type paymentRepository struct{ s *Store }

func (r paymentRepository) Create(_ context.Context, payment *domain.Payment) error {
	return r.s.write(func(d *state) error {
		for _, p := range d.payments {
			if p.ID == payment.ID || p.TransactionID == payment.TransactionID {
				return repository.ErrDuplicate
			}
		}
		cp := *payment
		d.payments[payment.ID] = &cp
		return nil
	})
}

func (r paymentRepository) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	var out *domain.Payment
	r.s.read(func(d *state) {
		if p, ok := d.payments[id]; ok {
			cp := *p
			out = &cp
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r paymentRepository) GetByBookingID(_ context.Context, bookingID string) ([]*domain.Payment, error) {
	var out []*domain.Payment
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if p.BookingID == bookingID {
				cp := *p
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r paymentRepository) Update(_ context.Context, payment *domain.Payment, expectedVersion int64) error {
	return r.s.write(func(d *state) error {
		p, ok := d.payments[payment.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if p.Version != expectedVersion {
			return repository.ErrVersionConflict
		}
		if payment.Status == domain.PaymentStatusCompleted {
			for _, other := range d.payments {
				if other.ID != p.ID && other.BookingID == p.BookingID && other.Status == domain.PaymentStatusCompleted {
					return repository.ErrDuplicate
				}
			}
		}
		p.Status = payment.Status
		p.PaymentMethod = payment.PaymentMethod
		p.Gateway = payment.Gateway
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

type reviewRepository struct{ s *Store }

func (r reviewRepository) Create(_ context.Context, review *domain.Review) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.reviews[review.ID]; ok {
			return repository.ErrDuplicate
		}
		cp := *review
		d.reviews[review.ID] = &cp
		return nil
	})
}

func (r reviewRepository) GetByListingID(_ context.Context, listingID string) ([]*domain.Review, error) {
	var out []*domain.Review
	r.s.read(func(d *state) {
		for _, rv := range d.reviews {
			if rv.ListingID == listingID {
				cp := *rv
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
