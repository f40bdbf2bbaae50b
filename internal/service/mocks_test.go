package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/gateway"
	"travel/internal/notification"
	"travel/internal/repository"
	"travel/internal/repository/memory"
	"travel/internal/service"
)

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a scriptable payment gateway.
type MockGateway struct {
	mu sync.Mutex

	// Counters for verification
	InitializeCallCount int32
	VerifyCallCount     int32

	// Canned results and error injection
	InitializeResult *gateway.InitializeResult
	InitializeError  error
	InitializeFunc   func(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
	VerifyOutcome    gateway.Outcome
	VerifyError      error
	VerifyDelay      time.Duration

	lastInitialize gateway.InitializeRequest
}

// NewMockGateway creates a gateway that initializes and verifies successfully.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		InitializeResult: &gateway.InitializeResult{
			Reference:   "ref-1",
			CheckoutURL: "https://checkout.example/pay/1",
			Raw:         []byte(`{"status":"success"}`),
		},
		VerifyOutcome: gateway.OutcomeSuccess,
	}
}

func (m *MockGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	atomic.AddInt32(&m.InitializeCallCount, 1)
	m.mu.Lock()
	m.lastInitialize = req
	fn := m.InitializeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if m.InitializeError != nil {
		return nil, m.InitializeError
	}
	res := *m.InitializeResult
	res.Reference = req.TxRef
	return &res, nil
}

func (m *MockGateway) Verify(ctx context.Context, txRef string) (*gateway.VerifyResult, error) {
	atomic.AddInt32(&m.VerifyCallCount, 1)
	if m.VerifyDelay > 0 {
		time.Sleep(m.VerifyDelay)
	}
	if m.VerifyError != nil {
		return nil, m.VerifyError
	}
	return &gateway.VerifyResult{
		Outcome:       m.VerifyOutcome,
		Reference:     "CHAPA-" + txRef[:8],
		PaymentMethod: "mpesa",
		Raw:           []byte(`{"status":"success","data":{"status":"` + string(m.VerifyOutcome) + `"}}`),
	}, nil
}

// LastInitialize returns the last initialize request for assertions.
func (m *MockGateway) LastInitialize() gateway.InitializeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInitialize
}

// ──────────────────────────────────────────────
// MOCK QUEUE
// ──────────────────────────────────────────────

// FailingEnqueuer rejects every job.
type FailingEnqueuer struct {
	EnqueueCallCount int32
}

func (f *FailingEnqueuer) Enqueue(ctx context.Context, job notification.Job) error {
	atomic.AddInt32(&f.EnqueueCallCount, 1)
	return errors.New("queue unavailable")
}

// ──────────────────────────────────────────────
// RACING STORE
// ──────────────────────────────────────────────

// RacingStore wraps a store and makes transaction-scoped writes observable.
// Conflicts is the number of completed-payment updates that fail with
// ErrVersionConflict, as if another verifier had committed first.
type RacingStore struct {
	repository.Store

	Conflicts int32

	mu     sync.Mutex
	writes []string
}

func (s *RacingStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(&racingTx{Store: tx, parent: s})
	})
}

// Writes returns the tx-scoped writes in order, as "booking:<status>" or
// "payment:<status>".
func (s *RacingStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *RacingStore) record(w string) {
	s.mu.Lock()
	s.writes = append(s.writes, w)
	s.mu.Unlock()
}

type racingTx struct {
	repository.Store
	parent *RacingStore
}

func (t *racingTx) Payments() repository.PaymentRepository {
	return racingPayments{PaymentRepository: t.Store.Payments(), parent: t.parent}
}

func (t *racingTx) Bookings() repository.BookingRepository {
	return racingBookings{BookingRepository: t.Store.Bookings(), parent: t.parent}
}

type racingPayments struct {
	repository.PaymentRepository
	parent *RacingStore
}

func (r racingPayments) Update(ctx context.Context, payment *domain.Payment, expectedVersion int64) error {
	r.parent.record("payment:" + string(payment.Status))
	if payment.Status == domain.PaymentStatusCompleted && atomic.AddInt32(&r.parent.Conflicts, -1) >= 0 {
		return repository.ErrVersionConflict
	}
	return r.PaymentRepository.Update(ctx, payment, expectedVersion)
}

type racingBookings struct {
	repository.BookingRepository
	parent *RacingStore
}

func (r racingBookings) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus, expectedVersion int64) error {
	r.parent.record("booking:" + string(status))
	return r.BookingRepository.UpdateStatus(ctx, id, status, expectedVersion)
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

type fixture struct {
	store    *memory.Store
	gateway  *MockGateway
	queue    *notification.MemoryQueue
	locks    *service.LocalLocker
	payments *service.PaymentService
	bookings *service.BookingService
	listings *service.ListingService

	guest domain.Caller
	host  domain.Caller
	staff domain.Caller
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithEnqueuer(t, nil)
}

func newFixtureWithEnqueuer(t *testing.T, enq notification.Enqueuer) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:   memory.NewStore(),
		gateway: NewMockGateway(),
		queue:   notification.NewMemoryQueue(),
		locks:   service.NewLocalLocker(),
		guest:   domain.Caller{UserID: "guest-1", Role: domain.RoleGuest},
		host:    domain.Caller{UserID: "host-1", Role: domain.RoleHost},
		staff:   domain.Caller{UserID: "staff-1", Role: domain.RoleStaff},
	}
	if enq == nil {
		enq = f.queue
	}

	log := zap.NewNop()
	notifier := service.NewNotificationService(enq, log)
	f.payments = service.NewPaymentService(f.store, f.gateway, f.locks, notifier, service.PaymentConfig{
		DefaultCurrency:     "KES",
		SupportedCurrencies: []string{"KES", "ETB", "USD"},
		GatewayTimeout:      time.Second,
		InitializeLockTTL:   time.Minute,
	}, log)
	f.bookings = service.NewBookingService(f.store, f.payments, log)
	f.listings = service.NewListingService(f.store, nil, log)

	require.NoError(t, f.store.Users().Create(ctx, &domain.User{ID: "guest-1", Email: "guest@example.com", FirstName: "Ada", LastName: "Guest", Role: domain.RoleGuest}))
	require.NoError(t, f.store.Users().Create(ctx, &domain.User{ID: "host-1", Email: "host@example.com", Role: domain.RoleHost}))
	require.NoError(t, f.store.Listings().Create(ctx, &domain.Listing{
		ID:            "listing-1",
		HostID:        "host-1",
		Name:          "Lake Cabin",
		Location:      "Naivasha",
		PricePerNight: decimal.RequireFromString("50.00"),
		CreatedAt:     time.Now().UTC(),
	}))
	return f
}

func (f *fixture) book(t *testing.T) *domain.Booking {
	t.Helper()
	booking, err := f.bookings.Create(context.Background(), f.guest, service.CreateBookingRequest{
		ListingID: "listing-1",
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return booking
}

func (f *fixture) pay(t *testing.T, booking *domain.Booking) *domain.Payment {
	t.Helper()
	payment, err := f.payments.CreatePayment(context.Background(), f.guest, service.CreatePaymentRequest{
		BookingID: booking.ID,
		Amount:    booking.TotalPrice,
		Currency:  "KES",
	})
	require.NoError(t, err)
	return payment
}

func (f *fixture) initialized(t *testing.T) (*domain.Booking, *domain.Payment) {
	t.Helper()
	booking := f.book(t)
	payment := f.pay(t, booking)
	payment, err := f.payments.InitializePayment(context.Background(), f.guest, payment.ID)
	require.NoError(t, err)
	return booking, payment
}

// racing returns payment and booking services that share f's data through
// a RacingStore.
func (f *fixture) racing(conflicts int32) (*RacingStore, *service.PaymentService, *service.BookingService) {
	store := &RacingStore{Store: f.store, Conflicts: conflicts}
	log := zap.NewNop()
	payments := service.NewPaymentService(store, f.gateway, f.locks, service.NewNotificationService(f.queue, log), service.PaymentConfig{
		DefaultCurrency:     "KES",
		SupportedCurrencies: []string{"KES"},
		GatewayTimeout:      time.Second,
		InitializeLockTTL:   time.Minute,
	}, log)
	return store, payments, service.NewBookingService(store, payments, log)
}

func (f *fixture) jobsOfKind(kind notification.Kind) int {
	n := 0
	for _, job := range f.queue.Jobs() {
		if job.Kind == kind {
			n++
		}
	}
	return n
}
