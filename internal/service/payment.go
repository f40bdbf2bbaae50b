package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/gateway"
	"travel/internal/monitoring"
	"travel/internal/redis"
	"travel/internal/repository"
)

// Gateway is the payment gateway contract the state machine depends on.
type Gateway interface {
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
	Verify(ctx context.Context, txRef string) (*gateway.VerifyResult, error)
}

// Ensure the HTTP client implements Gateway.
var _ Gateway = (*gateway.Client)(nil)

// PaymentConfig holds payment policy.
type PaymentConfig struct {
	DefaultCurrency     string
	SupportedCurrencies []string
	GatewayTimeout      time.Duration
	InitializeLockTTL   time.Duration
	CallbackURL         string
	ReturnURL           string
}

const (
	paymentTitle = "Reservation Payment"

	// completeAttempts bounds how often the completion transaction is run
	// when it loses a version race.
	completeAttempts = 2
)

// PaymentService owns the payment lifecycle. It is the only component that
// changes payment status, and the only one that confirms bookings.
type PaymentService struct {
	store    repository.Store
	gateway  Gateway
	locks    redis.LockStoreInterface
	notifier *NotificationService
	cfg      PaymentConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	store repository.Store,
	gw Gateway,
	locks redis.LockStoreInterface,
	notifier *NotificationService,
	cfg PaymentConfig,
	log *zap.Logger,
) *PaymentService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.InitializeLockTTL <= 0 {
		cfg.InitializeLockTTL = 30 * time.Second
	}
	log = log.With(zap.String("service", "payment"))
	// The lock must outlive the gateway call it guards.
	if cfg.InitializeLockTTL <= cfg.GatewayTimeout {
		log.Warn("initialize lock ttl raised above gateway timeout",
			zap.Duration("configured", cfg.InitializeLockTTL),
			zap.Duration("gateway_timeout", cfg.GatewayTimeout),
		)
		cfg.InitializeLockTTL = 2 * cfg.GatewayTimeout
	}
	return &PaymentService{
		store:    store,
		gateway:  gw,
		locks:    locks,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePaymentRequest contains the parameters for creating a payment.
type CreatePaymentRequest struct {
	BookingID string
	Amount    decimal.Decimal
	Currency  string
}

// CreatePayment records a pending payment for a booking. The amount must
// match the booking total exactly.
func (s *PaymentService) CreatePayment(ctx context.Context, caller domain.Caller, req CreatePaymentRequest) (*domain.Payment, error) {
	if req.BookingID == "" {
		return nil, invalidArgument("booking id is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if !s.supportsCurrency(currency) {
		return nil, invalidArgument("unsupported currency %q", req.Currency)
	}

	if !domain.ValidAmount(req.Amount) {
		return nil, invalidArgument("amount must be positive with at most %d decimal places", domain.MoneyPlaces)
	}

	booking, err := s.store.Bookings().GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, notFound(err, "booking", req.BookingID)
	}

	if !caller.Owns(booking.GuestID) {
		return nil, ErrForbidden
	}

	if booking.Status != domain.BookingStatusPending {
		return nil, invalidState("booking is %s", booking.Status)
	}

	if !req.Amount.Equal(booking.TotalPrice) {
		return nil, invalidArgument("amount %s does not match booking total %s",
			req.Amount.StringFixed(domain.MoneyPlaces), booking.TotalPrice.StringFixed(domain.MoneyPlaces))
	}

	now := s.now()
	payment := &domain.Payment{
		ID:            uuid.New().String(),
		BookingID:     booking.ID,
		Amount:        req.Amount.Round(domain.MoneyPlaces),
		Currency:      currency,
		Status:        domain.PaymentStatusPending,
		TransactionID: uuid.New().String(),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Payments().Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.log.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("booking_id", booking.ID),
		zap.String("amount", payment.Amount.StringFixed(domain.MoneyPlaces)),
		zap.String("currency", payment.Currency),
	)
	return payment, nil
}

// InitializePayment opens a checkout at the gateway for a pending payment.
// A gateway failure marks the payment failed; it is never retried here.
func (s *PaymentService) InitializePayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, error) {
	payment, booking, err := s.loadAuthorized(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusPending {
		return nil, invalidState("payment is %s", payment.Status)
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, invalidState("booking is %s", booking.Status)
	}

	lockToken := uuid.New().String()
	acquired, err := s.locks.AcquirePaymentLock(ctx, payment.ID, lockToken, s.cfg.InitializeLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire initialize lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("payment %s is being initialized: %w", payment.ID, ErrConcurrencyConflict)
	}
	defer func() {
		if err := s.locks.ReleasePaymentLock(context.WithoutCancel(ctx), payment.ID, lockToken); err != nil {
			s.log.Warn("release initialize lock", zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}()

	// Another initializer may have finished between the first read and the lock.
	payment, err = s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment", paymentID)
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, invalidState("payment is %s", payment.Status)
	}

	guest, err := s.store.Users().GetByID(ctx, booking.GuestID)
	if err != nil {
		return nil, notFound(err, "user", booking.GuestID)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	result, gwErr := s.gateway.Initialize(gwCtx, gateway.InitializeRequest{
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		TxRef:       payment.TransactionID,
		Email:       guest.Email,
		FirstName:   guest.FirstName,
		LastName:    guest.LastName,
		Phone:       guest.Phone,
		Title:       paymentTitle,
		Description: fmt.Sprintf("Booking from %s to %s", booking.StartDate.Format("2006-01-02"), booking.EndDate.Format("2006-01-02")),
		CallbackURL: s.cfg.CallbackURL,
		ReturnURL:   s.cfg.ReturnURL,
	})
	cancel()

	// The gateway call may have outlived the caller; the outcome is recorded
	// regardless.
	persistCtx := context.WithoutCancel(ctx)

	if gwErr != nil {
		if err := s.transition(persistCtx, payment, domain.PaymentStatusFailed, nil); err != nil {
			return nil, err
		}
		s.log.Warn("payment initialization failed",
			zap.String("payment_id", payment.ID),
			zap.Error(gwErr),
		)
		return nil, fmt.Errorf("initialize payment %s: %w", payment.ID, gwErr)
	}

	err = s.transition(persistCtx, payment, domain.PaymentStatusInitialized, func(p *domain.Payment) {
		p.Gateway.CheckoutURL = result.CheckoutURL
		p.Gateway.Reference = result.Reference
		p.Gateway.RawResponse = result.Raw
		p.Gateway.InitializedAt = s.now()
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCheckoutLink(ctx, payment, guest.Email)
	return payment, nil
}

// VerifyPayment asks the gateway whether an initialized payment went
// through. Verifying a completed payment returns it without a gateway call.
// Gateway errors leave the payment untouched.
func (s *PaymentService) VerifyPayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, error) {
	payment, booking, err := s.loadAuthorized(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentStatusCompleted:
		return payment, nil
	case domain.PaymentStatusInitialized:
	default:
		return nil, invalidState("payment is %s", payment.Status)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	result, err := s.gateway.Verify(gwCtx, payment.TransactionID)
	cancel()
	if err != nil {
		s.log.Warn("payment verification failed",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("verify payment %s: %w", payment.ID, err)
	}

	persistCtx := context.WithoutCancel(ctx)

	switch result.Outcome {
	case gateway.OutcomeSuccess:
		return s.complete(persistCtx, payment.ID, booking.GuestID, result)
	case gateway.OutcomeDenied:
		return s.deny(persistCtx, payment, result)
	default:
		s.log.Info("payment still pending at gateway", zap.String("payment_id", payment.ID))
		return payment, nil
	}
}

// complete marks the payment completed and confirms its booking in one
// transaction. Concurrent verifiers race on the payment version; the loser
// re-reads and returns the winner's result.
func (s *PaymentService) complete(ctx context.Context, paymentID, guestID string, result *gateway.VerifyResult) (*domain.Payment, error) {
	for attempt := 1; attempt <= completeAttempts; attempt++ {
		var (
			completed *domain.Payment
			won       bool
		)

		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			payment, err := tx.Payments().GetByID(ctx, paymentID)
			if err != nil {
				return notFound(err, "payment", paymentID)
			}
			if payment.Status == domain.PaymentStatusCompleted {
				completed = payment
				return nil
			}
			if payment.Status != domain.PaymentStatusInitialized {
				return invalidState("payment is %s", payment.Status)
			}

			booking, err := tx.Bookings().GetByID(ctx, payment.BookingID)
			if err != nil {
				return notFound(err, "booking", payment.BookingID)
			}
			if booking.Status != domain.BookingStatusPending {
				return invalidState("booking is %s", booking.Status)
			}

			siblings, err := tx.Payments().GetByBookingID(ctx, booking.ID)
			if err != nil {
				return fmt.Errorf("list booking payments: %w", err)
			}
			for _, other := range siblings {
				if other.ID != payment.ID && other.Status == domain.PaymentStatusCompleted {
					return invalidState("booking %s already paid by %s", booking.ID, other.ID)
				}
			}

			// Booking row first, then payment: the same lock order Cancel uses.
			if err := tx.Bookings().UpdateStatus(ctx, booking.ID, domain.BookingStatusConfirmed, booking.Version); err != nil {
				return err
			}

			version := payment.Version
			payment.Status = domain.PaymentStatusCompleted
			payment.PaymentMethod = result.PaymentMethod
			if result.Reference != "" {
				payment.Gateway.Reference = result.Reference
			}
			payment.Gateway.RawResponse = result.Raw
			payment.Gateway.VerifiedAt = s.now()

			if err := tx.Payments().Update(ctx, payment, version); err != nil {
				return err
			}
			payment.Version = version + 1

			completed = payment
			won = true
			return nil
		})

		switch {
		case err == nil:
			if won {
				monitoring.RecordPaymentTransition(string(domain.PaymentStatusInitialized), string(domain.PaymentStatusCompleted))
				s.log.Info("payment completed",
					zap.String("payment_id", completed.ID),
					zap.String("booking_id", completed.BookingID),
				)
				s.notifier.NotifyPaymentCompleted(ctx, completed, s.recipient(ctx, guestID))
			}
			return completed, nil
		case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrDuplicate):
			s.log.Info("payment completion lost a race, re-reading",
				zap.String("payment_id", paymentID),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("complete payment %s: %w", paymentID, ErrConcurrencyConflict)
}

// deny records a gateway refusal. If someone else resolved the payment in
// the meantime, their result stands.
func (s *PaymentService) deny(ctx context.Context, payment *domain.Payment, result *gateway.VerifyResult) (*domain.Payment, error) {
	err := s.transition(ctx, payment, domain.PaymentStatusFailed, func(p *domain.Payment) {
		p.Gateway.RawResponse = result.Raw
		p.Gateway.VerifiedAt = s.now()
	})
	if errors.Is(err, ErrConcurrencyConflict) {
		current, getErr := s.store.Payments().GetByID(ctx, payment.ID)
		if getErr == nil && current.Status != domain.PaymentStatusInitialized {
			return current, nil
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("payment denied by gateway", zap.String("payment_id", payment.ID))
	return payment, nil
}

// transition applies a status change with a version check. payment is
// updated in place on success.
func (s *PaymentService) transition(ctx context.Context, payment *domain.Payment, to domain.PaymentStatus, mutate func(*domain.Payment)) error {
	from := payment.Status
	version := payment.Version

	next := *payment
	next.Status = to
	if mutate != nil {
		mutate(&next)
	}

	if err := s.store.Payments().Update(ctx, &next, version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("payment %s changed concurrently: %w", payment.ID, ErrConcurrencyConflict)
		}
		return fmt.Errorf("update payment %s: %w", payment.ID, err)
	}

	next.Version = version + 1
	next.UpdatedAt = s.now()
	*payment = next

	monitoring.RecordPaymentTransition(string(from), string(to))
	return nil
}

// cancelOpenPayments cancels every pending or initialized payment of a
// booking. It runs inside the caller's transaction.
func (s *PaymentService) cancelOpenPayments(ctx context.Context, tx repository.Store, bookingID string) (int, error) {
	payments, err := tx.Payments().GetByBookingID(ctx, bookingID)
	if err != nil {
		return 0, fmt.Errorf("list booking payments: %w", err)
	}

	canceled := 0
	for _, p := range payments {
		if !p.Status.IsOpen() {
			continue
		}
		from := p.Status
		version := p.Version
		p.Status = domain.PaymentStatusCanceled
		if err := tx.Payments().Update(ctx, p, version); err != nil {
			return canceled, err
		}
		monitoring.RecordPaymentTransition(string(from), string(domain.PaymentStatusCanceled))
		canceled++
	}
	return canceled, nil
}

// GetPayment retrieves a payment the caller is allowed to see.
func (s *PaymentService) GetPayment(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, error) {
	payment, _, err := s.loadAuthorized(ctx, caller, paymentID)
	return payment, err
}

// ListBookingPayments returns every payment attempt for a booking.
func (s *PaymentService) ListBookingPayments(ctx context.Context, caller domain.Caller, bookingID string) ([]*domain.Payment, error) {
	if bookingID == "" {
		return nil, invalidArgument("booking id is required")
	}

	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking", bookingID)
	}
	if !caller.Owns(booking.GuestID) {
		return nil, ErrForbidden
	}

	return s.store.Payments().GetByBookingID(ctx, bookingID)
}

func (s *PaymentService) loadAuthorized(ctx context.Context, caller domain.Caller, paymentID string) (*domain.Payment, *domain.Booking, error) {
	if paymentID == "" {
		return nil, nil, invalidArgument("payment id is required")
	}

	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, notFound(err, "payment", paymentID)
	}

	booking, err := s.store.Bookings().GetByID(ctx, payment.BookingID)
	if err != nil {
		return nil, nil, notFound(err, "booking", payment.BookingID)
	}

	if !caller.Owns(booking.GuestID) {
		return nil, nil, ErrForbidden
	}

	return payment, booking, nil
}

func (s *PaymentService) recipient(ctx context.Context, guestID string) string {
	guest, err := s.store.Users().GetByID(ctx, guestID)
	if err != nil {
		// The renderer falls back to the guest's address at send time.
		s.log.Warn("resolve notification recipient", zap.String("user_id", guestID), zap.Error(err))
		return ""
	}
	return guest.Email
}

func (s *PaymentService) supportsCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, c := range s.cfg.SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}
