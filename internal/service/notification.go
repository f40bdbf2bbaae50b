package service

import (
	"context"

	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/monitoring"
	"travel/internal/notification"
)

// NotificationService turns committed payment transitions into notification
// jobs. It only enqueues; delivery happens in the dispatcher.
type NotificationService struct {
	queue notification.Enqueuer
	log   *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(queue notification.Enqueuer, log *zap.Logger) *NotificationService {
	return &NotificationService{
		queue: queue,
		log:   log.With(zap.String("service", "notification-producer")),
	}
}

// NotifyCheckoutLink sends the guest the hosted checkout link.
func (s *NotificationService) NotifyCheckoutLink(ctx context.Context, payment *domain.Payment, recipient string) {
	s.enqueue(ctx, notification.NewJob(notification.KindPaymentCheckoutLink, payment.BookingID, payment.ID, recipient))
}

// NotifyPaymentCompleted sends the payment and booking confirmations.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, payment *domain.Payment, recipient string) {
	s.enqueue(ctx, notification.NewJob(notification.KindPaymentConfirmation, payment.BookingID, payment.ID, recipient))
	s.enqueue(ctx, notification.NewJob(notification.KindBookingConfirmation, payment.BookingID, payment.ID, recipient))
}

// enqueue never fails the caller: the transition it reports has already
// been committed.
func (s *NotificationService) enqueue(ctx context.Context, job notification.Job) {
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		monitoring.RecordEnqueueFailure(string(job.Kind))
		s.log.Error("enqueue notification",
			zap.String("kind", string(job.Kind)),
			zap.String("booking_id", job.BookingID),
			zap.String("payment_id", job.PaymentID),
			zap.Error(err),
		)
	}
}
