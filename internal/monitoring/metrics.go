package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	paymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment status transitions",
		},
		[]string{"from", "to"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_processed_total",
			Help: "Notification jobs processed by kind and result",
		},
		[]string{"kind", "result"},
	)

	deadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dead_letters_total",
			Help: "Notification jobs given up on",
		},
		[]string{"kind"},
	)

	enqueueFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_enqueue_failures_total",
			Help: "Notification jobs that could not be enqueued after a committed transition",
		},
		[]string{"kind"},
	)
)

// RecordGatewayCall records one gateway round trip.
func RecordGatewayCall(operation, outcome string, elapsed time.Duration) {
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
	gatewayLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordPaymentTransition records a committed payment status change.
func RecordPaymentTransition(from, to string) {
	paymentTransitions.WithLabelValues(from, to).Inc()
}

// RecordNotification records the result of processing a notification job:
// "sent", "skipped", "retried" or "dead".
func RecordNotification(kind, result string) {
	notificationsSent.WithLabelValues(kind, result).Inc()
	if result == "dead" {
		deadLetters.WithLabelValues(kind).Inc()
	}
}

// RecordEnqueueFailure records a notification lost before it reached the queue.
func RecordEnqueueFailure(kind string) {
	enqueueFailures.WithLabelValues(kind).Inc()
}
