// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesTotal tracks messages created, by category.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_created_total",
			Help: "Total messages created",
		},
		[]string{"category"},
	)

	// MessagesDeletedTotal tracks messages moved to trash and hard-deleted.
	MessagesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_deleted_total",
			Help: "Total messages deleted",
		},
	)

	// NotificationsTotal tracks notifications created, by kind.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total notifications created",
		},
		[]string{"kind"},
	)

	// FanoutFailuresTotal tracks swallowed fan-out errors.
	FanoutFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_fanout_failures_total",
			Help: "Fan-out errors that were logged and swallowed",
		},
	)

	// SMSDispatchTotal tracks SMS dispatch attempts, by outcome.
	SMSDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_dispatch_total",
			Help: "SMS dispatch attempts",
		},
		[]string{"status"},
	)

	// TrashRestoresTotal tracks restore attempts, by outcome.
	TrashRestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trash_restores_total",
			Help: "Trash restore attempts",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
