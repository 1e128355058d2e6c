package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "sync_runs_total",
			Help:      "Finished sync runs by terminal status.",
		},
		[]string{"status"},
	)

	customersForwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "customers_forwarded_total",
			Help:      "Customer records forwarded to the sink.",
		},
	)

	batchDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "batch_dispatches_total",
			Help:      "Batch dispatch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	abandonmentDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "abandonment_decisions_total",
			Help:      "Abandonment evaluations by decision.",
		},
		[]string{"decision"},
	)

	notificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "notification_failures_total",
			Help:      "Abandonment notifications that failed to deliver.",
		},
	)

	webhookDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storebridge",
			Name:      "webhook_events_dropped_total",
			Help:      "Acknowledged webhook deliveries that could not be enqueued.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			syncRuns,
			customersForwarded,
			batchDispatches,
			abandonmentDecisions,
			notificationFailures,
			webhookDropped,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveRun records a finished sync run.
func ObserveRun(status string, forwarded int) {
	syncRuns.WithLabelValues(status).Inc()
	customersForwarded.Add(float64(forwarded))
}

// IncDispatch records one batch dispatch attempt.
func IncDispatch(outcome string) {
	batchDispatches.WithLabelValues(outcome).Inc()
}

// IncDecision records one abandonment evaluation.
func IncDecision(abandoned bool) {
	label := "kept"
	if abandoned {
		label = "abandoned"
	}
	abandonmentDecisions.WithLabelValues(label).Inc()
}

// IncNotificationFailure records a failed abandonment notification.
func IncNotificationFailure() {
	notificationFailures.Inc()
}

// IncWebhookDropped records an acknowledged delivery lost before the queue.
func IncWebhookDropped() {
	webhookDropped.Inc()
}
