package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zing_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zing_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MutationsTotal counts graph and content mutations by operation and outcome.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zing_mutations_total",
		Help: "Total number of social mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	// NotificationsCreated counts stored notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zing_notifications_created_total",
		Help: "Total number of notifications written",
	}, []string{"type"})

	// NotificationsSuppressed counts intents discarded because recipient == sender.
	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zing_notifications_suppressed_total",
		Help: "Total number of self-notifications suppressed",
	}, []string{"type"})

	// NotificationFailures counts notification writes that failed.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zing_notification_failures_total",
		Help: "Total number of notification writes that failed",
	}, []string{"type"})

	// FanoutDropped counts intents dropped because the fan-out queue was full or closed.
	FanoutDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zing_fanout_dropped_total",
		Help: "Total number of notification intents dropped by the dispatcher",
	}, []string{"reason"})

	// FanoutQueueDepth is the number of intents waiting for a worker.
	FanoutQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zing_fanout_queue_depth",
		Help: "Number of notification intents waiting in the fan-out queue",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordMutation increments the mutation counter with an outcome derived from err.
func RecordMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	MutationsTotal.WithLabelValues(operation, outcome).Inc()
}
