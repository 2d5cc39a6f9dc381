package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// Prometheus metrics for notification dispatch monitoring
var (
	// notificationsDispatchedTotal counts finished dispatches by final status
	notificationsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_dispatched_total",
			Help: "Total number of notifications dispatched, by final status",
		},
		[]string{"status"}, // sent|partial_failure|failed
	)

	// channelAttemptsTotal counts individual provider attempts
	channelAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_channel_attempts_total",
			Help: "Total number of channel send attempts",
		},
		[]string{"channel", "outcome"}, // sent|failed
	)

	// channelSendDuration tracks the duration of one provider attempt
	channelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_channel_send_duration_seconds",
			Help:    "Channel send attempt duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// skippedRecipientsTotal counts recipients that preferred a channel they cannot be reached on
	skippedRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_skipped_recipients_total",
			Help: "Recipients skipped for missing contact information",
		},
		[]string{"channel"},
	)

	// deadLettersTotal counts channel failures forwarded to the dead-letter sink
	deadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dead_letters_total",
			Help: "Total number of dead-letter entries produced",
		},
		[]string{"channel"},
	)

	// deadLettersReprocessedTotal counts reprocessing outcomes
	deadLettersReprocessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dead_letters_reprocessed_total",
			Help: "Total number of dead-letter entries reprocessed, by outcome",
		},
		[]string{"outcome"}, // resolved|failed|skipped
	)

	// persistenceFailuresTotal counts log store and dead-letter store write failures
	persistenceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_persistence_failures_total",
			Help: "Total number of failed persistence writes",
		},
		[]string{"store"}, // log|dead_letter
	)

	// tenantIsolationDropsTotal counts records dropped for missing an org id
	tenantIsolationDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_tenant_isolation_drops_total",
			Help: "Records dropped because they carried no org id",
		},
		[]string{"boundary"},
	)

	// circuitBreakerOpenTotal tracks circuit breaker open events
	circuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_circuit_breaker_open_total",
			Help: "Total number of circuit breaker open events",
		},
		[]string{"channel"},
	)

	// activeDispatches tracks dispatches currently in flight
	activeDispatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_active_dispatches",
			Help: "Number of dispatches currently in flight",
		},
	)
)

// RecordAttempt records one provider attempt and its duration.
func RecordAttempt(channel string, success bool, duration time.Duration) {
	outcome := string(entity.OutcomeSent)
	if !success {
		outcome = string(entity.OutcomeFailed)
	}
	channelAttemptsTotal.WithLabelValues(channel, outcome).Inc()
	channelSendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDispatched records the final status of one notification.
func RecordDispatched(status string) {
	notificationsDispatchedTotal.WithLabelValues(status).Inc()
}

func recordSkipped(channel string, n int) {
	skippedRecipientsTotal.WithLabelValues(channel).Add(float64(n))
}

func recordDeadLetter(channel string) {
	deadLettersTotal.WithLabelValues(channel).Inc()
}

func recordReprocessed(outcome string) {
	deadLettersReprocessedTotal.WithLabelValues(outcome).Inc()
}

func recordPersistenceFailure(store string) {
	persistenceFailuresTotal.WithLabelValues(store).Inc()
}

func recordTenantDrop(boundary string) {
	tenantIsolationDropsTotal.WithLabelValues(boundary).Inc()
}

// RecordCircuitBreakerOpen records a circuit breaker opening for a channel.
func RecordCircuitBreakerOpen(channel string) {
	circuitBreakerOpenTotal.WithLabelValues(channel).Inc()
}
