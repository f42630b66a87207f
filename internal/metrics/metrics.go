package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	seatTransitionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_seat_transition_failures_total",
			Help: "Seat transition failures by operation and cause",
		},
		[]string{"operation", "cause"},
	)

	seatTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_seat_transitions_total",
			Help: "Successful seat status transitions by operation",
		},
		[]string{"operation"},
	)

	admissionBatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_batch_entries_total",
			Help: "Queue entries processed by admission batches, by outcome",
		},
		[]string{"outcome"},
	)

	expiredEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_expired_entries_total",
			Help: "Queue entries expired by the expiration processor",
		},
	)

	schedulerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admission_scheduler_task_duration_seconds",
			Help:    "Duration of fired lifecycle tasks",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"task_type"},
	)

	lockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_lock_acquisitions_total",
			Help: "Distributed lock acquisition attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func RecordSeatTransition(operation string) {
	seatTransitions.WithLabelValues(operation).Inc()
}

func RecordSeatTransitionFailure(operation, cause string) {
	seatTransitionFailures.WithLabelValues(operation, cause).Inc()
}

func RecordAdmission(outcome string) {
	admissionBatch.WithLabelValues(outcome).Inc()
}

func RecordExpiration() {
	expiredEntries.Inc()
}

func ObserveSchedulerTask(taskType string, d time.Duration) {
	schedulerTaskDuration.WithLabelValues(taskType).Observe(d.Seconds())
}

func RecordLockAcquisition(outcome string) {
	lockAcquisitions.WithLabelValues(outcome).Inc()
}
