package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks dispatcher throughput and failure counts.
type OutboxMetrics struct {
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	batch     prometheus.Histogram
}

// NewOutboxMetrics registers the dispatcher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_processed_total",
		Help: "Outbox events dispatched and marked completed.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox events whose handler returned an error.",
	}, []string{"event_type"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of a single outbox runner pass.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(processed, failed, batch)
	return &OutboxMetrics{
		processed: processed,
		failed:    failed,
		batch:     batch,
	}
}

// IncProcessed counts a completed event for the given type.
func (m *OutboxMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed counts a failed dispatch for the given type.
func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObserveBatch records how long a runner pass took.
func (m *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(duration.Seconds())
}
