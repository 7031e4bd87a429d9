package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics — метрики публикации transactional outbox.
type OutboxMetrics struct {
	attempts      *prometheus.CounterVec
	pending       prometheus.Gauge
	oldestPending prometheus.Gauge
}

// NewOutboxMetrics создаёт метрики outbox в указанном реестре.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by result",
		}, []string{"result"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox",
		}),
		oldestPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
	}
}

// RecordAttempt считает попытку публикации с результатом sent, retry_error, failed или dlq_failed.
func (m *OutboxMetrics) RecordAttempt(result string) {
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер backlog и возраст самого старого сообщения.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	m.pending.Set(float64(pending))
	if pending == 0 || oldestAge < 0 {
		oldestAge = 0
	}
	m.oldestPending.Set(oldestAge.Seconds())
}
