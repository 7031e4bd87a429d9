package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics — метрики ключей Idempotency-Key оформления.
type IdempotencyMetrics struct {
	decisions   *prometheus.CounterVec
	cleanupRuns *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewIdempotencyMetrics создаёт метрики в указанном реестре.
func NewIdempotencyMetrics(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &IdempotencyMetrics{
		decisions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_decisions_total",
			Help: "Checkout idempotency decisions: proceed, replay, conflict, mismatch",
		}, []string{"decision"}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup runs grouped by result",
		}, []string{"result"}),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency records",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_cleanup_last_deleted",
			Help: "Number of records deleted during the last cleanup run",
		}),
	}
}

// RecordDecision считает решение по ключу.
func (m *IdempotencyMetrics) RecordDecision(decision string) {
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordCleanupRun считает прогон очистки.
func (m *IdempotencyMetrics) RecordCleanupRun(result string, deleted int) {
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// AddDeleted увеличивает счётчик удалённых записей.
func (m *IdempotencyMetrics) AddDeleted(n int) {
	if n > 0 {
		m.deleted.Add(float64(n))
	}
}
