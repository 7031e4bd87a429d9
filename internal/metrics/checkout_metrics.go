package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы оформления заказа для метки outcome.
const (
	OutcomeCompleted         = "completed"
	OutcomeRedirected        = "redirected"
	OutcomeValidationFailed  = "validation_failed"
	OutcomeStockConflict     = "stock_conflict"
	OutcomePersistenceFailed = "persistence_failed"
)

// CheckoutMetrics содержит метрики оформления заказа и уведомлений.
type CheckoutMetrics struct {
	checkoutStarted  prometheus.Counter
	checkoutOutcomes *prometheus.CounterVec
	paymentFallbacks *prometheus.CounterVec

	checkoutDuration prometheus.Histogram
	stepDuration     *prometheus.HistogramVec

	notifications *prometheus.CounterVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	activeCheckouts prometheus.Gauge
}

// NewCheckoutMetrics создаёт метрики в реестре по умолчанию.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout submissions",
		}),
		checkoutOutcomes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_outcomes_total",
			Help: "Checkout submissions by final outcome",
		}, []string{"outcome"}),
		paymentFallbacks: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_payment_fallbacks_total",
			Help: "Online payments degraded to in-store confirmation",
		}, []string{"reason"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout submissions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Notification attempts by channel, recipient and result",
		}, []string{"channel", "recipient", "result"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_checkouts",
			Help: "Number of checkout submissions in progress",
		}),
	}
}

// RecordCheckoutStarted отмечает начало оформления.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
	m.activeCheckouts.Inc()
}

// RecordCheckoutFinished фиксирует исход и длительность оформления.
func (m *CheckoutMetrics) RecordCheckoutFinished(outcome string, duration time.Duration) {
	m.checkoutOutcomes.WithLabelValues(outcome).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
	m.activeCheckouts.Dec()
}

// RecordPaymentFallback считает переход к оплате в магазине.
func (m *CheckoutMetrics) RecordPaymentFallback(reason string) {
	m.paymentFallbacks.WithLabelValues(reason).Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordNotification считает попытку отправки уведомления.
func (m *CheckoutMetrics) RecordNotification(channel, recipient string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(channel, recipient, result).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
