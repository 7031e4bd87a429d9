package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики HTTP API витрины.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewHTTPMetrics создаёт HTTP-метрики в указанном реестре.
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &HTTPMetrics{
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		latency: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Observe записывает один обработанный запрос.
func (m *HTTPMetrics) Observe(route, method, code string, duration time.Duration) {
	m.requests.WithLabelValues(route, method, code).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}
