package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// mustRegister регистрирует коллектор. Если коллектор с тем же описанием уже есть,
// возвращается существующий: так тесты могут собирать несколько сервисов на одном registry.
func mustRegister[C prometheus.Collector](reg prometheus.Registerer, name string, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		if existing, ok := dup.ExistingCollector.(C); ok {
			return existing
		}
		panic(fmt.Sprintf("metric %q registered with another type", name))
	}
	panic(fmt.Sprintf("register metric %q: %v", name, err))
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return mustRegister(reg, opts.Name, prometheus.NewCounter(opts))
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return mustRegister(reg, opts.Name, prometheus.NewCounterVec(opts, labels))
}

func registerGauge(reg prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return mustRegister(reg, opts.Name, prometheus.NewGauge(opts))
}

func registerHistogram(reg prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	return mustRegister(reg, opts.Name, prometheus.NewHistogram(opts))
}

func registerHistogramVec(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return mustRegister(reg, opts.Name, prometheus.NewHistogramVec(opts, labels))
}
