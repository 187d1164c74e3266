// Package metrics defines the collector used by the wallet and transfer
// services, with a Prometheus implementation and a no-op default.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector receives operational measurements from services.
type Collector interface {
	RecordOperationDuration(op string, d time.Duration)
	RecordOperationResult(op, result string)
	RecordError(op, kind string)
	RecordConflictRetry(op string)
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
	RecordTransactionVolume(txType, currency string, amount int64)
	RecordEventDropped(eventType string)
}

// NoopCollector is a no-op implementation of Collector
type NoopCollector struct{}

func (NoopCollector) RecordOperationDuration(string, time.Duration) {}
func (NoopCollector) RecordOperationResult(string, string)          {}
func (NoopCollector) RecordError(string, string)                    {}
func (NoopCollector) RecordConflictRetry(string)                    {}
func (NoopCollector) RecordCacheHit(string)                         {}
func (NoopCollector) RecordCacheMiss(string)                        {}
func (NoopCollector) RecordTransactionVolume(string, string, int64) {}
func (NoopCollector) RecordEventDropped(string)                     {}

// PrometheusCollector exports measurements under the parkpay namespace.
type PrometheusCollector struct {
	duration      *prometheus.HistogramVec
	results       *prometheus.CounterVec
	errors        *prometheus.CounterVec
	retries       *prometheus.CounterVec
	cache         *prometheus.CounterVec
	volume        *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
}

// NewPrometheusCollector registers the collector's metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parkpay",
			Name:      "operation_duration_seconds",
			Help:      "Duration of wallet operations",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkpay",
			Name:      "operations_total",
			Help:      "Wallet operations by outcome",
		}, []string{"operation", "result"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkpay",
			Name:      "operation_errors_total",
			Help:      "Wallet operation failures by kind",
		}, []string{"operation", "kind"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkpay",
			Name:      "conflict_retries_total",
			Help:      "Optimistic concurrency retries",
		}, []string{"operation"}),
		cache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkpay",
			Name:      "cache_lookups_total",
			Help:      "Wallet cache lookups by outcome",
		}, []string{"outcome"}),
		volume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkpay",
			Name:      "transaction_volume_minor_units_total",
			Help:      "Settled value moved, in minor units",
		}, []string{"type", "currency"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkpay",
			Name:      "events_dropped_total",
			Help:      "Notifications dropped after exhausting retries or queue space",
		}, []string{"type"}),
	}
}

func (p *PrometheusCollector) RecordOperationDuration(op string, d time.Duration) {
	p.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordOperationResult(op, result string) {
	p.results.WithLabelValues(op, result).Inc()
}

func (p *PrometheusCollector) RecordError(op, kind string) {
	p.errors.WithLabelValues(op, kind).Inc()
}

func (p *PrometheusCollector) RecordConflictRetry(op string) {
	p.retries.WithLabelValues(op).Inc()
}

// Cache keys are not used as labels to keep cardinality bounded.
func (p *PrometheusCollector) RecordCacheHit(string) {
	p.cache.WithLabelValues("hit").Inc()
}

func (p *PrometheusCollector) RecordCacheMiss(string) {
	p.cache.WithLabelValues("miss").Inc()
}

func (p *PrometheusCollector) RecordTransactionVolume(txType, currency string, amount int64) {
	p.volume.WithLabelValues(txType, currency).Add(float64(amount))
}

func (p *PrometheusCollector) RecordEventDropped(eventType string) {
	p.eventsDropped.WithLabelValues(eventType).Inc()
}
