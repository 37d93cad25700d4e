package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type exchangeMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	swapped    *prometheus.CounterVec
}

type rpcMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	exchangeMetricsOnce sync.Once
	exchangeRegistry    *exchangeMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics
)

// Exchange returns the lazily-initialised registry for host operations.
func Exchange() *exchangeMetrics {
	exchangeMetricsOnce.Do(func() {
		exchangeRegistry = &exchangeMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ratemint",
				Subsystem: "exchange",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ratemint",
				Subsystem: "exchange",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for engine operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			swapped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ratemint",
				Subsystem: "exchange",
				Name:      "swaps_total",
				Help:      "Count of committed swaps segmented by input amount.",
			}, []string{"input_amount"}),
		}
		prometheus.MustRegister(
			exchangeRegistry.operations,
			exchangeRegistry.latency,
			exchangeRegistry.swapped,
		)
	})
	return exchangeRegistry
}

// Observe records the outcome of one host operation.
func (m *exchangeMetrics) Observe(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSwap counts a committed swap. Input amounts are drawn from the rate
// table so the label set stays bounded.
func (m *exchangeMetrics) RecordSwap(inputAmount string) {
	if m == nil {
		return
	}
	m.swapped.WithLabelValues(inputAmount).Inc()
}

// RPC returns the lazily-initialised registry for JSON-RPC handlers.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ratemint",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ratemint",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ratemint",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ratemint",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records a handled request. code is zero for successful calls.
func (m *rpcMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *rpcMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
