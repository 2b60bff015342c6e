package authclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Renewal outcomes used as the result label of authclient_renewals_total.
const (
	RenewalResultSuccess = "success"
	RenewalResultFailure = "failure"
	RenewalResultTimeout = "timeout"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the session renewal protocol. It is safe for concurrent use, and a nil
// collector records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	sessionRetriesTotal *prometheus.CounterVec

	renewalsTotal   *prometheus.CounterVec
	renewalDuration prometheus.Histogram
	renewalWaiters  prometheus.Counter

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)

	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_requests_total",
				Help: "Total number of HTTP requests sent, retries included",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authclient_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "authclient_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		sessionRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_session_retries_total",
				Help: "Requests replayed after a session renewal",
			},
			[]string{"method", "endpoint"},
		),
		renewalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_renewals_total",
				Help: "Session renewals by outcome",
			},
			[]string{"result"},
		),
		renewalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authclient_renewal_duration_seconds",
				Help:    "Duration of session renewals in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		renewalWaiters: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "authclient_renewal_waiters_total",
				Help: "Callers that joined a renewal already in flight",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_errors_total",
				Help: "Total number of errors returned to callers",
			},
			[]string{"type", "method", "endpoint"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordSessionRetry counts a request replayed with a renewed token.
func (mc *MetricsCollector) RecordSessionRetry(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.sessionRetriesTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordRenewal records the outcome and duration of one renewal execution.
func (mc *MetricsCollector) RecordRenewal(result string, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.renewalsTotal.WithLabelValues(result).Inc()
	mc.renewalDuration.Observe(duration.Seconds())
}

// RecordRenewalWaiter counts a caller that joined an in-flight renewal.
func (mc *MetricsCollector) RecordRenewalWaiter() {
	if mc == nil {
		return
	}

	mc.renewalWaiters.Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry. It is nil when the
// collector was built on a Registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
