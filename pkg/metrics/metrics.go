package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the service-level counters and histograms exported
// on /metrics.
type Metrics struct {
	httpDuration  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	usageRecords  prometheus.Counter
	usageBatches  prometheus.Counter
	usageRejected *prometheus.CounterVec
	payments      *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	blockedHits   prometheus.Counter
}

// New registers every collector on the provided registerer. A nil
// registerer yields a no-op instance, which tests and optional wiring
// rely on.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})
	usageRecords := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_records_ingested_total",
		Help: "GPU telemetry records persisted.",
	})
	usageBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_batches_ingested_total",
		Help: "Telemetry batches persisted.",
	})
	usageRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_batches_rejected_total",
		Help: "Telemetry batches rejected before persistence.",
	}, []string{"reason"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payment creations by gateway and outcome.",
	}, []string{"gateway", "status"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Requests denied by the rate limiter.",
	}, []string{"scope"})
	blockedHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blocked_ip_hits_total",
		Help: "Requests denied by the IP block-list.",
	})

	reg.MustRegister(httpDuration, httpRequests, usageRecords, usageBatches,
		usageRejected, payments, rateLimited, blockedHits)

	return &Metrics{
		httpDuration:  httpDuration,
		httpRequests:  httpRequests,
		usageRecords:  usageRecords,
		usageBatches:  usageBatches,
		usageRejected: usageRejected,
		payments:      payments,
		rateLimited:   rateLimited,
		blockedHits:   blockedHits,
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

// IncUsageIngested records a persisted batch of n telemetry records.
func (m *Metrics) IncUsageIngested(n int) {
	if m == nil || m.usageRecords == nil {
		return
	}
	m.usageRecords.Add(float64(n))
	m.usageBatches.Inc()
}

// IncUsageRejected records a batch denied before persistence.
func (m *Metrics) IncUsageRejected(reason string) {
	if m == nil || m.usageRejected == nil {
		return
	}
	m.usageRejected.WithLabelValues(reason).Inc()
}

// IncPayment records one payment creation outcome.
func (m *Metrics) IncPayment(gateway, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(gateway, status).Inc()
}

// IncRateLimited records a denial by the named limiter scope.
func (m *Metrics) IncRateLimited(scope string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

// IncBlockedHit records a request refused via the IP block-list.
func (m *Metrics) IncBlockedHit() {
	if m == nil || m.blockedHits == nil {
		return
	}
	m.blockedHits.Inc()
}
