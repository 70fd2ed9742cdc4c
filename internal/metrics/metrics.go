// Package metrics provides Prometheus instrumentation for the escrow core.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path pattern, and status bucket.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payloom",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payloom",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EscrowLockedTotal counts wallets locked, by source (provider webhook or admin approval).
	EscrowLockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payloom",
			Name:      "escrow_locked_total",
			Help:      "Total escrow wallets locked, by confirmation source.",
		},
		[]string{"source"},
	)

	// EscrowResolvedTotal counts wallet resolutions by outcome and actor.
	EscrowResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payloom",
			Name:      "escrow_resolved_total",
			Help:      "Total escrow wallets resolved, by outcome (released/refunded) and actor.",
		},
		[]string{"outcome", "actor"},
	)

	// WebhookEventsTotal counts provider webhook deliveries by provider and result.
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payloom",
			Name:      "webhook_events_total",
			Help:      "Total provider webhook events, by provider and processing result.",
		},
		[]string{"provider", "result"},
	)

	// FraudAlertsTotal counts fraud alerts raised by the manual verification path.
	FraudAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "payloom",
		Name:      "fraud_alerts_total",
		Help:      "Total fraud alerts raised by duplicate transaction codes.",
	})

	// AutoReleaseSweepReleased observes wallets released per sweep.
	AutoReleaseSweepReleased = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "payloom",
		Name:      "auto_release_sweep_released",
		Help:      "Wallets released per auto-release sweep.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// NotificationFailuresTotal counts best-effort notification failures.
	NotificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payloom",
			Name:      "notification_failures_total",
			Help:      "Total notification dispatch failures, by channel.",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EscrowLockedTotal,
		EscrowResolvedTotal,
		WebhookEventsTotal,
		FraudAlertsTotal,
		AutoReleaseSweepReleased,
		NotificationFailuresTotal,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not raw path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
