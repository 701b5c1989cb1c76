package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ficore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ficore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ficore",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Business metrics, recorded from use cases via the helper functions.
var (
	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ficore",
			Subsystem: "vas",
			Name:      "purchases_total",
			Help:      "Total number of VAS purchases",
		},
		[]string{"type", "provider", "status"},
	)

	PurchaseAmountKobo = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ficore",
			Subsystem: "vas",
			Name:      "purchase_amount_kobo",
			Help:      "Purchase amounts in kobo",
			Buckets:   prometheus.ExponentialBuckets(5000, 4, 8), // ₦50 up
		},
		[]string{"type", "provider"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ficore",
			Subsystem: "funding",
			Name:      "webhooks_total",
			Help:      "Funding webhooks by outcome",
		},
		[]string{"outcome"},
	)

	SettlementTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ficore",
			Subsystem: "worker",
			Name:      "settlement_tasks_total",
			Help:      "Settlement task outcomes",
		},
		[]string{"outcome"}, // done, retried, exhausted
	)
)

// Metrics records request count, latency, and in-flight gauge.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordPurchase records one purchase outcome.
func RecordPurchase(vasType, provider, status string, amountKobo int64) {
	PurchasesTotal.WithLabelValues(vasType, provider, status).Inc()
	PurchaseAmountKobo.WithLabelValues(vasType, provider).Observe(float64(amountKobo))
}

// RecordWebhook records one webhook outcome.
func RecordWebhook(outcome string) {
	WebhooksTotal.WithLabelValues(outcome).Inc()
}

// RecordSettlement records one settlement task outcome.
func RecordSettlement(outcome string) {
	SettlementTasksTotal.WithLabelValues(outcome).Inc()
}
