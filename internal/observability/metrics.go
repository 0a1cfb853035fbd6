package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPRequests counts requests by method, matched route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route and status code.",
}, []string{"method", "route", "code"})

// HTTPDuration tracks request latency per route.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "creditledger",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds by route.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"route"})

// PaymentsReported counts accepted payment events by status.
var PaymentsReported = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "ledger",
	Name:      "payments_reported_total",
	Help:      "Total payment events recorded, by payment status.",
}, []string{"status"})

// DuplicateReports counts report submissions rejected as duplicates.
var DuplicateReports = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "ledger",
	Name:      "duplicate_reports_total",
	Help:      "Total payment reports rejected because the event already exists.",
})

// ValidationFailures counts report submissions rejected by domain validation.
var ValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "ledger",
	Name:      "validation_failures_total",
	Help:      "Total payment reports rejected by validation.",
})

// ScoreRecomputations counts full credit score recomputations.
var ScoreRecomputations = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "scoring",
	Name:      "recomputations_total",
	Help:      "Total credit score recomputations from payment history.",
})

// ScoreCacheHits counts credit score reads served from the in-memory cache.
var ScoreCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "scoring",
	Name:      "cache_hits_total",
	Help:      "Total credit score lookups served from cache.",
})

// ScoreCacheMisses counts credit score reads that fell through to storage.
var ScoreCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "scoring",
	Name:      "cache_misses_total",
	Help:      "Total credit score lookups that missed the cache.",
})

// X402Verifications counts paywall outcomes: disabled, accepted, challenged.
var X402Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "x402",
	Name:      "verifications_total",
	Help:      "Total x402 payment verifications by outcome.",
}, []string{"outcome"})

// RateLimited counts requests rejected by the per-caller rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "creditledger",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Total requests rejected by the rate limiter.",
})
