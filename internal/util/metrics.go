package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Total number of local cart mutations",
	}, []string{"op"})

	ServerCartMirrorFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_server_cart_mirror_failed_total",
		Help: "Total number of best-effort server cart calls that failed",
	}, []string{"op"})

	PersistFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_persist_failed_total",
		Help: "Total number of failed persistent store writes",
	}, []string{"key"})

	CheckoutAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_checkout_attempts_total",
		Help: "Total number of checkout submissions sent to the backend",
	})

	CheckoutOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_outcomes_total",
		Help: "Checkout outcomes by result",
	}, []string{"result"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_latency_seconds",
		Help:    "Latency of checkout submissions",
		Buckets: prometheus.DefBuckets,
	})

	SessionEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_session_events_total",
		Help: "Session lifecycle events",
	}, []string{"event"})

	CatalogModeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_catalog_offline_demo",
		Help: "1 while the catalog is served from demo data",
	})

	ActivityEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_activity_events_total",
		Help: "Activity events by type and outcome",
	}, []string{"type", "outcome"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_api_request_duration_seconds",
		Help:    "Latency of backend API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_requests_total",
		Help: "Total number of backend API requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
