package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	Checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment provider callbacks by outcome",
		},
		[]string{"outcome"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_events_dropped_total",
			Help: "Domain events dropped before reaching the broker",
		},
		[]string{"topic", "reason"},
	)

	Shortfalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_stock_short_total",
			Help: "Approved settlements rolled back for insufficient stock",
		},
	)

	ShortfallsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_shortfalls_recorded_total",
			Help: "Shortfall events persisted for ops follow-up",
		},
	)
)
