package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "searches_total", Help: "Total number of ride searches"})
	RequestsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "ride_requests_created_total", Help: "Total number of seat requests created"})
	RequestsAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "ride_requests_accepted_total", Help: "Total number of seat requests accepted"})
	SeatConflicts    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "seat_conflicts_total", Help: "Accepts lost to the conditional seat decrement"})

	SearchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carpool",
		Name:      "search_latency_seconds",
		Help:      "Search latency distribution",
		Buckets:   prometheus.DefBuckets,
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
