// Package metrics holds the Prometheus collectors exposed on /_metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageviewsTotal counts pageviews handed to the recorder.
	// Labels:
	//   - class: "human", "bot"
	//   - outcome: "stored", "error"
	PageviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_pageviews_total",
			Help: "Total number of tracked pageviews",
		},
		[]string{"class", "outcome"},
	)

	// EventsTotal counts beacon events by outcome ("stored", "invalid", "error").
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_events_total",
			Help: "Total number of beacon events received",
		},
		[]string{"outcome"},
	)

	// GeoLookupsTotal counts geo lookups.
	// Labels:
	//   - source: "cache", "local", "remote", "skipped"
	//   - outcome: "hit", "miss", "error"
	GeoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_geo_lookups_total",
			Help: "Total number of geo lookups by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// GeoQueueDropped counts enrichment jobs dropped because the queue was full.
	GeoQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_geo_queue_dropped_total",
			Help: "Total number of geo enrichment jobs dropped on a full queue",
		},
	)

	// AdminLoginsTotal counts dashboard logins ("success", "rejected", "locked").
	AdminLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_admin_logins_total",
			Help: "Total number of admin login attempts",
		},
		[]string{"outcome"},
	)

	// ChatRequestsTotal counts chat messages.
	// Labels:
	//   - outcome: "command", "model", "fallback", "blocked", "rate_limited", "invalid", "busy"
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_chat_requests_total",
			Help: "Total number of Ava chat requests",
		},
		[]string{"outcome"},
	)

	// ChatProviderDuration measures model round trips.
	ChatProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_chat_provider_duration_seconds",
			Help:    "Duration of AI provider calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// HTTPRequestDuration measures tracked page responses.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "Duration of tracked HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// ObserveProvider records the duration of a provider call started at start.
func ObserveProvider(provider string, start time.Time) {
	ChatProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
