package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "db_query_duration_seconds",
		Help:      "MongoDB operation latency by collection and operation.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"collection", "operation", "outcome"})

	feedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "feed_events_total",
		Help:      "Change events pushed to live feeds by collection and type.",
	}, []string{"collection", "type"})

	openFeeds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dispatch",
		Name:      "feed_subscriptions",
		Help:      "Open live feed subscriptions by collection.",
	}, []string{"collection"})
)

// ObserveQuery records the duration of one database operation started at start
func ObserveQuery(collection, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queryDuration.WithLabelValues(collection, operation, outcome).Observe(time.Since(start).Seconds())
}

// FeedEventSent counts one change event written to a feed
func FeedEventSent(collection, eventType string) {
	feedEvents.WithLabelValues(collection, eventType).Inc()
}

// FeedOpened tracks a new feed subscription and returns the func closing it
func FeedOpened(collection string) func() {
	g := openFeeds.WithLabelValues(collection)
	g.Inc()
	return g.Dec
}
