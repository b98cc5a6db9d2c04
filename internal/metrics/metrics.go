// Package metrics holds the process counters served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Name:      "poll_ticks_total",
		Help:      "Dashboard refresh batches started.",
	}, []string{"dashboard"})

	BatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Name:      "batch_failures_total",
		Help:      "Refresh batches discarded because one fetch failed.",
	}, []string{"dashboard"})

	NoticeAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "campus",
		Name:      "notice_alerts_total",
		Help:      "New notices surfaced to the user.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Name:      "notifications_total",
		Help:      "System notifications by outcome (sent, skipped, failed).",
	}, []string{"result"})

	APIRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campus",
		Name:      "api_request_duration_seconds",
		Help:      "Backend call latency by method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "code"})
)
