package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsSent tracks the total number of reminder emails delivered
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_service_notifications_sent_total",
			Help: "Total number of reminder emails delivered",
		},
		[]string{"profile", "status"},
	)

	// JobDuration tracks delivery job duration
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expiry_service_job_duration_seconds",
			Help:    "Delivery job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// QueueSize tracks the current delivery queue size
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "expiry_service_queue_size",
			Help: "Current number of scheduled delivery tasks",
		},
	)

	// JobRejections tracks job starts refused by the concurrency guard
	JobRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_service_job_rejections_total",
			Help: "Total number of job starts refused because a job was already running",
		},
	)

	// GraphThrottleEvents tracks Microsoft Graph 429 responses
	GraphThrottleEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_service_graph_throttle_total",
			Help: "Total number of Microsoft Graph throttling responses honored",
		},
	)

	// GraphRequests tracks Microsoft Graph requests by outcome
	GraphRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_service_graph_requests_total",
			Help: "Total number of Microsoft Graph requests",
		},
		[]string{"outcome"},
	)

	// RateLimitExceeded tracks API rate limit rejections
	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_service_rate_limit_exceeded_total",
			Help: "Total number of API requests rejected by the rate limiter",
		},
	)
)
