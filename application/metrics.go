package application

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "nomad",
		Subsystem: "request",
		Name:      "duration_seconds",
		Help:      "The time taken to complete requests to application instances.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	},
	[]string{"operation", "outcome"},
)

func observeRequest(op, outcome string, d time.Duration) {
	requestDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}
