package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nomad",
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "The number of property change notifications, by outcome.",
		},
		[]string{"outcome"},
	)

	deliveredEvents = events.WithLabelValues("delivered")
	droppedEvents   = events.WithLabelValues("dropped")
	failedEvents    = events.WithLabelValues("failed")
)
