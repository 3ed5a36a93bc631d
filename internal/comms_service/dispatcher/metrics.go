package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comms",
			Name:      "deliveries_total",
			Help:      "Total delivery attempts by channel and outcome.",
		},
		[]string{"channel", "status"}, // status: "sent", "failed", "skipped"
	)

	channelSendDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "comms",
			Name:      "channel_send_duration_seconds",
			Help:      "Duration of individual channel send calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	dispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "comms",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of full dispatch runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)
