package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	natsJobsReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comms",
			Name:      "nats_jobs_received_total",
			Help:      "Total scheduled communication jobs received over NATS.",
		},
		[]string{"subject"},
	)

	communicationsSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comms",
			Name:      "communications_total",
			Help:      "Total communications by submission outcome.",
		},
		[]string{"outcome"}, // "sent", "scheduled", "error"
	)
)
