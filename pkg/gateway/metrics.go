package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "gateway",
		Name:      "decisions_total",
		Help:      "Terminal decisions partitioned by kind and stage.",
	}, []string{"kind", "stage"})

	redactionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "gateway",
		Name:      "redactions_total",
		Help:      "PII spans masked, partitioned by direction.",
	}, []string{"direction"})

	documentCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "gateway",
		Name:      "documents_screened_total",
		Help:      "Ingestion screening outcomes.",
	}, []string{"verdict"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "warden",
		Subsystem: "gateway",
		Name:      "mediate_duration_seconds",
		Help:      "End-to-end mediation latency.",
		Buckets:   prometheus.DefBuckets,
	})
)
