package miktos

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "miktos_client",
			Name:      "requests_total",
			Help:      "API requests by operation and response status code (0 for transport errors).",
		},
		[]string{"operation", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "miktos_client",
			Name:      "request_duration_seconds",
			Help:      "Time until response headers were received.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	streamChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "miktos_client",
			Name:      "stream_chunks_total",
			Help:      "Text chunks delivered by streaming generations.",
		},
	)
)

func observeRequest(op string, code int, d time.Duration) {
	requestsTotal.WithLabelValues(op, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(op).Observe(d.Seconds())
}
