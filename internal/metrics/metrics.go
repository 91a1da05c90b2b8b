// Package metrics exposes Prometheus collectors for MediaHost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors registered by the server. Construct one per
// process with New and pass it by reference to the components that record.
type Metrics struct {
	// ActiveStreams tracks the number of upload streams currently open.
	ActiveStreams prometheus.Gauge

	// BytesReceived counts upload payload bytes accepted by streams.
	BytesReceived prometheus.Counter

	// ChunksFlushed counts chunk rows persisted to storage.
	ChunksFlushed prometheus.Counter

	// StreamsExpired counts streams reclaimed by the expiry timer.
	StreamsExpired prometheus.Counter

	// StreamsFinished counts streams completed by the client.
	StreamsFinished prometheus.Counter

	// AuthFailures counts authorization failures by credential scheme.
	AuthFailures *prometheus.CounterVec

	// RequestDuration observes handler latency by route and status.
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediahost",
			Subsystem: "upload",
			Name:      "active_streams",
			Help:      "Number of upload streams currently open.",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediahost",
			Subsystem: "upload",
			Name:      "bytes_received_total",
			Help:      "Total upload payload bytes accepted.",
		}),
		ChunksFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediahost",
			Subsystem: "upload",
			Name:      "chunks_flushed_total",
			Help:      "Total chunk rows persisted.",
		}),
		StreamsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediahost",
			Subsystem: "upload",
			Name:      "streams_expired_total",
			Help:      "Total upload streams reclaimed by the expiry timer.",
		}),
		StreamsFinished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediahost",
			Subsystem: "upload",
			Name:      "streams_finished_total",
			Help:      "Total upload streams completed by the client.",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediahost",
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Authorization failures by credential scheme.",
		}, []string{"scheme"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediahost",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Handler latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
