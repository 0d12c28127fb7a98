package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "lens"
	subsystem = "client"
)

// ClientMetrics tracks the capture client's own behavior: records moving
// through the queue, batches reaching (or failing to reach) the ingest
// endpoint, and current queue depth.
//
// All recording methods are safe on a nil receiver, which is how a client
// without metrics operates.
type ClientMetrics struct {
	recordsCaptured prometheus.Counter
	recordsDropped  prometheus.Counter
	recordsSent     prometheus.Counter
	batchesSent     prometheus.Counter
	batchesDropped  prometheus.Counter
	sendDuration    prometheus.Histogram
	queueDepth      prometheus.Gauge
}

// New creates client metrics and registers them with the provided registerer.
// A nil registerer falls back to the default Prometheus registerer.
func New(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &ClientMetrics{
		recordsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_captured_total",
			Help:      "Total number of telemetry records accepted into the queue",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_dropped_total",
			Help:      "Total number of records evicted because the queue was full",
		}),
		recordsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_sent_total",
			Help:      "Total number of records delivered to the ingest endpoint",
		}),
		batchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_sent_total",
			Help:      "Total number of batches delivered to the ingest endpoint",
		}),
		batchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_dropped_total",
			Help:      "Total number of batches dropped after exhausting retries",
		}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Help:      "Duration of successful batch submissions",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Current number of records waiting in the capture queue",
		}),
	}

	reg.MustRegister(
		m.recordsCaptured,
		m.recordsDropped,
		m.recordsSent,
		m.batchesSent,
		m.batchesDropped,
		m.sendDuration,
		m.queueDepth,
	)

	return m
}

// RecordCaptured counts one record accepted into the queue.
func (m *ClientMetrics) RecordCaptured() {
	if m == nil {
		return
	}
	m.recordsCaptured.Inc()
}

// RecordDropped counts one record evicted by the overflow policy.
func (m *ClientMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.recordsDropped.Inc()
}

// RecordBatchSent counts a delivered batch of n records and observes the
// submission duration.
func (m *ClientMetrics) RecordBatchSent(n int, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchesSent.Inc()
	m.recordsSent.Add(float64(n))
	m.sendDuration.Observe(duration.Seconds())
}

// RecordBatchDropped counts a batch abandoned after retry exhaustion.
func (m *ClientMetrics) RecordBatchDropped() {
	if m == nil {
		return
	}
	m.batchesDropped.Inc()
}

// SetQueueDepth records the current queue length.
func (m *ClientMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Handler returns an HTTP handler exposing the registry in the Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
