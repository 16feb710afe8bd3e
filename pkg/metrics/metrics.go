// Package metrics provides Prometheus instrumentation for the binlog
// writer and receipt channel subsystems. Every method is a no-op on a nil
// receiver, so callers that don't want metrics pass a nil *Binlog/*Receipt
// instead of threading an "enabled" flag through every constructor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Binlog holds the writer-engine metrics: rotations, flush latency/bytes,
// and ring repush events.
type Binlog struct {
	rotationsTotal  *prometheus.CounterVec
	flushTotal      *prometheus.CounterVec
	flushDuration   *prometheus.HistogramVec
	flushBytes      *prometheus.HistogramVec
	repushTotal     *prometheus.CounterVec
	segmentSize     *prometheus.GaugeVec
	writeErrorTotal *prometheus.CounterVec
}

// NewBinlog creates and registers writer-engine metrics against registry.
// If registry is nil, the metrics are created but never registered, which
// is convenient for tests that want live counters without a global
// default-registry side effect.
func NewBinlog(registry prometheus.Registerer) *Binlog {
	m := &Binlog{
		rotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "binlogkit",
				Subsystem: "writer",
				Name:      "rotations_total",
				Help:      "Total number of segment rotations.",
			},
			[]string{"dir"},
		),
		flushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "binlogkit",
				Subsystem: "writer",
				Name:      "flush_total",
				Help:      "Total number of buffer flushes (write+fsync).",
			},
			[]string{"dir"},
		),
		flushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "binlogkit",
				Subsystem: "writer",
				Name:      "flush_duration_seconds",
				Help:      "Time spent in one write+fsync flush.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"dir"},
		),
		flushBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "binlogkit",
				Subsystem: "writer",
				Name:      "flush_bytes",
				Help:      "Size of one flushed buffer, in bytes.",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
			},
			[]string{"dir"},
		),
		repushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "binlogkit",
				Subsystem: "ring",
				Name:      "repush_total",
				Help:      "Total number of version-ordered records repushed because they fell outside the ring window.",
			},
			[]string{"dir"},
		),
		segmentSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "binlogkit",
				Subsystem: "writer",
				Name:      "segment_size_bytes",
				Help:      "Current size of the writer's open segment file.",
			},
			[]string{"dir"},
		),
		writeErrorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "binlogkit",
				Subsystem: "writer",
				Name:      "write_error_total",
				Help:      "Total number of fatal disk write/fsync/open failures.",
			},
			[]string{"dir"},
		),
	}
	if registry != nil {
		registry.MustRegister(
			m.rotationsTotal, m.flushTotal, m.flushDuration,
			m.flushBytes, m.repushTotal, m.segmentSize, m.writeErrorTotal,
		)
	}
	return m
}

// ObserveRotation records a segment rotation for dir.
func (m *Binlog) ObserveRotation(dir string) {
	if m == nil {
		return
	}
	m.rotationsTotal.WithLabelValues(dir).Inc()
}

// ObserveFlush records one write+fsync flush of n bytes taking d.
func (m *Binlog) ObserveFlush(dir string, n int, d time.Duration) {
	if m == nil {
		return
	}
	m.flushTotal.WithLabelValues(dir).Inc()
	m.flushDuration.WithLabelValues(dir).Observe(d.Seconds())
	m.flushBytes.WithLabelValues(dir).Observe(float64(n))
}

// ObserveRepush records a version-ordered record falling outside the ring
// window and being repushed to the producer queue.
func (m *Binlog) ObserveRepush(dir string) {
	if m == nil {
		return
	}
	m.repushTotal.WithLabelValues(dir).Inc()
}

// SetSegmentSize records the current size of dir's open segment.
func (m *Binlog) SetSegmentSize(dir string, bytes int64) {
	if m == nil {
		return
	}
	m.segmentSize.WithLabelValues(dir).Set(float64(bytes))
}

// ObserveWriteError records a fatal disk I/O failure for dir.
func (m *Binlog) ObserveWriteError(dir string) {
	if m == nil {
		return
	}
	m.writeErrorTotal.WithLabelValues(dir).Inc()
}

// Receipt holds the receipt-channel metrics: batch sizes, round-trip
// latency, reconnects, established-channel count, and heartbeats.
type Receipt struct {
	batchSize        prometheus.Histogram
	roundTripSeconds prometheus.Histogram
	reconnectsTotal  prometheus.Counter
	establishedGauge prometheus.Gauge
	heartbeatsTotal  prometheus.Counter
}

// NewReceipt creates and registers receipt-channel metrics against registry.
func NewReceipt(registry prometheus.Registerer) *Receipt {
	m := &Receipt{
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "binlogkit",
				Subsystem: "receipt",
				Name:      "batch_size",
				Help:      "Number of req_ids in one REPORT_REQ_RECEIPT_REQ batch.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		roundTripSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "binlogkit",
				Subsystem: "receipt",
				Name:      "round_trip_seconds",
				Help:      "Time from sending a batch to its RESP being handled.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		reconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "binlogkit",
				Subsystem: "receipt",
				Name:      "reconnects_total",
				Help:      "Total number of channel re-establishments after cleanup.",
			},
		),
		establishedGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "binlogkit",
				Subsystem: "receipt",
				Name:      "channels_established",
				Help:      "Number of currently established receipt channels.",
			},
		),
		heartbeatsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "binlogkit",
				Subsystem: "receipt",
				Name:      "heartbeats_total",
				Help:      "Total number of PING_REQ heartbeats sent to idle channels.",
			},
		),
	}
	if registry != nil {
		registry.MustRegister(
			m.batchSize, m.roundTripSeconds, m.reconnectsTotal,
			m.establishedGauge, m.heartbeatsTotal,
		)
	}
	return m
}

// ObserveBatch records a sent batch's size.
func (m *Receipt) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}

// ObserveRoundTrip records the latency between sending a batch and handling
// its response.
func (m *Receipt) ObserveRoundTrip(d time.Duration) {
	if m == nil {
		return
	}
	m.roundTripSeconds.Observe(d.Seconds())
}

// ObserveReconnect records a channel re-establishing after cleanup.
func (m *Receipt) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

// SetEstablished sets the current count of established channels.
func (m *Receipt) SetEstablished(n int) {
	if m == nil {
		return
	}
	m.establishedGauge.Set(float64(n))
}

// ObserveHeartbeat records a PING_REQ sent to an idle channel.
func (m *Receipt) ObserveHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeatsTotal.Inc()
}
