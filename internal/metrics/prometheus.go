// Package metrics defines the Prometheus metric set for the capture and
// transcription pipeline, exposed on the monitoring HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the pipeline. A nil *Metrics
// is valid and records nothing, so tests can run components unmetered.
type Metrics struct {
	// Capture metrics
	ChunksProduced prometheus.Counter
	ChunkDuration  prometheus.Histogram
	ChunkBytes     prometheus.Histogram
	QueueDepth     prometheus.Gauge

	// Transcription metrics
	DrainsRun         prometheus.Counter
	ChunksTranscribed prometheus.Counter
	ChunkFailures     prometheus.Counter
	SegmentsEmitted   prometheus.Counter
	SegmentsFiltered  prometheus.Counter
	InferenceDuration prometheus.Histogram

	// Model download metrics
	DownloadBytes prometheus.Counter

	// Session metrics
	StateTransitions *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all pipeline metrics.
func New() *Metrics {
	return &Metrics{
		ChunksProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_chunks_produced_total",
			Help: "Total number of audio chunks emitted by the capture engine",
		}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_chunk_duration_seconds",
			Help:    "Duration of emitted audio chunks in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		ChunkBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_chunk_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(32*1024, 2, 10),
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_chunk_queue_depth",
			Help: "Current number of chunks pending transcription",
		}),
		DrainsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_drains_run_total",
			Help: "Total number of queue drains executed",
		}),
		ChunksTranscribed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_chunks_transcribed_total",
			Help: "Total number of chunks successfully run through inference",
		}),
		ChunkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_chunk_failures_total",
			Help: "Total number of chunks discarded due to processing errors",
		}),
		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_segments_emitted_total",
			Help: "Total number of transcript segments emitted to the sink",
		}),
		SegmentsFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_segments_filtered_total",
			Help: "Total number of non-speech segments discarded",
		}),
		InferenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_inference_duration_seconds",
			Help:    "Wall-clock duration of model inference per chunk",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		DownloadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_model_download_bytes_total",
			Help: "Total bytes downloaded for model files",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_state_transitions_total",
			Help: "Recording session state transitions by target state",
		}, []string{"state"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_http_requests_total",
			Help: "HTTP API requests by method, endpoint, and status code",
		}, []string{"method", "endpoint", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chronicle_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordChunkProduced records one emitted capture chunk.
func (m *Metrics) RecordChunkProduced(durationSeconds float64, bytes int) {
	if m == nil {
		return
	}
	m.ChunksProduced.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkBytes.Observe(float64(bytes))
}

// SetQueueDepth sets the pending chunk gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// RecordDrain records one executed queue drain.
func (m *Metrics) RecordDrain() {
	if m == nil {
		return
	}
	m.DrainsRun.Inc()
}

// RecordChunkTranscribed records a successful inference pass.
func (m *Metrics) RecordChunkTranscribed(inferenceSeconds float64) {
	if m == nil {
		return
	}
	m.ChunksTranscribed.Inc()
	m.InferenceDuration.Observe(inferenceSeconds)
}

// RecordChunkFailure records a discarded chunk.
func (m *Metrics) RecordChunkFailure() {
	if m == nil {
		return
	}
	m.ChunkFailures.Inc()
}

// RecordSegment records one segment kept or filtered.
func (m *Metrics) RecordSegment(filtered bool) {
	if m == nil {
		return
	}
	if filtered {
		m.SegmentsFiltered.Inc()
	} else {
		m.SegmentsEmitted.Inc()
	}
}

// RecordDownloadBytes accumulates model download volume.
func (m *Metrics) RecordDownloadBytes(n int64) {
	if m == nil {
		return
	}
	m.DownloadBytes.Add(float64(n))
}

// RecordHTTPRequest records one completed HTTP API request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordStateTransition counts a session state change.
func (m *Metrics) RecordStateTransition(state string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(state).Inc()
}
