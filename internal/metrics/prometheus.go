package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the speech-to-text service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsRejected prometheus.Counter
	SessionsClosed   prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Inbound audio metrics
	ChunksReceived *prometheus.CounterVec
	DecodeErrors   prometheus.Counter
	ChunksDropped  prometheus.Counter

	// Outbound event metrics
	EventsEmitted *prometheus.CounterVec
	WriteErrors   prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	UtteranceDuration      prometheus.Histogram

	// Worker pool metrics
	PoolQueueSize  prometheus.Gauge
	PoolRejections prometheus.Counter

	// Batch upload metrics
	Uploads *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stt_active_sessions",
			Help: "Current number of open streaming sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_created_total",
			Help: "Total number of streaming sessions created",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_rejected_total",
			Help: "Total number of connections rejected by the session limit",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_closed_total",
			Help: "Total number of streaming sessions closed",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_session_duration_seconds",
			Help:    "Lifetime of streaming sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		ChunksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_chunks_received_total",
			Help: "Total number of audio chunks received, by silence verdict",
		}, []string{"verdict"}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_decode_errors_total",
			Help: "Total number of inbound messages dropped as undecodable",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_chunks_dropped_total",
			Help: "Total number of chunks dropped for a sample rate mismatch",
		}),

		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_events_emitted_total",
			Help: "Total number of transcription events written to clients",
		}, []string{"kind"}),
		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_write_errors_total",
			Help: "Total number of failed writes to client connections",
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_requests_total",
			Help: "Total number of transcription requests sent to the engine",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		UtteranceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_utterance_duration_seconds",
			Help:    "Length of audio submitted for transcription",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),

		PoolQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stt_worker_queue_size",
			Help: "Current number of transcription jobs waiting for a worker",
		}),
		PoolRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_worker_rejections_total",
			Help: "Total number of transcription jobs rejected by a full queue",
		}),

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_uploads_total",
			Help: "Total number of batch uploads, by outcome",
		}, []string{"outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// SetActiveSessions sets the current number of open sessions
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// RecordSessionRejected increments the rejected sessions counter
func (m *Metrics) RecordSessionRejected() {
	if m == nil {
		return
	}
	m.SessionsRejected.Inc()
}

// RecordSessionClosed increments the sessions closed counter and records duration
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunk counts one inbound chunk by its silence verdict
func (m *Metrics) RecordChunk(silent bool) {
	if m == nil {
		return
	}
	verdict := "non_silent"
	if silent {
		verdict = "silent"
	}
	m.ChunksReceived.WithLabelValues(verdict).Inc()
}

func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) RecordChunkDropped() {
	if m == nil {
		return
	}
	m.ChunksDropped.Inc()
}

// RecordEvent counts one transcription event written to a client
func (m *Metrics) RecordEvent(final bool) {
	if m == nil {
		return
	}
	kind := "interim"
	if final {
		kind = "final"
	}
	m.EventsEmitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordWriteError() {
	if m == nil {
		return
	}
	m.WriteErrors.Inc()
}

// RecordTranscriptionRequest increments transcription requests counter and
// observes the submitted audio length
func (m *Metrics) RecordTranscriptionRequest(audioSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
	m.UtteranceDuration.Observe(audioSeconds)
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// SetPoolQueueSize sets the number of queued transcription jobs
func (m *Metrics) SetPoolQueueSize(size int) {
	if m == nil {
		return
	}
	m.PoolQueueSize.Set(float64(size))
}

func (m *Metrics) RecordPoolRejection() {
	if m == nil {
		return
	}
	m.PoolRejections.Inc()
}

// RecordUpload counts a batch upload by outcome (success, invalid, error)
func (m *Metrics) RecordUpload(outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
