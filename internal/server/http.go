package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/stt-stream-service/internal/config"
	"github.com/skypro1111/stt-stream-service/internal/metrics"
	"github.com/skypro1111/stt-stream-service/internal/storage"
	"github.com/skypro1111/stt-stream-service/internal/stream"
	"github.com/skypro1111/stt-stream-service/internal/transcription"
	"github.com/skypro1111/stt-stream-service/internal/worker"
)

const (
	serviceName    = "stt-stream-service"
	serviceVersion = "1.0.0"
)

// Dependencies are the shared components the HTTP server exposes
type Dependencies struct {
	Sessions *stream.Manager
	Engine   *transcription.Shared
	Pool     *worker.Pool
	Store    storage.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil uses the default registry
}

// HTTPServer serves the websocket endpoint, batch uploads and the
// monitoring API
type HTTPServer struct {
	server *http.Server
	router chi.Router
	logger *slog.Logger
	config *config.Config

	sessions *stream.Manager
	engine   *transcription.Shared
	pool     *worker.Pool
	store    storage.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	ws       *WSHandler

	startTime time.Time
}

// NewHTTPServer creates the HTTP server and its routes
func NewHTTPServer(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if deps.Sessions == nil || deps.Engine == nil || deps.Store == nil {
		return nil, fmt.Errorf("sessions, engine and store are required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		sessions:  deps.Sessions,
		engine:    deps.Engine,
		pool:      deps.Pool,
		store:     deps.Store,
		metrics:   deps.Metrics,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	h.ws = NewWSHandler(deps.Sessions, WSConfig{
		ReadLimit:    cfg.Server.ReadLimit,
		PingInterval: cfg.Server.GetPingIntervalDuration(),
		PongWait:     cfg.Server.GetPongWaitDuration(),
		WriteTimeout: cfg.Server.GetWriteTimeoutDuration(),
	}, logger, deps.Metrics)

	h.router = h.setupRoutes()

	// No read/write timeouts: websocket connections are long lived and
	// manage their own deadlines
	h.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port),
		Handler:           h.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return h, nil
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// The upgrade needs the raw ResponseWriter, so no metrics wrapper here
	r.Get("/ws/transcribe/", h.ws.ServeHTTP)

	// Batch interface
	r.HandleFunc("/api/upload-audio/", h.withMetrics("/api/upload-audio/", h.handleUpload))
	r.Get("/api/transcriptions/{id}", h.withMetrics("/api/transcriptions/{id}", h.handleGetTranscription))

	// Monitoring
	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/streams", h.withMetrics("/streams", h.handleStreams))
	r.Get("/streams/{id}", h.withMetrics("/streams/{id}", h.handleStreamDetail))
	r.Get("/config", h.withMetrics("/config", h.handleConfig))
	r.Get("/stats", h.withMetrics("/stats", h.handleStats))
	r.Get("/stats/transcription", h.withMetrics("/stats/transcription", h.handleTranscriptionStats))

	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Get("/", h.withMetrics("/", h.handleRoot))

	return r
}

// Handler returns the routed handler, for embedding and tests
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server. Hijacked websocket connections
// are not tracked by Shutdown; the session manager closes them.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	engineStats := h.engine.GetStats()

	status := "healthy"
	engineStatus := "running"
	if engineStats.InitError != "" {
		status = "degraded"
		engineStatus = "failed"
	} else if !engineStats.Initialized {
		engineStatus = "not_loaded"
	}

	components := map[string]interface{}{
		"session_manager": map[string]interface{}{
			"status":          "running",
			"active_sessions": h.sessions.GetActiveSessionCount(),
		},
		"transcription": map[string]interface{}{
			"status":          engineStatus,
			"total_requests":  engineStats.TotalRequests,
			"success_rate":    engineStats.SuccessRate,
			"active_requests": engineStats.ActiveRequests,
		},
	}

	if h.pool != nil {
		poolStats := h.pool.GetStats()
		components["worker_pool"] = map[string]interface{}{
			"status":   "running",
			"workers":  poolStats.Workers,
			"queued":   poolStats.Queued,
			"capacity": poolStats.Capacity,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": components,
	})
}

// handleStreams implements the /streams endpoint
func (h *HTTPServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.GetAllSessions()
	infos := make([]stream.SessionInfo, 0, len(sessions))

	for _, session := range sessions {
		infos = append(infos, session.Info())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_streams": len(infos),
		"timestamp":     time.Now().UTC(),
		"streams":       infos,
	})
}

// handleStreamDetail implements the /streams/{id} endpoint
func (h *HTTPServer) handleStreamDetail(w http.ResponseWriter, r *http.Request) {
	session, exists := h.sessions.GetSession(chi.URLParam(r, "id"))
	if !exists {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, session.Info())
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := h.config

	// API key and storage DSN are omitted
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"port":                   c.Server.Port,
			"bind_address":           c.Server.BindAddress,
			"max_concurrent_streams": c.Server.MaxConcurrentStreams,
			"read_limit":             c.Server.ReadLimit,
			"ping_interval":          c.Server.PingInterval,
			"pong_wait":              c.Server.PongWait,
			"write_timeout":          c.Server.WriteTimeout,
		},
		"http": map[string]interface{}{
			"max_upload_bytes": c.HTTP.MaxUploadBytes,
		},
		"audio": map[string]interface{}{
			"sample_rate":    c.Audio.SampleRate,
			"stream_timeout": c.Audio.StreamTimeout,
		},
		"vad": map[string]interface{}{
			"silence_threshold": c.VAD.SilenceThreshold,
			"silence_chunks":    c.VAD.SilenceChunks,
			"interim_every":     c.VAD.InterimEvery,
		},
		"transcription": map[string]interface{}{
			"backend":        c.Transcription.Backend,
			"endpoint":       c.Transcription.Endpoint,
			"model":          c.Transcription.Model,
			"language":       c.Transcription.Language,
			"timeout":        c.Transcription.Timeout,
			"max_retries":    c.Transcription.MaxRetries,
			"max_concurrent": c.Transcription.MaxConcurrent,
			"workers":        c.Transcription.Workers,
			"queue_size":     c.Transcription.QueueSize,
		},
		"storage": map[string]interface{}{
			"driver": c.Storage.Driver,
		},
		"logging": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":        time.Since(h.startTime).String(),
		"timestamp":     time.Now().UTC(),
		"transcription": h.engine.GetStats(),
		"streams": map[string]interface{}{
			"active_count": h.sessions.GetActiveSessionCount(),
		},
	}

	if h.pool != nil {
		stats["worker_pool"] = h.pool.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleTranscriptionStats implements the /stats/transcription endpoint
func (h *HTTPServer) handleTranscriptionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.GetStats())
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Streaming Speech-to-Text Service",
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":                        "API documentation",
			"GET /ws/transcribe/":          "WebSocket streaming transcription",
			"POST /api/upload-audio/":      "Transcribe an uploaded WAV file",
			"GET /api/transcriptions/{id}": "Get a stored transcription",
			"GET /health":                  "Service health check",
			"GET /streams":                 "List all active streams",
			"GET /streams/{id}":            "Get detailed stream information",
			"GET /config":                  "Get service configuration",
			"GET /stats":                   "Get service statistics",
			"GET /stats/transcription":     "Get transcription statistics",
			"GET /metrics":                 "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
