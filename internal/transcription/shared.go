package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skypro1111/stt-stream-service/internal/metrics"
)

// Shared is the process-wide engine. The underlying backend is built lazily
// on the first call, exactly once; a failed initialization is remembered
// and returned by every later call. Concurrent calls are limited to
// maxConcurrent, with 1 serializing all access to the backend.
type Shared struct {
	factory   Factory
	once      sync.Once
	engine    Engine
	initErr   error
	initDone  atomic.Bool
	semaphore chan struct{}

	logger  *slog.Logger
	metrics *metrics.Metrics

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// SharedStats represents engine statistics
type SharedStats struct {
	Initialized     bool          `json:"initialized"`
	InitError       string        `json:"init_error,omitempty"`
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
	MaxConcurrent   int           `json:"max_concurrent"`
}

// NewShared wraps factory into a lazily initialized, concurrency-limited engine
func NewShared(factory Factory, maxConcurrent int, logger *slog.Logger, m *metrics.Metrics) *Shared {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Shared{
		factory:   factory,
		semaphore: make(chan struct{}, maxConcurrent),
		logger:    logger.With(slog.String("component", "transcription")),
		metrics:   m,
	}
}

func (s *Shared) init() (Engine, error) {
	s.once.Do(func() {
		defer s.initDone.Store(true)
		start := time.Now()
		engine, err := s.factory()
		if err != nil {
			s.initErr = fmt.Errorf("failed to initialize transcription engine: %w", err)
			s.logger.Error("Transcription engine initialization failed", slog.String("error", err.Error()))
			return
		}
		s.engine = engine
		s.logger.Info("Transcription engine initialized", slog.Duration("took", time.Since(start)))
	})
	return s.engine, s.initErr
}

// Transcribe implements Engine
func (s *Shared) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	engine, err := s.init()
	if err != nil {
		return "", err
	}

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	s.mu.Lock()
	s.totalRequests++
	s.mu.Unlock()
	s.metrics.RecordTranscriptionRequest(audioSeconds(samples, sampleRate))

	start := time.Now()
	text, err := engine.Transcribe(ctx, samples, sampleRate)
	elapsed := time.Since(start)

	s.mu.Lock()
	if err != nil {
		s.failedRequests++
	} else {
		s.successRequests++
		// Simple moving average
		if s.avgResponseTime == 0 {
			s.avgResponseTime = elapsed
		} else {
			s.avgResponseTime = (s.avgResponseTime + elapsed) / 2
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.RecordTranscriptionFailure(elapsed.Seconds())
		return "", err
	}

	s.metrics.RecordTranscriptionSuccess(elapsed.Seconds())
	return text, nil
}

// GetStats returns current engine statistics
func (s *Shared) GetStats() SharedStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := float64(0)
	if s.totalRequests > 0 {
		successRate = float64(s.successRequests) / float64(s.totalRequests) * 100
	}

	stats := SharedStats{
		TotalRequests:   s.totalRequests,
		SuccessRequests: s.successRequests,
		FailedRequests:  s.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: s.avgResponseTime,
		ActiveRequests:  len(s.semaphore),
		MaxConcurrent:   cap(s.semaphore),
	}

	if s.initDone.Load() {
		stats.Initialized = s.initErr == nil
		if s.initErr != nil {
			stats.InitError = s.initErr.Error()
		}
	}

	return stats
}
