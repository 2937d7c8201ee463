package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skypro1111/stt-stream-service/internal/audio"
	"github.com/skypro1111/stt-stream-service/internal/metrics"
	"github.com/skypro1111/stt-stream-service/internal/transcription"
	"github.com/skypro1111/stt-stream-service/internal/vad"
	"github.com/skypro1111/stt-stream-service/internal/worker"
)

// State is the session's position in the utterance lifecycle
type State int

const (
	// StateIdle means no speech is buffered
	StateIdle State = iota
	// StateAccumulating means at least one speech chunk is buffered since the last flush
	StateAccumulating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Event is one transcription result delivered to the client
type Event struct {
	Text  string
	Final bool
}

// Emitter writes an event to the client. It is called from a single
// goroutine per session, in the order transcriptions were requested.
type Emitter func(Event) error

// Submitter schedules a job off the caller's goroutine without blocking
type Submitter interface {
	Submit(job worker.Job) error
}

// SessionConfig holds the tuning of a session's state machine
type SessionConfig struct {
	SampleRate           int
	SilenceThreshold     float64
	SilenceChunks        int
	InterimEvery         int
	TranscriptionTimeout time.Duration
}

// DefaultSessionConfig returns the standard 16 kHz configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SampleRate:           16000,
		SilenceThreshold:     vad.DefaultThreshold,
		SilenceChunks:        4,
		InterimEvery:         3,
		TranscriptionTimeout: 60 * time.Second,
	}
}

// Validate validates the session configuration
func (c *SessionConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}

	if c.SilenceChunks < 1 {
		return fmt.Errorf("silence chunks must be at least 1, got %d", c.SilenceChunks)
	}

	if c.InterimEvery < 1 {
		return fmt.Errorf("interim interval must be at least 1, got %d", c.InterimEvery)
	}

	if c.TranscriptionTimeout <= 0 {
		return fmt.Errorf("transcription timeout must be positive")
	}

	return nil
}

// Session is the transcription state machine for one client connection.
// HandleChunk and EndStream may be called from the connection's read loop
// while transcriptions run on the pool; neither blocks on the engine.
type Session struct {
	ID         string
	RemoteAddr string
	StartTime  time.Time

	config     SessionConfig
	classifier *vad.Classifier
	buffer     *audio.Buffer
	state      State

	engine transcription.Engine
	pool   Submitter
	emit   Emitter

	queue      *orderedQueue
	writerDone chan struct{}
	closeOnce  sync.Once
	closed     bool

	logger  *slog.Logger
	metrics *metrics.Metrics

	// Statistics guarded by mu
	lastActivity    time.Time
	chunksReceived  uint64
	silentChunks    uint64
	nonSilentChunks uint64
	droppedChunks   uint64
	interimRequests uint64
	finalRequests   uint64

	// Statistics updated off the read loop
	interimEvents       atomic.Uint64
	finalEvents         atomic.Uint64
	transcriptionErrors atomic.Uint64
	writeErrors         atomic.Uint64

	mu sync.Mutex
}

// SessionInfo represents session information for monitoring and APIs
type SessionInfo struct {
	ID              string        `json:"id"`
	RemoteAddr      string        `json:"remote_addr"`
	State           string        `json:"state"`
	StartTime       time.Time     `json:"start_time"`
	LastActivity    time.Time     `json:"last_activity"`
	Duration        time.Duration `json:"duration"`
	ChunksReceived  uint64        `json:"chunks_received"`
	SilentChunks    uint64        `json:"silent_chunks"`
	NonSilentChunks uint64        `json:"non_silent_chunks"`
	DroppedChunks   uint64        `json:"dropped_chunks"`
	BufferedChunks  int           `json:"buffered_chunks"`
	BufferedSeconds float64       `json:"buffered_seconds"`
	SilenceRun      int           `json:"silence_run"`

	// Transcription statistics
	InterimRequests     uint64 `json:"interim_requests"`
	FinalRequests       uint64 `json:"final_requests"`
	PendingEvents       int    `json:"pending_events"`
	InterimEvents       uint64 `json:"interim_events"`
	FinalEvents         uint64 `json:"final_events"`
	TranscriptionErrors uint64 `json:"transcription_errors"`
	WriteErrors         uint64 `json:"write_errors"`
}

// NewSession creates a session in the idle state and starts its writer
func NewSession(id, remoteAddr string, cfg SessionConfig, engine transcription.Engine, pool Submitter, emit Emitter, logger *slog.Logger, m *metrics.Metrics) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	if engine == nil {
		return nil, fmt.Errorf("transcription engine cannot be nil")
	}

	if pool == nil {
		return nil, fmt.Errorf("worker pool cannot be nil")
	}

	if emit == nil {
		return nil, fmt.Errorf("emitter cannot be nil")
	}

	classifier, err := vad.NewClassifier(cfg.SilenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create silence classifier: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	s := &Session{
		ID:           id,
		RemoteAddr:   remoteAddr,
		StartTime:    now,
		config:       cfg,
		classifier:   classifier,
		buffer:       audio.NewBuffer(),
		state:        StateIdle,
		engine:       engine,
		pool:         pool,
		emit:         emit,
		queue:        newOrderedQueue(),
		writerDone:   make(chan struct{}),
		logger:       logger.With(slog.String("session_id", id)),
		metrics:      m,
		lastActivity: now,
	}

	go func() {
		defer close(s.writerDone)
		s.queue.run(s.deliver)
	}()

	return s, nil
}

// HandleChunk feeds one audio chunk through the state machine
func (s *Session) HandleChunk(chunk audio.Chunk) {
	if chunk.SampleRate <= 0 {
		chunk.SampleRate = s.config.SampleRate
	}

	verdict := s.classifier.Classify(chunk.Samples)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.lastActivity = time.Now()
	s.chunksReceived++

	if verdict == vad.Silent {
		s.silentChunks++
		s.metrics.RecordChunk(true)

		run := s.buffer.RecordSilence()
		if run < s.config.SilenceChunks || s.buffer.IsEmpty() {
			return
		}

		s.finalizeLocked("silence")
		return
	}

	s.nonSilentChunks++
	s.metrics.RecordChunk(false)

	// An utterance is single-rate; a chunk at another rate cannot be concatenated
	if !s.buffer.IsEmpty() && chunk.SampleRate != s.buffer.SampleRate() {
		s.droppedChunks++
		s.metrics.RecordChunkDropped()
		s.logger.Warn("Dropping chunk with mismatched sample rate",
			slog.Int("chunk_rate", chunk.SampleRate),
			slog.Int("utterance_rate", s.buffer.SampleRate()),
		)
		return
	}

	s.buffer.ResetSilence()
	s.buffer.Append(chunk)
	s.state = StateAccumulating

	if count := s.buffer.NonSilentCount(); count%s.config.InterimEvery == 0 {
		s.interimRequests++
		s.logger.Debug("Requesting interim transcription",
			slog.Int("chunks", count),
			slog.Duration("audio", s.buffer.Duration()),
		)
		s.submitLocked(s.buffer.Snapshot(), s.buffer.SampleRate(), false)
	}
}

// EndStream finalizes any buffered speech and returns the session to idle
func (s *Session) EndStream() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.lastActivity = time.Now()

	if !s.buffer.IsEmpty() {
		s.finalizeLocked("end_stream")
		return
	}

	s.buffer.ResetSilence()
	s.state = StateIdle
}

// finalizeLocked flushes the utterance and requests its final transcription
func (s *Session) finalizeLocked(reason string) {
	rate := s.buffer.SampleRate()
	duration := s.buffer.Duration()
	samples := s.buffer.Flush()

	s.finalRequests++
	s.logger.Debug("Requesting final transcription",
		slog.String("reason", reason),
		slog.Duration("audio", duration),
	)

	s.submitLocked(samples, rate, true)
	s.buffer.ResetSilence()
	s.state = StateIdle
}

// submitLocked reserves the next output slot and schedules the engine call.
// Any failure completes the slot with ErrorText so delivery order holds.
func (s *Session) submitLocked(samples []float32, sampleRate int, final bool) {
	slot := s.queue.reserve(final)
	timeout := s.config.TranscriptionTimeout

	job := func() {
		text := transcription.ErrorText
		defer func() { slot.complete(text) }()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := s.engine.Transcribe(ctx, samples, sampleRate)
		if err != nil {
			s.transcriptionErrors.Add(1)
			s.logger.Error("Transcription failed",
				slog.Bool("final", final),
				slog.Int("samples", len(samples)),
				slog.String("error", err.Error()),
			)
			return
		}

		text = result
	}

	if err := s.pool.Submit(job); err != nil {
		s.transcriptionErrors.Add(1)
		s.logger.Error("Failed to schedule transcription",
			slog.Bool("final", final),
			slog.String("error", err.Error()),
		)
		slot.complete(transcription.ErrorText)
	}
}

// deliver runs on the writer goroutine
func (s *Session) deliver(event Event) {
	if err := s.emit(event); err != nil {
		s.writeErrors.Add(1)
		s.metrics.RecordWriteError()
		s.logger.Warn("Failed to write transcription event",
			slog.Bool("final", event.Final),
			slog.String("error", err.Error()),
		)
		return
	}

	if event.Final {
		s.finalEvents.Add(1)
	} else {
		s.interimEvents.Add(1)
	}
	s.metrics.RecordEvent(event.Final)
}

// Touch records client activity that carries no audio
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the last client message
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops delivering events. Transcriptions already running are left
// to finish and their results are dropped. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.queue.stop()
		<-s.writerDone

		info := s.Info()
		s.logger.Info("Session closed",
			slog.Duration("duration", info.Duration),
			slog.Uint64("chunks_received", info.ChunksReceived),
			slog.Uint64("interim_events", info.InterimEvents),
			slog.Uint64("final_events", info.FinalEvents),
			slog.Int("discarded_events", info.PendingEvents),
		)
	})
}

// Info returns a snapshot of the session for monitoring
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.buffer.GetStats()

	return SessionInfo{
		ID:                  s.ID,
		RemoteAddr:          s.RemoteAddr,
		State:               s.state.String(),
		StartTime:           s.StartTime,
		LastActivity:        s.lastActivity,
		Duration:            time.Since(s.StartTime),
		ChunksReceived:      s.chunksReceived,
		SilentChunks:        s.silentChunks,
		NonSilentChunks:     s.nonSilentChunks,
		DroppedChunks:       s.droppedChunks,
		BufferedChunks:      stats.BufferedChunks,
		BufferedSeconds:     stats.BufferedSeconds,
		SilenceRun:          stats.SilenceRun,
		InterimRequests:     s.interimRequests,
		FinalRequests:       s.finalRequests,
		PendingEvents:       s.queue.pending(),
		InterimEvents:       s.interimEvents.Load(),
		FinalEvents:         s.finalEvents.Load(),
		TranscriptionErrors: s.transcriptionErrors.Load(),
		WriteErrors:         s.writeErrors.Load(),
	}
}
