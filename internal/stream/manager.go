package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/stt-stream-service/internal/metrics"
	"github.com/skypro1111/stt-stream-service/internal/transcription"
)

// ErrTooManySessions is returned when the concurrent session limit is reached
var ErrTooManySessions = errors.New("too many concurrent sessions")

// ManagerConfig contains configuration for the session manager
type ManagerConfig struct {
	Session         SessionConfig
	MaxSessions     int           // 0 means unlimited
	IdleTimeout     time.Duration // sessions without client messages for this long are closed
	CleanupInterval time.Duration
}

// Manager manages all live transcription sessions
type Manager struct {
	sessions map[string]*managedSession
	mu       sync.RWMutex
	logger   *slog.Logger
	config   ManagerConfig

	engine  transcription.Engine
	pool    Submitter
	metrics *metrics.Metrics

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

type managedSession struct {
	session *Session
	closer  func() error
}

// NewManager creates a session manager sharing engine and pool across sessions
func NewManager(config ManagerConfig, engine transcription.Engine, pool Submitter, logger *slog.Logger, m *metrics.Metrics) (*Manager, error) {
	if err := config.Session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	if engine == nil {
		return nil, fmt.Errorf("transcription engine cannot be nil")
	}

	if pool == nil {
		return nil, fmt.Errorf("worker pool cannot be nil")
	}

	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions: make(map[string]*managedSession),
		logger:   logger,
		config:   config,
		engine:   engine,
		pool:     pool,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// CreateSession registers a new idle session for a client connection.
// emit writes events to the client; closer, if not nil, closes the
// underlying connection and is called when the session is removed.
func (m *Manager) CreateSession(remoteAddr string, emit Emitter, closer func() error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.metrics.RecordSessionRejected()
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	session, err := NewSession(id, remoteAddr, m.config.Session, m.engine, m.pool, emit, m.logger, m.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.sessions[id] = &managedSession{session: session, closer: closer}
	m.metrics.RecordSessionCreated()
	m.metrics.SetActiveSessions(len(m.sessions))

	m.logger.Info("Created new session",
		slog.String("session_id", id),
		slog.String("remote_addr", remoteAddr),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return session, nil
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.sessions[id]
	if !exists {
		return nil, false
	}
	return entry.session, true
}

// GetActiveSessionCount returns the number of currently active sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all active sessions (for monitoring)
func (m *Manager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, entry := range m.sessions {
		sessions = append(sessions, entry.session)
	}

	return sessions
}

// RemoveSession closes a session and its connection. It reports whether the
// session was registered; removing an unknown or already removed session is
// a no-op.
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	entry, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
		m.metrics.SetActiveSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !exists {
		return false
	}

	m.closeEntry(entry)
	return true
}

func (m *Manager) closeEntry(entry *managedSession) {
	entry.session.Close()
	m.metrics.RecordSessionClosed(time.Since(entry.session.StartTime).Seconds())

	if entry.closer != nil {
		if err := entry.closer(); err != nil {
			m.logger.Debug("Error closing session connection",
				slog.String("session_id", entry.session.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Stop closes every session and stops the cleanup routine
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.mu.Lock()
	entries := make([]*managedSession, 0, len(m.sessions))
	for id, entry := range m.sessions {
		entries = append(entries, entry)
		delete(m.sessions, id)
	}
	m.metrics.SetActiveSessions(0)
	m.mu.Unlock()

	for _, entry := range entries {
		m.closeEntry(entry)
	}

	// Cancel context to stop cleanup routine
	m.cancel()

	// Wait for cleanup routine to finish
	<-m.cleanup

	m.logger.Info("Session manager stopped",
		slog.Int("closed_sessions", len(entries)),
	)
}

// startCleanupRoutine runs in a separate goroutine to close idle sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.config.IdleTimeout),
		slog.Duration("check_interval", m.config.CleanupInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupExpiredSessions() {
	if m.config.IdleTimeout <= 0 {
		return
	}

	now := time.Now()
	expiredSessions := make([]string, 0)

	m.mu.RLock()
	for id, entry := range m.sessions {
		if now.Sub(entry.session.LastActivity()) > m.config.IdleTimeout {
			expiredSessions = append(expiredSessions, id)
		}
	}
	m.mu.RUnlock()

	if len(expiredSessions) > 0 {
		m.logger.Info("Closing idle sessions",
			slog.Int("expired_count", len(expiredSessions)),
		)

		for _, id := range expiredSessions {
			m.RemoveSession(id)
		}
	}
}
