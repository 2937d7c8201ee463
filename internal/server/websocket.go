package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skypro1111/stt-stream-service/internal/audio"
	"github.com/skypro1111/stt-stream-service/internal/metrics"
	"github.com/skypro1111/stt-stream-service/internal/protocol"
	"github.com/skypro1111/stt-stream-service/internal/stream"
)

// WSConfig contains per-connection transport limits
type WSConfig struct {
	ReadLimit    int64         // maximum inbound frame size, 0 for no limit
	PingInterval time.Duration // 0 disables keepalive pings
	PongWait     time.Duration // read deadline extended by every frame and pong, 0 for none
	WriteTimeout time.Duration
}

// WSHandler accepts streaming transcription connections
type WSHandler struct {
	sessions *stream.Manager
	upgrader websocket.Upgrader
	config   WSConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewWSHandler creates a websocket handler that registers one session per connection
func NewWSHandler(sessions *stream.Manager, cfg WSConfig, logger *slog.Logger, m *metrics.Metrics) *WSHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &WSHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are not browsers bound to a single origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config:  cfg,
		logger:  logger,
		metrics: m,
	}
}

// wsConn serializes writes to one websocket connection
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeClose(code int, text string) error {
	return c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(c.writeTimeout))
}

func (c *wsConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// ServeHTTP upgrades the request and runs the connection until it closes
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	c := &wsConn{conn: conn, writeTimeout: h.config.WriteTimeout}

	emit := func(event stream.Event) error {
		return c.writeJSON(protocol.NewTranscriptionMessage(event.Text, event.Final))
	}

	session, err := h.sessions.CreateSession(conn.RemoteAddr().String(), emit, conn.Close)
	if err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, stream.ErrTooManySessions) {
			code = websocket.CloseTryAgainLater
		}

		h.logger.Warn("Rejecting connection",
			slog.String("remote_addr", conn.RemoteAddr().String()),
			slog.String("error", err.Error()),
		)
		c.writeClose(code, err.Error())
		conn.Close()
		return
	}

	defer h.sessions.RemoveSession(session.ID)

	h.logger.Info("WebSocket connection established",
		slog.String("session_id", session.ID),
		slog.String("remote_addr", session.RemoteAddr),
	)

	done := make(chan struct{})
	defer close(done)

	if h.config.PingInterval > 0 {
		go h.pingLoop(c, session.ID, done)
	}

	h.readLoop(c, session)
}

// readLoop decodes client frames and feeds them to the session
func (h *WSHandler) readLoop(c *wsConn, session *stream.Session) {
	conn := c.conn

	if h.config.ReadLimit > 0 {
		conn.SetReadLimit(h.config.ReadLimit)
	}

	h.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		session.Touch()
		h.extendReadDeadline(conn)
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error",
					slog.String("session_id", session.ID),
					slog.String("error", err.Error()),
				)
			} else {
				h.logger.Info("WebSocket connection closed",
					slog.String("session_id", session.ID),
				)
			}
			return
		}

		h.extendReadDeadline(conn)
		session.Touch()

		var msg protocol.Message
		switch messageType {
		case websocket.TextMessage:
			msg, err = protocol.ParseMessage(data)
		case websocket.BinaryMessage:
			msg, err = protocol.ParseBinary(data)
		default:
			continue
		}

		if err != nil {
			h.metrics.RecordDecodeError()
			h.logger.Debug("Dropping undecodable message",
				slog.String("session_id", session.ID),
				slog.Int("size", len(data)),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch m := msg.(type) {
		case *protocol.AudioData:
			// A zero rate falls back to the session's configured rate
			session.HandleChunk(audio.NewChunk(m.Samples, m.SampleRate))
		case *protocol.EndStream:
			session.EndStream()
		}
	}
}

func (h *WSHandler) extendReadDeadline(conn *websocket.Conn) {
	if h.config.PongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	}
}

// pingLoop keeps the connection alive until done is closed
func (h *WSHandler) pingLoop(c *wsConn, sessionID string, done <-chan struct{}) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				h.logger.Debug("Ping failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}
