package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/observability"
)

const sessionSendBufferSize = 16

// SessionConnectionOptions wraps metadata extracted during the HTTP upgrade.
type SessionConnectionOptions struct {
	StudentID     uint
	TestID        uint
	CorrelationID string
	Context       context.Context
}

// sessionHub tracks the websocket clients subscribed to each live session.
// A key can hold several clients at once: a reconnect registers a new client
// before the stale one times out.
type sessionHub struct {
	mu      sync.RWMutex
	clients map[sessionKey]map[*sessionClient]struct{}
	log     zerolog.Logger
}

type sessionClient struct {
	conn     *websocket.Conn
	send     chan dto.SessionEvent
	key      sessionKey
	registry *SessionRegistry
	closed   chan struct{}
	once     sync.Once
}

func newSessionHub(logger zerolog.Logger) *sessionHub {
	return &sessionHub{
		clients: make(map[sessionKey]map[*sessionClient]struct{}),
		log:     logger.With().Str("component", "session_hub").Logger(),
	}
}

// ServeConnection pumps session events to a connected client and consumes its
// heartbeat and auto-save messages. It blocks until the connection drops.
// Dropping the connection does NOT terminate the session: the countdown keeps
// running so a reconnect resumes where it left off.
func (r *SessionRegistry) ServeConnection(conn *websocket.Conn, validate *validator.Validate, opts SessionConnectionOptions) {
	key := sessionKey{studentID: opts.StudentID, testID: opts.TestID}

	client := &sessionClient{
		conn:     conn,
		send:     make(chan dto.SessionEvent, sessionSendBufferSize),
		key:      key,
		registry: r,
		closed:   make(chan struct{}),
	}

	r.hub.register(client)
	observability.SessionWSConnections().Inc()

	// Resynchronise a (re)connecting client with the authoritative clock.
	if snapshot, err := r.Snapshot(opts.StudentID, opts.TestID); err == nil {
		select {
		case client.send <- snapshot:
		default:
		}
	}

	go client.writer()
	client.reader(validate)
}

func (c *sessionClient) reader(validate *validator.Validate) {
	defer c.close()

	for {
		var message dto.SessionClientMessage
		if err := c.conn.ReadJSON(&message); err != nil {
			c.registry.logger.Debug().
				Uint("student_id", c.key.studentID).
				Uint("test_id", c.key.testID).
				Err(err).
				Msg("session channel closed, countdown preserved")
			return
		}

		if validate != nil {
			if err := validate.Struct(message); err != nil {
				c.registry.logger.Warn().Err(err).Msg("invalid session message")
				continue
			}
		}

		switch message.Type {
		case dto.SessionMessageHeartbeat:
			if _, err := c.registry.Heartbeat(c.key.studentID, c.key.testID); err != nil {
				c.registry.logger.Debug().Err(err).Msg("heartbeat for ended session")
			}
		case dto.SessionMessageAutoSave:
			if err := c.registry.RecordAutoSave(c.key.studentID, c.key.testID, message.Answers, message.TimeSpentSeconds); err != nil {
				c.registry.logger.Debug().Err(err).Msg("auto-save for ended session")
			}
		}
	}
}

func (c *sessionClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.registry.logger.Debug().Err(err).Msg("session write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.registry.logger.Debug().Err(err).Msg("session ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *sessionClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.registry.hub.unregister(c)
		_ = c.conn.Close()
	})
}

func (h *sessionHub) register(client *sessionClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.key]; !exists {
		h.clients[client.key] = make(map[*sessionClient]struct{})
	}
	h.clients[client.key][client] = struct{}{}
	h.log.Debug().
		Uint("student_id", client.key.studentID).
		Uint("test_id", client.key.testID).
		Msg("session client connected")
}

func (h *sessionHub) unregister(client *sessionClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.key]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.key)
		}
	}
	h.log.Debug().
		Uint("student_id", client.key.studentID).
		Uint("test_id", client.key.testID).
		Msg("session client disconnected")
}

func (h *sessionHub) emit(key sessionKey, event dto.SessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[key] {
		select {
		case client.send <- event:
		default:
			h.log.Warn().
				Uint("student_id", key.studentID).
				Uint("test_id", key.testID).
				Str("event", event.Type).
				Msg("dropping session event for slow client")
		}
	}
}
