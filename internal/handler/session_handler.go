package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/examind/examind-api/internal/middleware"
	"github.com/examind/examind-api/internal/service"
)

// SessionHandler wires the timed session websocket: countdown events,
// heartbeats, auto-save pings and reconnect resync.
type SessionHandler struct {
	registry  *service.SessionRegistry
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs a handler instance.
func NewSessionHandler(registry *service.SessionRegistry, validate *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		registry:  registry,
		validator: validate,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register binds the session channel under the provided router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *SessionHandler) handleConnection(conn *websocket.Conn) {
	studentID := websocketUserID(conn)
	if studentID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	testID := websocketQueryUint(conn, "test_id")
	if testID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "test_id required"))
		_ = conn.Close()
		return
	}

	if !h.registry.Running(studentID, testID) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusNotFound, "no active session"))
		_ = conn.Close()
		return
	}

	correlation := ""
	if value, ok := conn.Locals("correlation_id").(string); ok {
		correlation = value
	}
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.SessionConnectionOptions{
		StudentID:     studentID,
		TestID:        testID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("student_id", studentID).Uint("test_id", testID).Msg("session websocket connected")
	h.registry.ServeConnection(conn, h.validator, opts)
	h.logger.Info().Uint("student_id", studentID).Uint("test_id", testID).Msg("session websocket disconnected")
}

func websocketUserID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case uint:
			return v
		case int:
			if v > 0 {
				return uint(v)
			}
		case float64:
			if v > 0 {
				return uint(v)
			}
		case string:
			if parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil {
				return uint(parsed)
			}
		}
	}
	return 0
}

func websocketQueryUint(conn *websocket.Conn, key string) uint {
	parsed, err := strconv.ParseUint(strings.TrimSpace(conn.Query(key)), 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}
