package contract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/handler"
)

type stubNotificationService struct {
	notifications []dto.NotificationResponse
}

func (s stubNotificationService) Publish(_ context.Context, payload dto.NotificationPublishRequest) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{ID: 1, UserID: payload.UserID, Kind: payload.Kind, Message: payload.Message}, nil
}

func (s stubNotificationService) List(context.Context, uint, int, int) ([]dto.NotificationResponse, error) {
	return s.notifications, nil
}

func (s stubNotificationService) MarkRead(_ context.Context, id, userID uint) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{ID: id, UserID: userID, Kind: "system", Message: "ok", Read: true, CreatedAt: time.Now().UTC()}, nil
}

func (s stubNotificationService) Subscribe(uint) (<-chan dto.NotificationResponse, func()) {
	ch := make(chan dto.NotificationResponse)
	return ch, func() { close(ch) }
}

func (s stubNotificationService) Start(context.Context) {}

func TestNotificationListContract(t *testing.T) {
	schema := compileSchema(t, "notification.schema.json")

	svc := stubNotificationService{notifications: []dto.NotificationResponse{
		{
			ID:        1,
			UserID:    100,
			Kind:      "test_result",
			Message:   "Your attempt was graded: 2/3",
			Payload:   map[string]interface{}{"test_id": 7, "score": 2},
			Read:      false,
			CreatedAt: time.Now().UTC(),
		},
		{
			ID:        2,
			UserID:    100,
			Kind:      "test_assigned",
			Message:   "New test assigned",
			Read:      true,
			CreatedAt: time.Now().UTC(),
		},
	}}

	app := fiber.New()
	group := app.Group("/api/v1/notifications", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(100))
		return c.Next()
	})
	handler.NewNotificationHandler(svc, zerolog.Nop(), 30*time.Second).Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	validateResponse(t, schema, resp)
}
