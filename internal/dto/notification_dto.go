package dto

import (
	"time"

	"github.com/examind/examind-api/internal/models"
)

// NotificationPublishRequest creates and fans out one notification.
type NotificationPublishRequest struct {
	UserID  uint                   `json:"user_id" validate:"required,gt=0"`
	Kind    string                 `json:"kind" validate:"required"`
	Message string                 `json:"message" validate:"required"`
	Payload map[string]interface{} `json:"payload"`
}

// NotificationResponse is the API view of one notification.
type NotificationResponse struct {
	ID        uint                   `json:"id"`
	UserID    uint                   `json:"user_id"`
	Kind      string                 `json:"kind"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewNotificationResponse maps a notification model to its API shape.
func NewNotificationResponse(notification models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        notification.ID,
		UserID:    notification.UserID,
		Kind:      notification.Kind,
		Message:   notification.Message,
		Payload:   notification.Payload,
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
}

// NewNotificationResponseSlice maps a list of notifications.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}
	return responses
}
