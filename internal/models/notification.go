package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification kinds emitted by the assessment engine.
const (
	NotificationTestAssigned = "test-assigned"
	NotificationTestResult   = "test-result"
	NotificationDueExtended  = "due-date-extended"
)

// Notification is a persisted notice targeted at one user. Delivery is
// best-effort; the engine never fails a submission over a notification error.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"user_id"`
	Kind      string            `gorm:"size:64;not null" json:"kind"`
	Message   string            `gorm:"type:text" json:"message"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
