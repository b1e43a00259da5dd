package dto

import "time"

// Session event types pushed to the client over the websocket channel.
const (
	SessionEventStarted         = "started"
	SessionEventTimeUpdate      = "time-update"
	SessionEventTimeWarning     = "time-warning"
	SessionEventAutoSaveTrigger = "auto-save-trigger"
	SessionEventSubmitted       = "submitted"
	SessionEventAutoSubmitted   = "auto-submitted"
)

// Warning levels for SessionEventTimeWarning.
const (
	SessionWarningFiveMinutes = "5m"
	SessionWarningOneMinute   = "1m"
)

// Client message types received over the session channel.
const (
	SessionMessageHeartbeat = "heartbeat"
	SessionMessageAutoSave  = "auto-save"
)

// SessionEvent is a server-to-client event on the session channel. The
// countdown the client displays is anchored on ServerStartTime and the
// server-computed remaining seconds, never on the client's own clock.
type SessionEvent struct {
	Type             string     `json:"type"`
	TestID           uint       `json:"test_id"`
	ServerStartTime  *time.Time `json:"server_start_time,omitempty"`
	DurationMinutes  int        `json:"duration_minutes,omitempty"`
	ElapsedSeconds   int        `json:"elapsed_seconds,omitempty"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
	Level            string     `json:"level,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
}

// SessionClientMessage is a client-to-server message on the session channel.
// Auto-save answers are advisory state retained for auto-submission; they are
// not persisted until finalisation.
type SessionClientMessage struct {
	Type             string            `json:"type" validate:"required,oneof=heartbeat auto-save"`
	Answers          []SubmittedAnswer `json:"answers,omitempty" validate:"omitempty,dive"`
	TimeSpentSeconds int               `json:"time_spent_seconds,omitempty" validate:"gte=0"`
}
