package models

import "time"

// Student is the learner identity referenced by assignments and attempts.
// Account management lives in a separate service; this table mirrors the
// fields the assessment engine needs for validation and notices.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
