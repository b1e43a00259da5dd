package models

import "time"

// Attempt is one instance of a student taking a test. The composite unique
// index on (student_id, test_id, attempt_number) is the arbiter for concurrent
// submissions: whichever writer inserts first wins, the loser gets a
// duplicated-key error. Incomplete rows mark in-progress attempts and never
// count toward the attempt number.
type Attempt struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	StudentID        uint            `gorm:"not null;uniqueIndex:idx_attempt_number,priority:1" json:"student_id"`
	TestID           uint            `gorm:"not null;uniqueIndex:idx_attempt_number,priority:2;index" json:"test_id"`
	AttemptNumber    int             `gorm:"not null;uniqueIndex:idx_attempt_number,priority:3" json:"attempt_number"`
	Score            int             `gorm:"not null;default:0" json:"score"`
	Percentage       int             `gorm:"not null;default:0" json:"percentage"`
	TotalQuestions   int             `gorm:"not null;default:0" json:"total_questions"`
	CorrectAnswers   int             `gorm:"not null;default:0" json:"correct_answers"`
	TimeSpentSeconds int             `gorm:"not null;default:0" json:"time_spent_seconds"`
	StartedAt        time.Time       `gorm:"not null" json:"started_at"`
	SubmittedAt      *time.Time      `json:"submitted_at"`
	IsCompleted      bool            `gorm:"not null;default:false;index" json:"is_completed"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Answers          []AttemptAnswer `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers"`
}

// AttemptAnswer records one graded answer. Both the positional index and the
// resolved option identifier are stored so review screens work with either
// addressing convention.
type AttemptAnswer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AttemptID        uint      `gorm:"index;not null" json:"attempt_id"`
	QuestionID       uint      `gorm:"not null" json:"question_id"`
	SelectedOptionID *uint     `json:"selected_option_id"`
	SelectedIndex    *int      `json:"selected_index"`
	IsCorrect        bool      `gorm:"not null;default:false" json:"is_correct"`
	PointsEarned     int       `gorm:"not null;default:0" json:"points_earned"`
	TimeSpentSeconds int       `gorm:"not null;default:0" json:"time_spent_seconds"`
	Position         int       `gorm:"not null;default:0" json:"position"`
	CreatedAt        time.Time `json:"created_at"`
}
