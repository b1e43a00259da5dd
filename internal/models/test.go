package models

import "time"

// Test is a multiple-choice test definition. Once published its questions and
// answer key are frozen; only assignments and attempts reference it afterwards.
type Test struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Instructions     string     `gorm:"type:text" json:"instructions"`
	TimeLimitMinutes int        `gorm:"not null" json:"time_limit_minutes"`
	IsPublished      bool       `gorm:"not null;default:false;index" json:"is_published"`
	TotalQuestions   int        `gorm:"not null;default:0" json:"total_questions"`
	TotalPoints      int        `gorm:"not null;default:0" json:"total_points"`
	CreatedBy        uint       `gorm:"index" json:"created_by"`
	PublishedAt      *time.Time `json:"published_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Questions        []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// Question is one prompt on a test with 2-6 options, exactly one correct.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TestID    uint      `gorm:"index;not null" json:"test_id"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Points    int       `gorm:"not null;default:1" json:"points"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Options   []Option  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options"`
}

// Option is a selectable answer for a question.
type Option struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"index;not null" json:"question_id"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"is_correct"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecalculateTotals refreshes the derived question and point counts.
// Called whenever the question set changes.
func (t *Test) RecalculateTotals() {
	t.TotalQuestions = len(t.Questions)
	total := 0
	for _, q := range t.Questions {
		total += q.Points
	}
	t.TotalPoints = total
}

// QuestionByID returns the question with the given identifier, if present.
func (t Test) QuestionByID(id uint) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// CorrectOption returns the option flagged correct for this question.
func (q Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return Option{}, false
}
