package dto

import (
	"time"

	"github.com/examind/examind-api/internal/models"
)

// OptionCreateRequest describes one option of an authored question.
type OptionCreateRequest struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionCreateRequest describes one authored question. Between two and six
// options, exactly one correct; the single-correct rule is checked in the
// service since it spans fields.
type QuestionCreateRequest struct {
	Prompt  string                `json:"prompt" validate:"required"`
	Points  int                   `json:"points" validate:"required,gt=0"`
	Options []OptionCreateRequest `json:"options" validate:"required,min=2,max=6,dive"`
}

// TestCreateRequest is the admin payload for authoring a test.
type TestCreateRequest struct {
	Title            string                  `json:"title" validate:"required"`
	Instructions     string                  `json:"instructions"`
	TimeLimitMinutes int                     `json:"time_limit_minutes" validate:"required,gt=0"`
	Questions        []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// TestQuestionsUpdateRequest replaces the question set of an unpublished test.
type TestQuestionsUpdateRequest struct {
	Questions []QuestionCreateRequest `json:"questions" validate:"required,min=1,dive"`
}

// OptionResponse is the admin view of an option, answer key included.
type OptionResponse struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Position  int    `json:"position"`
}

// QuestionResponse is the admin view of a question.
type QuestionResponse struct {
	ID       uint             `json:"id"`
	Prompt   string           `json:"prompt"`
	Points   int              `json:"points"`
	Position int              `json:"position"`
	Options  []OptionResponse `json:"options"`
}

// TestResponse is returned to admin callers.
type TestResponse struct {
	ID               uint               `json:"id"`
	Title            string             `json:"title"`
	Instructions     string             `json:"instructions"`
	TimeLimitMinutes int                `json:"time_limit_minutes"`
	IsPublished      bool               `json:"is_published"`
	TotalQuestions   int                `json:"total_questions"`
	TotalPoints      int                `json:"total_points"`
	PublishedAt      *time.Time         `json:"published_at"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Questions        []QuestionResponse `json:"questions"`
}

// OptionView is the answer-key-stripped option shown to a student taking a test.
type OptionView struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// QuestionView is the student-facing question shape. It never carries
// correctness flags.
type QuestionView struct {
	ID       uint         `json:"id"`
	Prompt   string       `json:"prompt"`
	Points   int          `json:"points"`
	Position int          `json:"position"`
	Options  []OptionView `json:"options"`
}

// StartTestResponse is returned when a student opens a timed attempt.
type StartTestResponse struct {
	TestID           uint           `json:"test_id"`
	Title            string         `json:"title"`
	Instructions     string         `json:"instructions"`
	TimeLimitMinutes int            `json:"time_limit_minutes"`
	AttemptNumber    int            `json:"attempt_number"`
	DueDate          time.Time      `json:"due_date"`
	Questions        []QuestionView `json:"questions"`
}

// NewTestResponse maps a test model into the admin response shape.
func NewTestResponse(test models.Test) TestResponse {
	questions := make([]QuestionResponse, 0, len(test.Questions))
	for _, q := range test.Questions {
		options := make([]OptionResponse, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, OptionResponse{
				ID:        o.ID,
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
				Position:  o.Position,
			})
		}
		questions = append(questions, QuestionResponse{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Points:   q.Points,
			Position: q.Position,
			Options:  options,
		})
	}

	return TestResponse{
		ID:               test.ID,
		Title:            test.Title,
		Instructions:     test.Instructions,
		TimeLimitMinutes: test.TimeLimitMinutes,
		IsPublished:      test.IsPublished,
		TotalQuestions:   test.TotalQuestions,
		TotalPoints:      test.TotalPoints,
		PublishedAt:      test.PublishedAt,
		CreatedAt:        test.CreatedAt,
		UpdatedAt:        test.UpdatedAt,
		Questions:        questions,
	}
}

// NewTestResponseSlice maps a list of tests.
func NewTestResponseSlice(tests []models.Test) []TestResponse {
	responses := make([]TestResponse, 0, len(tests))
	for _, test := range tests {
		responses = append(responses, NewTestResponse(test))
	}
	return responses
}

// NewQuestionViewSlice strips the answer key from a test's questions.
func NewQuestionViewSlice(test models.Test) []QuestionView {
	views := make([]QuestionView, 0, len(test.Questions))
	for _, q := range test.Questions {
		options := make([]OptionView, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, OptionView{ID: o.ID, Text: o.Text, Position: o.Position})
		}
		views = append(views, QuestionView{
			ID:       q.ID,
			Prompt:   q.Prompt,
			Points:   q.Points,
			Position: q.Position,
			Options:  options,
		})
	}
	return views
}
