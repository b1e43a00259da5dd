package dto

import (
	"time"

	"github.com/examind/examind-api/internal/models"
)

// SubmittedAnswer is one answer in a submit payload. The selected option may
// be addressed either by its identifier or by its position in the question's
// option list; heterogeneous callers use either convention. Exactly one of
// OptionID / OptionIndex is expected, resolved at the grading boundary.
type SubmittedAnswer struct {
	QuestionID       uint  `json:"question_id" validate:"required,gt=0"`
	OptionID         *uint `json:"option_id"`
	OptionIndex      *int  `json:"option_index"`
	TimeSpentSeconds int   `json:"time_spent_seconds" validate:"gte=0"`
}

// SubmitTestRequest finalises an attempt.
type SubmitTestRequest struct {
	Answers          []SubmittedAnswer `json:"answers" validate:"dive"`
	TimeSpentSeconds int               `json:"time_spent_seconds" validate:"gte=0"`
	StartedAt        *time.Time        `json:"started_at"`
}

// BeaconSubmitRequest is the tab-close fallback payload. The browser cannot
// attach an Authorization header from an unload handler, so the credential
// rides in the body and is verified through the same routine as the bearer path.
type BeaconSubmitRequest struct {
	Token            string            `json:"token" validate:"required"`
	Answers          []SubmittedAnswer `json:"answers" validate:"dive"`
	TimeSpentSeconds int               `json:"time_spent_seconds" validate:"gte=0"`
	StartedAt        *time.Time        `json:"started_at"`
}

// SubmitTestResponse reports the graded outcome to the submitting client.
type SubmitTestResponse struct {
	AttemptNumber  int       `json:"attempt_number"`
	Score          int       `json:"score"`
	Percentage     int       `json:"percentage"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// AttemptAnswerResponse is one graded answer in a review payload.
type AttemptAnswerResponse struct {
	QuestionID       uint  `json:"question_id"`
	SelectedOptionID *uint `json:"selected_option_id"`
	SelectedIndex    *int  `json:"selected_index"`
	IsCorrect        bool  `json:"is_correct"`
	PointsEarned     int   `json:"points_earned"`
	TimeSpentSeconds int   `json:"time_spent_seconds"`
}

// AttemptResponse is the persisted result of one attempt.
type AttemptResponse struct {
	ID               uint                    `json:"id"`
	TestID           uint                    `json:"test_id"`
	StudentID        uint                    `json:"student_id"`
	AttemptNumber    int                     `json:"attempt_number"`
	Score            int                     `json:"score"`
	Percentage       int                     `json:"percentage"`
	TotalQuestions   int                     `json:"total_questions"`
	CorrectAnswers   int                     `json:"correct_answers"`
	TimeSpentSeconds int                     `json:"time_spent_seconds"`
	StartedAt        time.Time               `json:"started_at"`
	SubmittedAt      *time.Time              `json:"submitted_at"`
	IsCompleted      bool                    `json:"is_completed"`
	Answers          []AttemptAnswerResponse `json:"answers"`
}

// NewAttemptResponse maps an attempt model to its API shape.
func NewAttemptResponse(attempt models.Attempt) AttemptResponse {
	answers := make([]AttemptAnswerResponse, 0, len(attempt.Answers))
	for _, answer := range attempt.Answers {
		answers = append(answers, AttemptAnswerResponse{
			QuestionID:       answer.QuestionID,
			SelectedOptionID: answer.SelectedOptionID,
			SelectedIndex:    answer.SelectedIndex,
			IsCorrect:        answer.IsCorrect,
			PointsEarned:     answer.PointsEarned,
			TimeSpentSeconds: answer.TimeSpentSeconds,
		})
	}

	return AttemptResponse{
		ID:               attempt.ID,
		TestID:           attempt.TestID,
		StudentID:        attempt.StudentID,
		AttemptNumber:    attempt.AttemptNumber,
		Score:            attempt.Score,
		Percentage:       attempt.Percentage,
		TotalQuestions:   attempt.TotalQuestions,
		CorrectAnswers:   attempt.CorrectAnswers,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
		StartedAt:        attempt.StartedAt,
		SubmittedAt:      attempt.SubmittedAt,
		IsCompleted:      attempt.IsCompleted,
		Answers:          answers,
	}
}

// NewAttemptResponseSlice maps a list of attempts.
func NewAttemptResponseSlice(attempts []models.Attempt) []AttemptResponse {
	responses := make([]AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, NewAttemptResponse(attempt))
	}
	return responses
}
