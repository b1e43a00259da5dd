package dto

import (
	"time"

	"github.com/examind/examind-api/internal/models"
)

// AssignmentCreateRequest assigns a published test to a set of students.
// MaxAttempts -1 means unlimited.
type AssignmentCreateRequest struct {
	TestID           uint      `json:"test_id" validate:"required,gt=0"`
	StudentIDs       []uint    `json:"student_ids" validate:"required,min=1,dive,gt=0"`
	DueDate          time.Time `json:"due_date" validate:"required"`
	TimeLimitMinutes *int      `json:"time_limit_minutes" validate:"omitempty,gt=0"`
	MaxAttempts      *int      `json:"max_attempts" validate:"omitempty,ne=0,gte=-1"`
}

// AssignmentReassignRequest appends or replaces the student set.
type AssignmentReassignRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required,min=1,dive,gt=0"`
	Replace    bool   `json:"replace"`
}

// AssignmentDueDateRequest extends the deadline.
type AssignmentDueDateRequest struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

// AssignmentResponse is the admin view of an assignment.
type AssignmentResponse struct {
	ID               uint      `json:"id"`
	TestID           uint      `json:"test_id"`
	TestTitle        string    `json:"test_title"`
	DueDate          time.Time `json:"due_date"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	MaxAttempts      int       `json:"max_attempts"`
	StudentIDs       []uint    `json:"student_ids"`
	CreatedBy        uint      `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AssignmentStudentStatus summarises a student's standing on an assignment.
type AssignmentStudentStatus struct {
	StudentID         uint       `json:"student_id"`
	CompletedAttempts int        `json:"completed_attempts"`
	BestScore         *int       `json:"best_score"`
	LastSubmittedAt   *time.Time `json:"last_submitted_at"`
}

// NewAssignmentResponse maps an assignment model to its API shape.
func NewAssignmentResponse(assignment models.TestAssignment) AssignmentResponse {
	studentIDs := make([]uint, 0, len(assignment.Students))
	for _, member := range assignment.Students {
		studentIDs = append(studentIDs, member.StudentID)
	}

	return AssignmentResponse{
		ID:               assignment.ID,
		TestID:           assignment.TestID,
		TestTitle:        assignment.Test.Title,
		DueDate:          assignment.DueDate,
		TimeLimitMinutes: assignment.TimeLimitMinutes,
		MaxAttempts:      assignment.MaxAttempts,
		StudentIDs:       studentIDs,
		CreatedBy:        assignment.CreatedBy,
		CreatedAt:        assignment.CreatedAt,
		UpdatedAt:        assignment.UpdatedAt,
	}
}
