package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/models"
	"github.com/examind/examind-api/internal/repository"
)

// Assignment errors.
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrDueDateNotFuture   = errors.New("due date must be in the future")
)

// AssignmentSummary pairs an assignment with per-student standing.
type AssignmentSummary struct {
	Assignment dto.AssignmentResponse        `json:"assignment"`
	Students   []dto.AssignmentStudentStatus `json:"students"`
}

// AssignmentService manages which students may take which published test and
// under what deadline and attempt policy.
type AssignmentService interface {
	// CreateOrMerge assigns a test to students. When the test already carries
	// an assignment the new students merge into it instead of creating a
	// duplicate row.
	CreateOrMerge(ctx context.Context, creatorID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Reassign(ctx context.Context, assignmentID uint, payload dto.AssignmentReassignRequest) (dto.AssignmentResponse, error)
	ExtendDueDate(ctx context.Context, assignmentID uint, payload dto.AssignmentDueDateRequest) (dto.AssignmentResponse, error)
	Get(ctx context.Context, assignmentID uint) (dto.AssignmentResponse, error)
	// ListByTest returns every assignment row for a test, newest first,
	// including stale legacy duplicates the merge path superseded.
	ListByTest(ctx context.Context, testID uint) ([]dto.AssignmentResponse, error)
	SummaryByTest(ctx context.Context, testID uint) (AssignmentSummary, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	tests       repository.TestRepository
	attempts    repository.AttemptRepository
	notifier    Notifier
	validator   *validator.Validate
	logger      zerolog.Logger
	now         nowFunc
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	tests repository.TestRepository,
	attempts repository.AttemptRepository,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		tests:       tests,
		attempts:    attempts,
		notifier:    notifier,
		validator:   validate,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         timeNow,
	}
}

func (s *assignmentService) CreateOrMerge(ctx context.Context, creatorID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !payload.DueDate.After(s.now()) {
		return dto.AssignmentResponse{}, ErrDueDateNotFuture
	}

	test, err := s.tests.GetByID(ctx, payload.TestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrTestNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if !test.IsPublished {
		return dto.AssignmentResponse{}, ErrTestNotFound
	}

	existing, err := s.assignments.LatestByTest(ctx, payload.TestID)
	switch {
	case err == nil:
		return s.mergeInto(ctx, existing, payload)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return dto.AssignmentResponse{}, err
	}

	assignment := models.TestAssignment{
		TestID:      payload.TestID,
		DueDate:     payload.DueDate,
		MaxAttempts: 1,
		CreatedBy:   creatorID,
	}
	if payload.TimeLimitMinutes != nil {
		assignment.TimeLimitMinutes = *payload.TimeLimitMinutes
	}
	if payload.MaxAttempts != nil {
		assignment.MaxAttempts = *payload.MaxAttempts
	}
	for _, studentID := range payload.StudentIDs {
		assignment.Students = append(assignment.Students, models.AssignmentStudent{StudentID: studentID})
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.Test = test

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("test_id", payload.TestID).
		Int("students", len(payload.StudentIDs)).
		Msg("assignment created")

	s.notifyAssigned(ctx, test, payload.StudentIDs, assignment.DueDate.Format("2006-01-02 15:04"))

	return dto.NewAssignmentResponse(assignment), nil
}

// mergeInto folds a repeat assignment request into the existing row: new
// students join, existing members keep their attempt history, and policy
// fields update when the request carries them.
func (s *assignmentService) mergeInto(ctx context.Context, existing models.TestAssignment, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	newcomers := make([]uint, 0, len(payload.StudentIDs))
	for _, studentID := range payload.StudentIDs {
		if !existing.Includes(studentID) {
			newcomers = append(newcomers, studentID)
		}
	}

	if len(newcomers) > 0 {
		if err := s.assignments.AddStudents(ctx, existing.ID, newcomers); err != nil {
			return dto.AssignmentResponse{}, err
		}
	}

	existing.DueDate = payload.DueDate
	if payload.TimeLimitMinutes != nil {
		existing.TimeLimitMinutes = *payload.TimeLimitMinutes
	}
	if payload.MaxAttempts != nil {
		existing.MaxAttempts = *payload.MaxAttempts
	}
	if err := s.assignments.Update(ctx, &existing); err != nil {
		return dto.AssignmentResponse{}, err
	}

	refreshed, err := s.assignments.GetByID(ctx, existing.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Uint("assignment_id", existing.ID).
		Int("new_students", len(newcomers)).
		Msg("assignment merged")

	s.notifyAssigned(ctx, refreshed.Test, newcomers, refreshed.DueDate.Format("2006-01-02 15:04"))

	return dto.NewAssignmentResponse(refreshed), nil
}

func (s *assignmentService) Reassign(ctx context.Context, assignmentID uint, payload dto.AssignmentReassignRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	newcomers := make([]uint, 0, len(payload.StudentIDs))
	for _, studentID := range payload.StudentIDs {
		if !assignment.Includes(studentID) {
			newcomers = append(newcomers, studentID)
		}
	}

	if payload.Replace {
		if err := s.assignments.ReplaceStudents(ctx, assignmentID, payload.StudentIDs); err != nil {
			return dto.AssignmentResponse{}, err
		}
	} else if len(newcomers) > 0 {
		if err := s.assignments.AddStudents(ctx, assignmentID, newcomers); err != nil {
			return dto.AssignmentResponse{}, err
		}
	}

	refreshed, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.notifyAssigned(ctx, refreshed.Test, newcomers, refreshed.DueDate.Format("2006-01-02 15:04"))

	return dto.NewAssignmentResponse(refreshed), nil
}

func (s *assignmentService) ExtendDueDate(ctx context.Context, assignmentID uint, payload dto.AssignmentDueDateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !payload.DueDate.After(s.now()) {
		return dto.AssignmentResponse{}, ErrDueDateNotFuture
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	assignment.DueDate = payload.DueDate
	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Uint("assignment_id", assignmentID).
		Time("due_date", payload.DueDate).
		Msg("due date extended")

	if s.notifier != nil {
		due := payload.DueDate.Format("2006-01-02 15:04")
		for _, member := range assignment.Students {
			if _, err := s.notifier.Publish(ctx, dto.NotificationPublishRequest{
				UserID:  member.StudentID,
				Kind:    models.NotificationDueExtended,
				Message: fmt.Sprintf("Deadline for %q extended to %s", assignment.Test.Title, due),
				Payload: map[string]interface{}{"test_id": assignment.TestID, "due_date": payload.DueDate},
			}); err != nil {
				s.logger.Warn().Err(err).Uint("student_id", member.StudentID).Msg("due-date notification failed")
			}
		}
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Get(ctx context.Context, assignmentID uint) (dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) ListByTest(ctx context.Context, testID uint) ([]dto.AssignmentResponse, error) {
	assignments, err := s.assignments.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.NewAssignmentResponse(assignment))
	}

	return responses, nil
}

func (s *assignmentService) SummaryByTest(ctx context.Context, testID uint) (AssignmentSummary, error) {
	assignment, err := s.assignments.LatestByTest(ctx, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AssignmentSummary{}, ErrAssignmentNotFound
		}
		return AssignmentSummary{}, err
	}

	attempts, err := s.attempts.ListCompletedByTest(ctx, testID)
	if err != nil {
		return AssignmentSummary{}, err
	}

	byStudent := make(map[uint][]models.Attempt, len(assignment.Students))
	for _, attempt := range attempts {
		byStudent[attempt.StudentID] = append(byStudent[attempt.StudentID], attempt)
	}

	statuses := make([]dto.AssignmentStudentStatus, 0, len(assignment.Students))
	for _, member := range assignment.Students {
		status := dto.AssignmentStudentStatus{StudentID: member.StudentID}
		for _, attempt := range byStudent[member.StudentID] {
			status.CompletedAttempts++
			if status.BestScore == nil || attempt.Score > *status.BestScore {
				score := attempt.Score
				status.BestScore = &score
			}
			if attempt.SubmittedAt != nil &&
				(status.LastSubmittedAt == nil || attempt.SubmittedAt.After(*status.LastSubmittedAt)) {
				status.LastSubmittedAt = attempt.SubmittedAt
			}
		}
		statuses = append(statuses, status)
	}

	return AssignmentSummary{
		Assignment: dto.NewAssignmentResponse(assignment),
		Students:   statuses,
	}, nil
}

func (s *assignmentService) notifyAssigned(ctx context.Context, test models.Test, studentIDs []uint, due string) {
	if s.notifier == nil {
		return
	}

	for _, studentID := range studentIDs {
		if _, err := s.notifier.Publish(ctx, dto.NotificationPublishRequest{
			UserID:  studentID,
			Kind:    models.NotificationTestAssigned,
			Message: fmt.Sprintf("You have been assigned %q, due %s", test.Title, due),
			Payload: map[string]interface{}{"test_id": test.ID},
		}); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("assignment notification failed")
		}
	}
}
