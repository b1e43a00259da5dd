package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/middleware"
	"github.com/examind/examind-api/internal/models"
	"github.com/examind/examind-api/internal/observability"
	"github.com/examind/examind-api/internal/repository"
)

// Exam flow errors, mapped by the handler onto the HTTP taxonomy.
var (
	ErrTestNotFound      = errors.New("test not found")
	ErrNotAssigned       = errors.New("test is not assigned to this student")
	ErrDeadlinePassed    = errors.New("assignment deadline has passed")
	ErrAttemptsExhausted = errors.New("maximum attempts reached")
	ErrDuplicateAttempt  = errors.New("attempt was already recorded")
	ErrBeaconAuth        = errors.New("beacon credential rejected")
)

const autoSubmitTimeout = 15 * time.Second

// Notifier is the best-effort notification sink. Failures are logged and
// swallowed; they never fail or roll back a submission.
type Notifier interface {
	Publish(ctx context.Context, payload dto.NotificationPublishRequest) (dto.NotificationResponse, error)
}

// ExamService is the entry point for taking tests: it validates eligibility,
// opens timed sessions and serialises every finalisation path (manual submit,
// beacon submit, timer expiry) through one flow guarded by the attempt store's
// uniqueness constraint.
type ExamService interface {
	StartTest(ctx context.Context, studentID, testID uint) (dto.StartTestResponse, error)
	Submit(ctx context.Context, studentID, testID uint, payload dto.SubmitTestRequest) (dto.SubmitTestResponse, error)
	SubmitWithBeacon(ctx context.Context, testID uint, payload dto.BeaconSubmitRequest) (dto.SubmitTestResponse, error)
	ListResults(ctx context.Context, studentID, testID uint) ([]dto.AttemptResponse, error)
	AutoSubmit(studentID, testID uint, answers []dto.SubmittedAnswer, timeSpentSeconds int)
}

type examService struct {
	tests       repository.TestRepository
	assignments repository.AssignmentRepository
	attempts    repository.AttemptRepository
	sessions    *SessionRegistry
	notifier    Notifier
	cache       *redis.Client
	cacheTTL    time.Duration
	jwtSecret   string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewExamService constructs the submission coordinator.
func NewExamService(
	tests repository.TestRepository,
	assignments repository.AssignmentRepository,
	attempts repository.AttemptRepository,
	sessions *SessionRegistry,
	notifier Notifier,
	cache *redis.Client,
	cacheTTL time.Duration,
	jwtSecret string,
	validate *validator.Validate,
	logger zerolog.Logger,
) ExamService {
	return &examService{
		tests:       tests,
		assignments: assignments,
		attempts:    attempts,
		sessions:    sessions,
		notifier:    notifier,
		cache:       cache,
		cacheTTL:    cacheTTL,
		jwtSecret:   jwtSecret,
		validator:   validate,
		logger:      logger.With().Str("component", "exam_service").Logger(),
		tracer:      otel.Tracer("github.com/examind/examind-api/internal/service/exam"),
		now:         time.Now,
	}
}

func (s *examService) StartTest(ctx context.Context, studentID, testID uint) (dto.StartTestResponse, error) {
	test, assignment, completed, err := s.checkEligibility(ctx, studentID, testID)
	if err != nil {
		return dto.StartTestResponse{}, err
	}

	// A running session means the countdown is still live and the in-progress
	// row holds the authoritative StartedAt. Reject before touching the row: a
	// mid-attempt refresh must not reset the server-recorded start.
	if s.sessions.Running(studentID, testID) {
		return dto.StartTestResponse{}, ErrSessionActive
	}

	// A crashed or abandoned attempt never blocks a retry and never inflates
	// the attempt counter.
	if err := s.attempts.DeleteIncomplete(ctx, studentID, testID); err != nil {
		return dto.StartTestResponse{}, err
	}

	attemptNumber := completed + 1
	inProgress := models.Attempt{
		StudentID:      studentID,
		TestID:         testID,
		AttemptNumber:  attemptNumber,
		TotalQuestions: test.TotalQuestions,
		StartedAt:      s.now(),
		IsCompleted:    false,
	}
	if err := s.attempts.Create(ctx, &inProgress); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			return dto.StartTestResponse{}, ErrDuplicateAttempt
		}
		return dto.StartTestResponse{}, err
	}

	limit := assignment.EffectiveTimeLimit(test)
	if _, err := s.sessions.Start(studentID, testID, limit); err != nil {
		return dto.StartTestResponse{}, err
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("test_id", testID).
		Int("attempt_number", attemptNumber).
		Msg("test started")

	return dto.StartTestResponse{
		TestID:           test.ID,
		Title:            test.Title,
		Instructions:     test.Instructions,
		TimeLimitMinutes: limit,
		AttemptNumber:    attemptNumber,
		DueDate:          assignment.DueDate,
		Questions:        s.questionViews(ctx, test),
	}, nil
}

func (s *examService) Submit(ctx context.Context, studentID, testID uint, payload dto.SubmitTestRequest) (dto.SubmitTestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmitTestResponse{}, err
	}

	return s.finalize(ctx, studentID, testID, payload.Answers, payload.TimeSpentSeconds, payload.StartedAt, TerminateManual)
}

// SubmitWithBeacon finalises an attempt for a closing browser tab. The
// self-contained credential goes through middleware.VerifyToken, the identical
// routine the bearer header path uses; a failed verification is a hard 401,
// never an anonymous fall-through.
func (s *examService) SubmitWithBeacon(ctx context.Context, testID uint, payload dto.BeaconSubmitRequest) (dto.SubmitTestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmitTestResponse{}, err
	}

	identity, err := middleware.VerifyToken(payload.Token, s.jwtSecret)
	if err != nil {
		return dto.SubmitTestResponse{}, ErrBeaconAuth
	}
	if identity.Role != middleware.AuthRoleStudent {
		return dto.SubmitTestResponse{}, ErrBeaconAuth
	}

	s.logger.Info().
		Uint("student_id", identity.UserID).
		Uint("test_id", testID).
		Msg("beacon submission accepted")

	return s.finalize(ctx, identity.UserID, testID, payload.Answers, payload.TimeSpentSeconds, payload.StartedAt, TerminateManual)
}

// AutoSubmit is invoked by the session registry when a timer expires, with
// whatever answer state was last auto-saved. Losing the race against a manual
// submit is expected and not an error.
func (s *examService) AutoSubmit(studentID, testID uint, answers []dto.SubmittedAnswer, timeSpentSeconds int) {
	ctx, cancel := context.WithTimeout(context.Background(), autoSubmitTimeout)
	defer cancel()

	if _, err := s.finalize(ctx, studentID, testID, answers, timeSpentSeconds, nil, TerminateExpired); err != nil {
		if errors.Is(err, ErrDuplicateAttempt) {
			s.logger.Debug().
				Uint("student_id", studentID).
				Uint("test_id", testID).
				Msg("auto-submit lost the race to a manual submit")
			return
		}
		s.logger.Warn().
			Uint("student_id", studentID).
			Uint("test_id", testID).
			Err(err).
			Msg("auto-submit failed")
	}
}

func (s *examService) ListResults(ctx context.Context, studentID, testID uint) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByStudentAndTest(ctx, studentID, testID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

// finalize is the single serialisation point for every way an attempt ends.
// The attempt store's unique index is the true arbiter: under concurrent
// submissions exactly one Create succeeds and the rest surface as
// ErrDuplicateAttempt conflicts.
func (s *examService) finalize(ctx context.Context, studentID, testID uint, answers []dto.SubmittedAnswer, clientTimeSpent int, clientStartedAt *time.Time, reason TerminateReason) (dto.SubmitTestResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "exam.finalize", trace.WithAttributes(
		attribute.Int64("exam.student_id", int64(studentID)),
		attribute.Int64("exam.test_id", int64(testID)),
		attribute.String("exam.reason", string(reason)),
	))
	defer span.End()

	test, assignment, completed, err := s.checkEligibility(spanCtx, studentID, testID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmitTestResponse{}, err
	}

	// Prefer the server-recorded start of the in-progress row over any
	// client-supplied timestamp.
	startedAt := s.now()
	if incomplete, err := s.attempts.FindIncomplete(spanCtx, studentID, testID); err == nil {
		startedAt = incomplete.StartedAt
	} else if clientStartedAt != nil {
		startedAt = *clientStartedAt
	}

	if err := s.attempts.DeleteIncomplete(spanCtx, studentID, testID); err != nil {
		return dto.SubmitTestResponse{}, err
	}

	gradeStart := time.Now()
	result := GradeTest(test, answers)
	observability.GradingDuration().Observe(time.Since(gradeStart).Seconds())

	submittedAt := s.now()
	timeSpent := int(submittedAt.Sub(startedAt).Seconds())
	if clientTimeSpent > 0 && clientTimeSpent < timeSpent {
		timeSpent = clientTimeSpent
	}
	if timeSpent < 0 {
		timeSpent = 0
	}

	attempt := models.Attempt{
		StudentID:        studentID,
		TestID:           testID,
		AttemptNumber:    completed + 1,
		Score:            result.Score,
		Percentage:       result.Percentage,
		TotalQuestions:   result.TotalQuestions,
		CorrectAnswers:   result.CorrectAnswers,
		TimeSpentSeconds: timeSpent,
		StartedAt:        startedAt,
		SubmittedAt:      &submittedAt,
		IsCompleted:      true,
		Answers:          make([]models.AttemptAnswer, 0, len(result.Answers)),
	}
	for i, graded := range result.Answers {
		attempt.Answers = append(attempt.Answers, models.AttemptAnswer{
			QuestionID:       graded.QuestionID,
			SelectedOptionID: graded.SelectedOptionID,
			SelectedIndex:    graded.SelectedIndex,
			IsCorrect:        graded.IsCorrect,
			PointsEarned:     graded.PointsEarned,
			TimeSpentSeconds: graded.TimeSpentSeconds,
			Position:         i,
		})
	}

	if err := s.attempts.Create(spanCtx, &attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			observability.AttemptsSubmitted().WithLabelValues("duplicate").Inc()
			return dto.SubmitTestResponse{}, ErrDuplicateAttempt
		}
		span.RecordError(err)
		return dto.SubmitTestResponse{}, err
	}

	observability.AttemptsSubmitted().WithLabelValues(string(reason)).Inc()

	if err := s.sessions.Terminate(studentID, testID, reason); err != nil && !errors.Is(err, ErrSessionNotFound) {
		s.logger.Warn().Err(err).Msg("session termination failed")
	}

	s.notifyResult(spanCtx, assignment, attempt)

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("test_id", testID).
		Int("attempt_number", attempt.AttemptNumber).
		Int("score", attempt.Score).
		Int("percentage", attempt.Percentage).
		Str("reason", string(reason)).
		Msg("attempt recorded")

	return dto.SubmitTestResponse{
		AttemptNumber:  attempt.AttemptNumber,
		Score:          attempt.Score,
		Percentage:     attempt.Percentage,
		CorrectAnswers: attempt.CorrectAnswers,
		TotalQuestions: attempt.TotalQuestions,
		SubmittedAt:    submittedAt,
	}, nil
}

// checkEligibility runs the shared start/submit validation chain: test exists
// and is published, an assignment covers the student, the deadline has not
// passed and the completed-attempt count is below the cap.
func (s *examService) checkEligibility(ctx context.Context, studentID, testID uint) (models.Test, models.TestAssignment, int, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Test{}, models.TestAssignment{}, 0, ErrTestNotFound
		}
		return models.Test{}, models.TestAssignment{}, 0, err
	}
	if !test.IsPublished {
		return models.Test{}, models.TestAssignment{}, 0, ErrTestNotFound
	}

	assignment, err := s.assignments.FindForStudent(ctx, studentID, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Test{}, models.TestAssignment{}, 0, ErrNotAssigned
		}
		return models.Test{}, models.TestAssignment{}, 0, err
	}

	if assignment.IsPastDue(s.now()) {
		return models.Test{}, models.TestAssignment{}, 0, ErrDeadlinePassed
	}

	completed, err := s.attempts.CountCompleted(ctx, studentID, testID)
	if err != nil {
		return models.Test{}, models.TestAssignment{}, 0, err
	}
	if !assignment.AllowsAttempt(completed) {
		return models.Test{}, models.TestAssignment{}, 0, ErrAttemptsExhausted
	}

	return test, assignment, completed, nil
}

// questionViews returns the answer-key-stripped question payload, cached per
// test revision so repeated starts don't rebuild it.
func (s *examService) questionViews(ctx context.Context, test models.Test) []dto.QuestionView {
	if s.cache == nil {
		return dto.NewQuestionViewSlice(test)
	}

	cacheKey := fmt.Sprintf("questions:test:%d:%d", test.ID, test.UpdatedAt.Unix())
	if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
		var views []dto.QuestionView
		if unmarshalErr := json.Unmarshal([]byte(cached), &views); unmarshalErr == nil {
			return views
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("failed to read question cache")
	}

	views := dto.NewQuestionViewSlice(test)
	if payload, err := json.Marshal(views); err == nil {
		if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to store question cache")
		}
	}

	return views
}

func (s *examService) notifyResult(ctx context.Context, assignment models.TestAssignment, attempt models.Attempt) {
	if s.notifier == nil {
		return
	}

	message := fmt.Sprintf("Result for %q: %d/%d points (%d%%)", assignment.Test.Title, attempt.Score, assignment.Test.TotalPoints, attempt.Percentage)
	payload := map[string]interface{}{
		"test_id":        attempt.TestID,
		"attempt_number": attempt.AttemptNumber,
		"score":          attempt.Score,
		"percentage":     attempt.Percentage,
	}

	if _, err := s.notifier.Publish(ctx, dto.NotificationPublishRequest{
		UserID:  attempt.StudentID,
		Kind:    models.NotificationTestResult,
		Message: message,
		Payload: payload,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("result notification failed")
	}

	if assignment.CreatedBy != 0 {
		if _, err := s.notifier.Publish(ctx, dto.NotificationPublishRequest{
			UserID:  assignment.CreatedBy,
			Kind:    models.NotificationTestResult,
			Message: fmt.Sprintf("Student %d completed %q", attempt.StudentID, assignment.Test.Title),
			Payload: payload,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("creator notification failed")
		}
	}
}
