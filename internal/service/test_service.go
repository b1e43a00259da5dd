package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/models"
	"github.com/examind/examind-api/internal/repository"
)

// Authoring errors.
var (
	ErrTestPublished  = errors.New("published tests cannot be edited")
	ErrTestHasNoQuest = errors.New("a test needs at least one question before publishing")
)

// TestService covers the admin authoring lifecycle: draft, edit, publish.
// Publishing freezes the question set; every subsequent edit is rejected so
// recorded attempts always grade against the content students actually saw.
type TestService interface {
	Create(ctx context.Context, creatorID uint, payload dto.TestCreateRequest) (dto.TestResponse, error)
	Get(ctx context.Context, id uint) (dto.TestResponse, error)
	List(ctx context.Context) ([]dto.TestResponse, error)
	UpdateQuestions(ctx context.Context, id uint, payload dto.TestQuestionsUpdateRequest) (dto.TestResponse, error)
	Publish(ctx context.Context, id uint) (dto.TestResponse, error)
}

type testService struct {
	tests     repository.TestRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       nowFunc
}

// NewTestService constructs the authoring service.
func NewTestService(tests repository.TestRepository, validate *validator.Validate, logger zerolog.Logger) TestService {
	return &testService{
		tests:     tests,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "test_service").Logger(),
		now:       timeNow,
	}
}

func (s *testService) Create(ctx context.Context, creatorID uint, payload dto.TestCreateRequest) (dto.TestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TestResponse{}, err
	}

	questions, err := s.buildQuestions(payload.Questions)
	if err != nil {
		return dto.TestResponse{}, err
	}

	test := models.Test{
		Title:            s.sanitizer.Sanitize(payload.Title),
		Instructions:     s.sanitizer.Sanitize(payload.Instructions),
		TimeLimitMinutes: payload.TimeLimitMinutes,
		CreatedBy:        creatorID,
		Questions:        questions,
	}
	test.RecalculateTotals()

	if err := s.tests.Create(ctx, &test); err != nil {
		return dto.TestResponse{}, err
	}

	s.logger.Info().Uint("test_id", test.ID).Uint("created_by", creatorID).Msg("test created")

	return dto.NewTestResponse(test), nil
}

func (s *testService) Get(ctx context.Context, id uint) (dto.TestResponse, error) {
	test, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TestResponse{}, ErrTestNotFound
		}
		return dto.TestResponse{}, err
	}

	return dto.NewTestResponse(test), nil
}

func (s *testService) List(ctx context.Context) ([]dto.TestResponse, error) {
	tests, err := s.tests.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewTestResponseSlice(tests), nil
}

func (s *testService) UpdateQuestions(ctx context.Context, id uint, payload dto.TestQuestionsUpdateRequest) (dto.TestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TestResponse{}, err
	}

	test, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TestResponse{}, ErrTestNotFound
		}
		return dto.TestResponse{}, err
	}
	if test.IsPublished {
		return dto.TestResponse{}, ErrTestPublished
	}

	questions, err := s.buildQuestions(payload.Questions)
	if err != nil {
		return dto.TestResponse{}, err
	}

	if err := s.tests.ReplaceQuestions(ctx, &test, questions); err != nil {
		return dto.TestResponse{}, err
	}

	s.logger.Info().Uint("test_id", test.ID).Int("questions", len(questions)).Msg("question set replaced")

	return dto.NewTestResponse(test), nil
}

func (s *testService) Publish(ctx context.Context, id uint) (dto.TestResponse, error) {
	test, err := s.tests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TestResponse{}, ErrTestNotFound
		}
		return dto.TestResponse{}, err
	}
	if test.IsPublished {
		return dto.NewTestResponse(test), nil
	}
	if len(test.Questions) == 0 {
		return dto.TestResponse{}, ErrTestHasNoQuest
	}

	publishedAt := s.now()
	test.IsPublished = true
	test.PublishedAt = &publishedAt

	if err := s.tests.Update(ctx, &test); err != nil {
		return dto.TestResponse{}, err
	}

	s.logger.Info().Uint("test_id", test.ID).Msg("test published")

	return dto.NewTestResponse(test), nil
}

// buildQuestions sanitizes authored content and enforces the exactly-one
// correct option rule, which spans fields and so lives outside the validator
// tags.
func (s *testService) buildQuestions(requests []dto.QuestionCreateRequest) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(requests))
	for qi, q := range requests {
		correct := 0
		options := make([]models.Option, 0, len(q.Options))
		for oi, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
			options = append(options, models.Option{
				Text:      s.sanitizer.Sanitize(o.Text),
				IsCorrect: o.IsCorrect,
				Position:  oi,
			})
		}
		if correct != 1 {
			return nil, fmt.Errorf("question %d must have exactly one correct option, got %d: %w", qi+1, correct, ErrValidation)
		}
		questions = append(questions, models.Question{
			Prompt:   s.sanitizer.Sanitize(q.Prompt),
			Points:   q.Points,
			Position: qi,
			Options:  options,
		})
	}

	return questions, nil
}
