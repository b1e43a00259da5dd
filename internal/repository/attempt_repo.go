package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/models"
)

// ErrDuplicateAttempt is returned by Create when an attempt with the same
// (student, test, attempt_number) already exists. The unique index, not
// application logic, decides which of two racing submissions wins.
var ErrDuplicateAttempt = errors.New("attempt already recorded")

// AttemptRepository defines persistence operations for attempts.
type AttemptRepository interface {
	// CountCompleted counts graded attempts only; in-progress rows never
	// influence attempt numbering or the max-attempts policy.
	CountCompleted(ctx context.Context, studentID, testID uint) (int, error)
	FindIncomplete(ctx context.Context, studentID, testID uint) (models.Attempt, error)
	DeleteIncomplete(ctx context.Context, studentID, testID uint) error
	Create(ctx context.Context, attempt *models.Attempt) error
	ListByStudentAndTest(ctx context.Context, studentID, testID uint) ([]models.Attempt, error)
	ListCompletedByTest(ctx context.Context, testID uint) ([]models.Attempt, error)
	GetByID(ctx context.Context, id uint) (models.Attempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates a GORM-backed repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) CountCompleted(ctx context.Context, studentID, testID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("student_id = ? AND test_id = ? AND is_completed = ?", studentID, testID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return int(count), nil
}

func (r *attemptRepository) FindIncomplete(ctx context.Context, studentID, testID uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND test_id = ? AND is_completed = ?", studentID, testID, false).
		Order("created_at DESC").
		First(&attempt).Error; err != nil {
		return models.Attempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) DeleteIncomplete(ctx context.Context, studentID, testID uint) error {
	return r.db.WithContext(ctx).
		Where("student_id = ? AND test_id = ? AND is_completed = ?", studentID, testID, false).
		Delete(&models.Attempt{}).Error
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAttempt
		}
		return err
	}
	return nil
}

func (r *attemptRepository) ListByStudentAndTest(ctx context.Context, studentID, testID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := r.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("student_id = ? AND test_id = ?", studentID, testID).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) ListCompletedByTest(ctx context.Context, testID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := r.db.WithContext(ctx).
		Where("test_id = ? AND is_completed = ?", testID, true).
		Order("submitted_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&attempt, id).Error; err != nil {
		return models.Attempt{}, err
	}

	return attempt, nil
}
