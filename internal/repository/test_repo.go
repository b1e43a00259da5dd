package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/models"
)

// TestRepository defines persistence operations for test definitions.
type TestRepository interface {
	List(ctx context.Context) ([]models.Test, error)
	GetByID(ctx context.Context, id uint) (models.Test, error)
	Create(ctx context.Context, test *models.Test) error
	Update(ctx context.Context, test *models.Test) error
	ReplaceQuestions(ctx context.Context, test *models.Test, questions []models.Question) error
}

type testRepository struct {
	db *gorm.DB
}

// NewTestRepository instantiates a GORM-backed repository.
func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Test{}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

func (r *testRepository) List(ctx context.Context) ([]models.Test, error) {
	var tests []models.Test
	if err := r.baseQuery(ctx).Order("created_at DESC").Find(&tests).Error; err != nil {
		return nil, err
	}

	return tests, nil
}

func (r *testRepository) GetByID(ctx context.Context, id uint) (models.Test, error) {
	var test models.Test
	if err := r.baseQuery(ctx).First(&test, id).Error; err != nil {
		return models.Test{}, err
	}

	return test, nil
}

func (r *testRepository) Create(ctx context.Context, test *models.Test) error {
	return r.db.WithContext(ctx).Create(test).Error
}

func (r *testRepository) Update(ctx context.Context, test *models.Test) error {
	return r.db.WithContext(ctx).Save(test).Error
}

// ReplaceQuestions swaps the full question set in one transaction and updates
// the derived totals on the test row.
func (r *testRepository) ReplaceQuestions(ctx context.Context, test *models.Test, questions []models.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}

		test.Questions = questions
		for i := range test.Questions {
			test.Questions[i].TestID = test.ID
		}
		test.RecalculateTotals()

		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(test).Error
	})
}
