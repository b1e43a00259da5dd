package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/models"
)

// AssignmentRepository defines persistence operations for test assignments.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.TestAssignment, error)
	// LatestByTest returns the newest assignment for a test. Legacy duplicate
	// rows may exist; the latest-created one wins and the rest are stale.
	LatestByTest(ctx context.Context, testID uint) (models.TestAssignment, error)
	ListByTest(ctx context.Context, testID uint) ([]models.TestAssignment, error)
	// FindForStudent returns the newest assignment for (student, test).
	FindForStudent(ctx context.Context, studentID, testID uint) (models.TestAssignment, error)
	Create(ctx context.Context, assignment *models.TestAssignment) error
	Update(ctx context.Context, assignment *models.TestAssignment) error
	AddStudents(ctx context.Context, assignmentID uint, studentIDs []uint) error
	ReplaceStudents(ctx context.Context, assignmentID uint, studentIDs []uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.TestAssignment{}).
		Preload("Test").
		Preload("Students")
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.TestAssignment, error) {
	var assignment models.TestAssignment
	if err := r.baseQuery(ctx).First(&assignment, id).Error; err != nil {
		return models.TestAssignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) LatestByTest(ctx context.Context, testID uint) (models.TestAssignment, error) {
	var assignment models.TestAssignment
	if err := r.baseQuery(ctx).
		Where("test_id = ?", testID).
		Order("created_at DESC").
		First(&assignment).Error; err != nil {
		return models.TestAssignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListByTest(ctx context.Context, testID uint) ([]models.TestAssignment, error) {
	var assignments []models.TestAssignment
	if err := r.baseQuery(ctx).
		Where("test_id = ?", testID).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) FindForStudent(ctx context.Context, studentID, testID uint) (models.TestAssignment, error) {
	var assignment models.TestAssignment
	if err := r.baseQuery(ctx).
		Joins("JOIN assignment_students ON assignment_students.assignment_id = test_assignments.id").
		Where("assignment_students.student_id = ?", studentID).
		Where("test_assignments.test_id = ?", testID).
		Order("test_assignments.created_at DESC").
		First(&assignment).Error; err != nil {
		return models.TestAssignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.TestAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.TestAssignment) error {
	return r.db.WithContext(ctx).Omit("Students", "Test").Save(assignment).Error
}

// AddStudents unions the given students into the assignment, skipping ones
// already present.
func (r *assignmentRepository) AddStudents(ctx context.Context, assignmentID uint, studentIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, studentID := range studentIDs {
			var count int64
			if err := tx.Model(&models.AssignmentStudent{}).
				Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			member := models.AssignmentStudent{AssignmentID: assignmentID, StudentID: studentID}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *assignmentRepository) ReplaceStudents(ctx context.Context, assignmentID uint, studentIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", assignmentID).Delete(&models.AssignmentStudent{}).Error; err != nil {
			return err
		}
		for _, studentID := range studentIDs {
			member := models.AssignmentStudent{AssignmentID: assignmentID, StudentID: studentID}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
