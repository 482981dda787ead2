package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/models"
)

// CourseRepository reads courses and the identifiers of their gradable items.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	ItemIDs(ctx context.Context, courseID uint) (assignmentIDs []uint, examIDs []uint, err error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Preload("Instructor").First(&course, id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) ItemIDs(ctx context.Context, courseID uint) ([]uint, []uint, error) {
	assignmentIDs := make([]uint, 0)
	if err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("course_id = ?", courseID).
		Pluck("id", &assignmentIDs).Error; err != nil {
		return nil, nil, err
	}

	examIDs := make([]uint, 0)
	if err := r.db.WithContext(ctx).Model(&models.Exam{}).
		Where("course_id = ?", courseID).
		Pluck("id", &examIDs).Error; err != nil {
		return nil, nil, err
	}

	return assignmentIDs, examIDs, nil
}
