package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/models"
)

// ExamRepository persists exams together with their questions.
type ExamRepository interface {
	GetByID(ctx context.Context, id uint) (models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs an exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC, id ASC")
		}).
		First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}

	return exam, nil
}

// Create inserts the exam and its questions atomically.
func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Course").Create(exam).Error
	})
}
