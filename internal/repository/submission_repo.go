package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/models"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	StudentID     *uint
	AssignmentIDs []uint
	ExamIDs       []uint
	Status        *string
}

// SubmissionRepository defines data operations for submissions and their grading history.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error)
	GetByStudentAndExam(ctx context.Context, studentID, examID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	SaveGrade(ctx context.Context, submission *models.Submission, history *models.SubmissionGradeHistory) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Student").
		Preload("Assignment").
		Preload("Assignment.Course").
		Preload("Exam").
		Preload("Exam.Course").
		Preload("Exam.Questions")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	switch {
	case len(filter.AssignmentIDs) > 0 && len(filter.ExamIDs) > 0:
		query = query.Where("assignment_id IN ? OR exam_id IN ?", filter.AssignmentIDs, filter.ExamIDs)
	case len(filter.AssignmentIDs) > 0:
		query = query.Where("assignment_id IN ?", filter.AssignmentIDs)
	case len(filter.ExamIDs) > 0:
		query = query.Where("exam_id IN ?", filter.ExamIDs)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC, id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Preload("History", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("graded_at ASC, id ASC")
		}).
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByStudentAndExam(ctx context.Context, studentID, examID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).
		Omit("Student", "Assignment", "Exam", "History").
		Create(submission).Error
}

// SaveGrade writes the graded fields and appends the history entry in one transaction.
func (r *submissionRepository) SaveGrade(ctx context.Context, submission *models.Submission, history *models.SubmissionGradeHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"grade":     submission.Grade,
			"feedback":  submission.Feedback,
			"status":    submission.Status,
			"graded_at": submission.GradedAt,
			"graded_by": submission.GradedBy,
		}
		if err := tx.Model(&models.Submission{}).Where("id = ?", submission.ID).Updates(updates).Error; err != nil {
			return err
		}

		history.SubmissionID = submission.ID
		return tx.Create(history).Error
	})
}
