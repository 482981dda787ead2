package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/repository"
)

// CourseContentService manages the gradable items of a course.
type CourseContentService interface {
	CreateExam(ctx context.Context, actor Actor, courseID uint, payload dto.ExamCreateRequest) (dto.ExamResponse, error)
	CreateAssignment(ctx context.Context, actor Actor, courseID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	GetExam(ctx context.Context, examID uint) (dto.ExamResponse, error)
	GetAssignment(ctx context.Context, assignmentID uint) (dto.AssignmentResponse, error)
}

type courseContentService struct {
	courses     repository.CourseRepository
	exams       repository.ExamRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCourseContentService constructs the course content service.
func NewCourseContentService(courses repository.CourseRepository, exams repository.ExamRepository, assignments repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) CourseContentService {
	return &courseContentService{
		courses:     courses,
		exams:       exams,
		assignments: assignments,
		validator:   validate,
		logger:      logger.With().Str("component", "course_content_service").Logger(),
		now:         time.Now,
	}
}

func (s *courseContentService) authorizeCourse(ctx context.Context, actor Actor, courseID uint) (models.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, fmt.Errorf("load course: %w", err)
	}
	if !canManageCourse(actor, course) {
		return models.Course{}, ErrForbidden
	}
	return course, nil
}

func (s *courseContentService) CreateExam(ctx context.Context, actor Actor, courseID uint, payload dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	course, err := s.authorizeCourse(ctx, actor, courseID)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	questions := make([]models.ExamQuestion, 0, len(payload.Questions))
	for index, item := range payload.Questions {
		question := models.ExamQuestion{
			Position: index + 1,
			Type:     item.Type,
			Prompt:   strings.TrimSpace(item.Prompt),
			Points:   item.Points,
		}
		if item.Type == models.QuestionTypeMCQ {
			if !containsString(item.Options, item.CorrectAnswer) {
				return dto.ExamResponse{}, fmt.Errorf("question %d: %w", index+1, ErrInvalidQuestion)
			}
			question.Options = item.Options
			question.CorrectAnswer = item.CorrectAnswer
		}
		questions = append(questions, question)
	}

	exam := models.Exam{
		CourseID:        course.ID,
		Title:           strings.TrimSpace(payload.Title),
		Description:     strings.TrimSpace(payload.Description),
		DurationMinutes: payload.DurationMinutes,
		Questions:       questions,
	}
	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, fmt.Errorf("create exam: %w", err)
	}

	s.logger.Info().Uint("exam_id", exam.ID).Uint("course_id", course.ID).Int("questions", len(questions)).Msg("exam created")
	return dto.NewExamResponse(exam), nil
}

func (s *courseContentService) CreateAssignment(ctx context.Context, actor Actor, courseID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if dueDate.Before(s.now()) {
		return dto.AssignmentResponse{}, ErrInvalidDueDate
	}

	course, err := s.authorizeCourse(ctx, actor, courseID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		CourseID:    course.ID,
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		DueDate:     dueDate.UTC(),
		TotalPoints: payload.TotalPoints,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("create assignment: %w", err)
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("course_id", course.ID).Msg("assignment created")
	return dto.NewAssignmentResponse(assignment), nil
}

// GetExam returns the exam for taking; correct answers never leave the service.
func (s *courseContentService) GetExam(ctx context.Context, examID uint) (dto.ExamResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, fmt.Errorf("load exam: %w", err)
	}
	return dto.NewExamResponse(exam), nil
}

func (s *courseContentService) GetAssignment(ctx context.Context, assignmentID uint) (dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, fmt.Errorf("load assignment: %w", err)
	}
	return dto.NewAssignmentResponse(assignment), nil
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
