package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/observability"
	"github.com/noah-isme/skillup-api/internal/repository"
)

// GradebookInvalidator drops cached read models affected by a submission change.
type GradebookInvalidator interface {
	Invalidate(ctx context.Context, courseID, studentID uint)
}

// SubmissionService handles the student side of the submission lifecycle.
type SubmissionService interface {
	SubmitExam(ctx context.Context, actor Actor, examID uint, payload dto.ExamSubmitRequest) (dto.SubmissionResponse, error)
	SubmitAssignment(ctx context.Context, actor Actor, assignmentID uint, payload dto.AssignmentSubmitRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	exams       repository.ExamRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	gradebook   GradebookInvalidator
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService. gradebook may be nil.
func NewSubmissionService(exams repository.ExamRepository, assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, gradebook GradebookInvalidator, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		exams:       exams,
		assignments: assignments,
		submissions: submissions,
		gradebook:   gradebook,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/skillup-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) SubmitExam(ctx context.Context, actor Actor, examID uint, payload dto.ExamSubmitRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.exam")
	span.SetAttributes(
		attribute.Int64("submission.exam_id", int64(examID)),
		attribute.Int64("submission.student_id", int64(actor.ID)),
	)
	defer span.End()

	if payload.Answers == nil {
		span.SetStatus(codes.Error, "answers_missing")
		return dto.SubmissionResponse{}, ErrInvalidAnswers
	}
	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "exam_not_found")
			return dto.SubmissionResponse{}, ErrExamNotFound
		}
		span.RecordError(err)
		return dto.SubmissionResponse{}, fmt.Errorf("load exam: %w", err)
	}

	if _, err := s.submissions.GetByStudentAndExam(ctx, actor.ID, examID); err == nil {
		observability.SubmissionConflicts().WithLabelValues(models.SubmissionKindExam, "precheck").Inc()
		span.SetStatus(codes.Error, "already_submitted")
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.SubmissionResponse{}, fmt.Errorf("check existing submission: %w", err)
	}

	answers := make([]models.SubmissionAnswer, 0, len(payload.Answers))
	for _, answer := range payload.Answers {
		answers = append(answers, models.SubmissionAnswer{QuestionID: answer.QuestionID, Answer: answer.Answer})
	}

	score := AutoScore(exam.Questions, answers)
	autoScore := score
	grade := score
	id := exam.ID
	submission := models.Submission{
		StudentID:   actor.ID,
		ExamID:      &id,
		Answers:     answers,
		AutoScore:   &autoScore,
		Grade:       &grade,
		Status:      models.SubmissionStatusSubmitted,
		SubmittedAt: s.now().UTC(),
	}

	if err := s.create(ctx, &submission, span); err != nil {
		return dto.SubmissionResponse{}, err
	}

	span.SetAttributes(attribute.Float64("submission.auto_score", score))
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("exam_id", exam.ID).
		Uint("student_id", actor.ID).
		Float64("auto_score", score).
		Msg("exam submitted")

	s.invalidate(ctx, exam.CourseID, actor.ID)
	return s.reload(ctx, submission)
}

func (s *submissionService) SubmitAssignment(ctx context.Context, actor Actor, assignmentID uint, payload dto.AssignmentSubmitRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.assignment")
	span.SetAttributes(
		attribute.Int64("submission.assignment_id", int64(assignmentID)),
		attribute.Int64("submission.student_id", int64(actor.ID)),
	)
	defer span.End()

	payload.FileURL = strings.TrimSpace(payload.FileURL)
	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assignment_not_found")
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.SubmissionResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	if _, err := s.submissions.GetByStudentAndAssignment(ctx, actor.ID, assignmentID); err == nil {
		observability.SubmissionConflicts().WithLabelValues(models.SubmissionKindAssignment, "precheck").Inc()
		span.SetStatus(codes.Error, "already_submitted")
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.SubmissionResponse{}, fmt.Errorf("check existing submission: %w", err)
	}

	submittedAt := s.now().UTC()
	id := assignment.ID
	submission := models.Submission{
		StudentID:    actor.ID,
		AssignmentID: &id,
		FileURL:      payload.FileURL,
		Status:       models.SubmissionStatusSubmitted,
		Late:         assignment.IsPastDue(submittedAt),
		SubmittedAt:  submittedAt,
	}

	if err := s.create(ctx, &submission, span); err != nil {
		return dto.SubmissionResponse{}, err
	}

	span.SetAttributes(attribute.Bool("submission.late", submission.Late))
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignment.ID).
		Uint("student_id", actor.ID).
		Bool("late", submission.Late).
		Msg("assignment submitted")

	s.invalidate(ctx, assignment.CourseID, actor.ID)
	return s.reload(ctx, submission)
}

func (s *submissionService) Get(ctx context.Context, actor Actor, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load submission: %w", err)
	}

	if !canViewSubmission(actor, submission) {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	return dto.NewSubmissionResponse(submission), nil
}

// create persists the submission; a unique index violation means a concurrent
// request for the same (student, item) won and is reported as a conflict.
func (s *submissionService) create(ctx context.Context, submission *models.Submission, span trace.Span) error {
	kind := submission.Kind()
	if err := s.submissions.Create(ctx, submission); err != nil {
		if repository.IsDuplicateKey(err) {
			observability.SubmissionConflicts().WithLabelValues(kind, "unique_index").Inc()
			span.SetStatus(codes.Error, "already_submitted")
			return ErrAlreadySubmitted
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return fmt.Errorf("create submission: %w", err)
	}

	observability.SubmissionsAccepted().WithLabelValues(kind).Inc()
	span.SetAttributes(attribute.Int64("submission.id", int64(submission.ID)))
	return nil
}

func (s *submissionService) reload(ctx context.Context, submission models.Submission) (dto.SubmissionResponse, error) {
	stored, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to reload submission")
		return dto.NewSubmissionResponse(submission), nil
	}
	return dto.NewSubmissionResponse(stored), nil
}

func (s *submissionService) invalidate(ctx context.Context, courseID, studentID uint) {
	if s.gradebook == nil {
		return
	}
	s.gradebook.Invalidate(ctx, courseID, studentID)
}
