package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/observability"
	"github.com/noah-isme/skillup-api/internal/repository"
)

const gradeTolerance = 1e-9

// GradingService encapsulates grading workflows for instructors and administrators.
type GradingService interface {
	Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error)
}

type gradingService struct {
	repo      repository.SubmissionRepository
	gradebook GradebookInvalidator
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGradingService constructs the grading service. gradebook may be nil.
func NewGradingService(repo repository.SubmissionRepository, gradebook GradebookInvalidator, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		repo:      repo,
		gradebook: gradebook,
		validator: validate,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		now:       time.Now,
	}
}

// Grade sets the grade and feedback verbatim, replacing any auto score or earlier grade,
// and appends a history entry in the same transaction.
func (s *gradingService) Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/skillup-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		observability.GradingActions().WithLabelValues("invalid").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}
	if *payload.Grade < 0 {
		observability.GradingActions().WithLabelValues("invalid").Inc()
		span.SetStatus(codes.Error, "negative_grade")
		return dto.SubmissionResponse{}, ErrNegativeGrade
	}

	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, fmt.Errorf("load submission: %w", err)
	}

	if !canGrade(actor, submission) {
		observability.GradingActions().WithLabelValues("forbidden").Inc()
		span.SetStatus(codes.Error, "forbidden")
		s.logger.Warn().
			Uint("submission_id", submission.ID).
			Uint("actor_id", actor.ID).
			Str("actor_role", actor.Role).
			Msg("grading attempt rejected")
		return dto.SubmissionResponse{}, ErrForbidden
	}

	if total := submissionTotalPoints(submission); total > 0 && *payload.Grade > total+gradeTolerance {
		observability.GradingActions().WithLabelValues("invalid").Inc()
		span.SetStatus(codes.Error, "grade_exceeds_max")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: maximum is %g", ErrGradeExceedsMax, total)
	}

	var feedback *string
	if payload.Feedback != nil {
		verbatim := *payload.Feedback
		feedback = &verbatim
	}

	grade := *payload.Grade
	gradedAt := s.now().UTC()
	gradedBy := actor.ID
	submission.Grade = &grade
	submission.Feedback = feedback
	submission.Status = models.SubmissionStatusGraded
	submission.GradedAt = &gradedAt
	submission.GradedBy = &gradedBy

	history := models.SubmissionGradeHistory{
		Grade:    grade,
		Feedback: feedback,
		GradedBy: gradedBy,
		GradedAt: gradedAt,
	}
	if err := s.repo.SaveGrade(ctx, &submission, &history); err != nil {
		observability.GradingActions().WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.SubmissionResponse{}, fmt.Errorf("save grade: %w", err)
	}
	submission.History = append(submission.History, history)

	if s.gradebook != nil {
		if course, ok := submissionCourse(submission); ok {
			s.gradebook.Invalidate(ctx, course.ID, submission.StudentID)
		}
	}

	observability.GradingActions().WithLabelValues("graded").Inc()
	span.SetAttributes(
		attribute.Float64("grading.grade", grade),
		attribute.String("grading.status", submission.Status),
	)
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("graded_by", gradedBy).
		Float64("grade", grade).
		Msg("submission graded")

	return dto.NewSubmissionResponse(submission), nil
}
