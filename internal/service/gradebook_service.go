package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/observability"
	"github.com/noah-isme/skillup-api/internal/repository"
)

// GradebookService produces the read models used by instructors and students to review grades.
type GradebookService interface {
	GradebookInvalidator
	CourseGradebook(ctx context.Context, actor Actor, courseID uint) (dto.CourseGradebookResponse, error)
	StudentGrades(ctx context.Context, studentID uint) (dto.StudentGradesResponse, error)
}

type gradebookService struct {
	courses     repository.CourseRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewGradebookService builds the gradebook read model service. cache may be nil.
func NewGradebookService(courses repository.CourseRepository, submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) GradebookService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &gradebookService{
		courses:     courses,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "gradebook_service").Logger(),
	}
}

func courseGradebookKey(courseID uint) string {
	return fmt.Sprintf("gradebook:course:%d", courseID)
}

func studentGradesKey(studentID uint) string {
	return fmt.Sprintf("gradebook:student:%d", studentID)
}

func (s *gradebookService) CourseGradebook(ctx context.Context, actor Actor, courseID uint) (dto.CourseGradebookResponse, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseGradebookResponse{}, ErrCourseNotFound
		}
		return dto.CourseGradebookResponse{}, fmt.Errorf("load course: %w", err)
	}

	if !canManageCourse(actor, course) {
		return dto.CourseGradebookResponse{}, ErrForbidden
	}

	var response dto.CourseGradebookResponse
	if s.readCache(ctx, courseGradebookKey(courseID), &response) {
		return response, nil
	}

	assignmentIDs, examIDs, err := s.courses.ItemIDs(ctx, courseID)
	if err != nil {
		return dto.CourseGradebookResponse{}, fmt.Errorf("list course items: %w", err)
	}

	submissions := make([]dto.SubmissionResponse, 0)
	if len(assignmentIDs) > 0 || len(examIDs) > 0 {
		items, err := s.submissions.List(ctx, repository.SubmissionFilter{
			AssignmentIDs: assignmentIDs,
			ExamIDs:       examIDs,
		})
		if err != nil {
			return dto.CourseGradebookResponse{}, fmt.Errorf("list course submissions: %w", err)
		}
		submissions = dto.NewSubmissionResponseSlice(items)
	}

	response = dto.CourseGradebookResponse{
		CourseID:    course.ID,
		CourseTitle: course.Title,
		Summary:     dto.SummarizeSubmissions(submissions),
		Submissions: submissions,
	}

	s.writeCache(ctx, courseGradebookKey(courseID), response)
	return response, nil
}

func (s *gradebookService) StudentGrades(ctx context.Context, studentID uint) (dto.StudentGradesResponse, error) {
	var response dto.StudentGradesResponse
	if s.readCache(ctx, studentGradesKey(studentID), &response) {
		return response, nil
	}

	items, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentGradesResponse{}, fmt.Errorf("list student submissions: %w", err)
	}

	submissions := dto.NewSubmissionResponseSlice(items)
	response = dto.StudentGradesResponse{
		StudentID:   studentID,
		Summary:     dto.SummarizeSubmissions(submissions),
		Submissions: submissions,
	}

	s.writeCache(ctx, studentGradesKey(studentID), response)
	return response, nil
}

// Invalidate drops the cached course gradebook and the student's own grade list.
func (s *gradebookService) Invalidate(ctx context.Context, courseID, studentID uint) {
	if s.cache == nil {
		return
	}

	keys := make([]string, 0, 2)
	if courseID != 0 {
		keys = append(keys, courseGradebookKey(courseID))
	}
	if studentID != 0 {
		keys = append(keys, studentGradesKey(studentID))
	}
	if len(keys) == 0 {
		return
	}

	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate gradebook cache")
	}
}

func (s *gradebookService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read gradebook cache")
		}
		observability.GradebookCache().WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal([]byte(cached), target); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed gradebook cache entry")
		observability.GradebookCache().WithLabelValues("miss").Inc()
		return false
	}

	observability.GradebookCache().WithLabelValues("hit").Inc()
	s.logger.Debug().Str("key", key).Msg("gradebook cache hit")
	return true
}

func (s *gradebookService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal gradebook cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store gradebook cache")
	}
}
