package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
)

func TestCreateExamAndHideAnswers(t *testing.T) {
	f := newSubmissionFixture(t)
	svc := NewCourseContentService(f.repos.courses, f.repos.exams, f.repos.assignments, testValidator(), testLogger())
	instructor := Actor{ID: f.instructor.ID, Role: models.RoleInstructor}

	created, err := svc.CreateExam(context.Background(), instructor, f.course.ID, dto.ExamCreateRequest{
		Title: "Quiz one",
		Questions: []dto.ExamQuestionCreateRequest{
			{Type: models.QuestionTypeMCQ, Prompt: "Go keyword for concurrency", Options: []string{"go", "async"}, CorrectAnswer: "go", Points: 4},
			{Type: models.QuestionTypeSubjective, Prompt: "Describe channels", Points: 6},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 10.0, created.TotalPoints)
	require.Len(t, created.Questions, 2)
	require.Equal(t, 1, created.Questions[0].Position)

	fetched, err := svc.GetExam(context.Background(), created.ID)
	require.NoError(t, err)
	encoded, err := json.Marshal(fetched)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(encoded), "correctAnswer"))
	require.Equal(t, []string{"go", "async"}, fetched.Questions[0].Options)

	_, err = svc.GetExam(context.Background(), 777)
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestCreateExamRejectsInvalidInput(t *testing.T) {
	f := newSubmissionFixture(t)
	svc := NewCourseContentService(f.repos.courses, f.repos.exams, f.repos.assignments, testValidator(), testLogger())
	instructor := Actor{ID: f.instructor.ID, Role: models.RoleInstructor}

	_, err := svc.CreateExam(context.Background(), instructor, f.course.ID, dto.ExamCreateRequest{
		Title: "Quiz",
		Questions: []dto.ExamQuestionCreateRequest{
			{Type: models.QuestionTypeMCQ, Prompt: "Pick", Options: []string{"a", "b"}, CorrectAnswer: "c", Points: 1},
		},
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = svc.CreateExam(context.Background(), instructor, f.course.ID, dto.ExamCreateRequest{Title: "Quiz"})
	require.True(t, isValidationError(err))

	outsider := Actor{ID: f.student.ID, Role: models.RoleStudent}
	_, err = svc.CreateExam(context.Background(), outsider, f.course.ID, dto.ExamCreateRequest{
		Title:     "Quiz",
		Questions: []dto.ExamQuestionCreateRequest{{Type: models.QuestionTypeSubjective, Prompt: "Why", Points: 1}},
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateAssignment(t *testing.T) {
	f := newSubmissionFixture(t)
	svc := NewCourseContentService(f.repos.courses, f.repos.exams, f.repos.assignments, testValidator(), testLogger())
	instructor := Actor{ID: f.instructor.ID, Role: models.RoleInstructor}

	due := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	created, err := svc.CreateAssignment(context.Background(), instructor, f.course.ID, dto.AssignmentCreateRequest{
		Title:       "Build a CLI",
		DueDate:     due,
		TotalPoints: 50,
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, created.TotalPoints)
	require.Equal(t, f.course.ID, created.CourseID)

	_, err = svc.CreateAssignment(context.Background(), instructor, f.course.ID, dto.AssignmentCreateRequest{
		Title:       "Too late",
		DueDate:     time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		TotalPoints: 10,
	})
	require.ErrorIs(t, err, ErrInvalidDueDate)

	_, err = svc.CreateAssignment(context.Background(), instructor, 1234, dto.AssignmentCreateRequest{Title: "Nowhere", DueDate: due, TotalPoints: 10})
	require.ErrorIs(t, err, ErrCourseNotFound)
}
