package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/repository"
)

type submissionFixture struct {
	db         *gorm.DB
	repos      testRepos
	svc        SubmissionService
	student    models.User
	instructor models.User
	course     models.Course
	exam       models.Exam
}

func newSubmissionFixture(t *testing.T) submissionFixture {
	t.Helper()
	db := setupServiceTestDB(t)
	repos := newTestRepos(db)

	instructor := createUser(t, db, "ines", models.RoleInstructor)
	student := createUser(t, db, "sam", models.RoleStudent)
	course := createCourse(t, db, instructor)
	exam := createExam(t, db, course)

	svc := NewSubmissionService(repos.exams, repos.assignments, repos.submissions, nil, testValidator(), testLogger())
	return submissionFixture{db: db, repos: repos, svc: svc, student: student, instructor: instructor, course: course, exam: exam}
}

func (f submissionFixture) studentActor() Actor {
	return Actor{ID: f.student.ID, Role: models.RoleStudent}
}

func TestSubmitExamAutoGradesMCQ(t *testing.T) {
	f := newSubmissionFixture(t)
	q := f.exam.Questions

	resp, err := f.svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, dto.ExamSubmitRequest{
		Answers: []dto.ExamAnswer{
			{QuestionID: q[0].ID, Answer: "4"},
			{QuestionID: q[1].ID, Answer: "Rome"},
			{QuestionID: q[2].ID, Answer: "They are cheap threads"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionKindExam, resp.Kind)
	require.Equal(t, models.SubmissionStatusSubmitted, resp.Status)
	require.NotNil(t, resp.AutoScore)
	require.Equal(t, 2.0, *resp.AutoScore)
	require.NotNil(t, resp.Grade)
	require.Equal(t, 2.0, *resp.Grade)
	require.Nil(t, resp.GradedAt)
	require.Len(t, resp.Answers, 3)
	require.NotNil(t, resp.Item)
	require.Equal(t, 10.0, resp.Item.TotalPoints)
}

func TestSubmitExamDuplicateIsConflict(t *testing.T) {
	f := newSubmissionFixture(t)
	payload := dto.ExamSubmitRequest{Answers: []dto.ExamAnswer{{QuestionID: f.exam.Questions[0].ID, Answer: "4"}}}

	_, err := f.svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, payload)
	require.NoError(t, err)

	_, err = f.svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, payload)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Where("student_id = ? AND exam_id = ?", f.student.ID, f.exam.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSubmitExamRequiresAnswersArray(t *testing.T) {
	f := newSubmissionFixture(t)

	_, err := f.svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, dto.ExamSubmitRequest{})
	require.ErrorIs(t, err, ErrInvalidAnswers)

	resp, err := f.svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, dto.ExamSubmitRequest{Answers: []dto.ExamAnswer{}})
	require.NoError(t, err)
	require.Equal(t, 0.0, *resp.AutoScore)
}

func TestSubmitExamUnknownExam(t *testing.T) {
	f := newSubmissionFixture(t)

	_, err := f.svc.SubmitExam(context.Background(), f.studentActor(), 9999, dto.ExamSubmitRequest{Answers: []dto.ExamAnswer{}})
	require.ErrorIs(t, err, ErrExamNotFound)
}

type racingSubmissionRepo struct {
	repository.SubmissionRepository
	creates int
}

func (r *racingSubmissionRepo) GetByStudentAndExam(ctx context.Context, studentID, examID uint) (models.Submission, error) {
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (r *racingSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	r.creates++
	return gorm.ErrDuplicatedKey
}

func TestSubmitExamUniqueViolationIsConflict(t *testing.T) {
	f := newSubmissionFixture(t)
	racing := &racingSubmissionRepo{SubmissionRepository: f.repos.submissions}
	svc := NewSubmissionService(f.repos.exams, f.repos.assignments, racing, nil, testValidator(), testLogger())

	_, err := svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, dto.ExamSubmitRequest{Answers: []dto.ExamAnswer{}})
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, 1, racing.creates)
}

func TestSubmitAssignmentMarksLateSubmissions(t *testing.T) {
	f := newSubmissionFixture(t)
	past := createAssignment(t, f.db, f.course, time.Now().Add(-time.Hour), 20)
	future := createAssignment(t, f.db, f.course, time.Now().Add(24*time.Hour), 20)

	late, err := f.svc.SubmitAssignment(context.Background(), f.studentActor(), past.ID, dto.AssignmentSubmitRequest{FileURL: "https://files.example.com/essay.pdf"})
	require.NoError(t, err)
	require.True(t, late.Late)
	require.Nil(t, late.Grade)
	require.Equal(t, "https://files.example.com/essay.pdf", late.FileURL)

	onTime, err := f.svc.SubmitAssignment(context.Background(), f.studentActor(), future.ID, dto.AssignmentSubmitRequest{FileURL: "https://files.example.com/essay.pdf"})
	require.NoError(t, err)
	require.False(t, onTime.Late)

	_, err = f.svc.SubmitAssignment(context.Background(), f.studentActor(), future.ID, dto.AssignmentSubmitRequest{FileURL: "https://files.example.com/again.pdf"})
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitAssignmentValidatesURL(t *testing.T) {
	f := newSubmissionFixture(t)
	assignment := createAssignment(t, f.db, f.course, time.Now().Add(time.Hour), 20)

	_, err := f.svc.SubmitAssignment(context.Background(), f.studentActor(), assignment.ID, dto.AssignmentSubmitRequest{FileURL: "not a url"})
	require.Error(t, err)
	require.True(t, isValidationError(err))

	_, err = f.svc.SubmitAssignment(context.Background(), f.studentActor(), 4242, dto.AssignmentSubmitRequest{FileURL: "https://files.example.com/a.pdf"})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestGetSubmissionVisibility(t *testing.T) {
	f := newSubmissionFixture(t)
	created, err := f.svc.SubmitExam(context.Background(), f.studentActor(), f.exam.ID, dto.ExamSubmitRequest{Answers: []dto.ExamAnswer{}})
	require.NoError(t, err)

	other := createUser(t, f.db, "olga", models.RoleStudent)
	strangerInstructor := createUser(t, f.db, "ivan", models.RoleInstructor)

	_, err = f.svc.Get(context.Background(), f.studentActor(), created.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), Actor{ID: f.instructor.ID, Role: models.RoleInstructor}, created.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), Actor{ID: 999, Role: models.RoleAdmin}, created.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), Actor{ID: other.ID, Role: models.RoleStudent}, created.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(context.Background(), Actor{ID: strangerInstructor.ID, Role: models.RoleInstructor}, created.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(context.Background(), f.studentActor(), 31337)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
