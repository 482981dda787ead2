package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Assignment{},
		&models.Exam{},
		&models.ExamQuestion{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.Message{},
		&models.Conversation{},
	))

	return db
}

type testRepos struct {
	users         repository.UserRepository
	courses       repository.CourseRepository
	assignments   repository.AssignmentRepository
	exams         repository.ExamRepository
	submissions   repository.SubmissionRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func newTestRepos(db *gorm.DB) testRepos {
	return testRepos{
		users:         repository.NewUserRepository(db),
		courses:       repository.NewCourseRepository(db),
		assignments:   repository.NewAssignmentRepository(db),
		exams:         repository.NewExamRepository(db),
		submissions:   repository.NewSubmissionRepository(db),
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
	}
}

func createUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: fmt.Sprintf("%s-%s@skillup.test", name, uuid.NewString()[:8]), Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createCourse(t *testing.T, db *gorm.DB, instructor models.User) models.Course {
	t.Helper()
	course := models.Course{Title: "Go Fundamentals", InstructorID: instructor.ID}
	require.NoError(t, db.Omit("Instructor").Create(&course).Error)
	return course
}

// createExam builds an exam with two MCQs worth 2 and 3 points and one subjective worth 5.
func createExam(t *testing.T, db *gorm.DB, course models.Course) models.Exam {
	t.Helper()
	exam := models.Exam{
		CourseID: course.ID,
		Title:    "Midterm",
		Questions: []models.ExamQuestion{
			{Position: 1, Type: models.QuestionTypeMCQ, Prompt: "2+2", Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 2},
			{Position: 2, Type: models.QuestionTypeMCQ, Prompt: "Capital of France", Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris", Points: 3},
			{Position: 3, Type: models.QuestionTypeSubjective, Prompt: "Explain goroutines", Points: 5},
		},
	}
	require.NoError(t, repository.NewExamRepository(db).Create(context.Background(), &exam))
	return exam
}

func createAssignment(t *testing.T, db *gorm.DB, course models.Course, due time.Time, total float64) models.Assignment {
	t.Helper()
	assignment := models.Assignment{CourseID: course.ID, Title: "Essay", DueDate: due, TotalPoints: total}
	require.NoError(t, repository.NewAssignmentRepository(db).Create(context.Background(), &assignment))
	return assignment
}

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}
