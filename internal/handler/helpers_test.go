package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/skillup-api/internal/config"
	"github.com/noah-isme/skillup-api/internal/handler"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/repository"
	"github.com/noah-isme/skillup-api/internal/router"
	"github.com/noah-isme/skillup-api/internal/service"
)

const testJWTSecret = "handler-test-secret"

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	storage    *memoryStorage
	instructor models.User
	student    models.User
	classmate  models.User
	outsider   models.User
	admin      models.User
	course     models.Course
}

type memoryStorage struct {
	names []string
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	m.names = append(m.names, name)
	return "https://cdn.skillup.test/" + name, nil
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%s?mode=memory&cache=shared", uuid.NewString())
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
		&models.Exam{},
		&models.ExamQuestion{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.Conversation{},
		&models.Message{},
	))

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	log := zerolog.New(io.Discard)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examRepo := repository.NewExamRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	gradebook := service.NewGradebookService(courseRepo, submissionRepo, redisClient, time.Minute, log)
	content := service.NewCourseContentService(courseRepo, examRepo, assignmentRepo, validate, log)
	submissions := service.NewSubmissionService(examRepo, assignmentRepo, submissionRepo, gradebook, validate, log)
	grading := service.NewGradingService(submissionRepo, gradebook, validate, log)
	conversations := service.NewConversationService(conversationRepo, messageRepo, userRepo, courseRepo, validate, log)

	frames, err := service.NewChatFrameValidator()
	require.NoError(t, err)
	chat := service.NewChatService(conversations, frames, nil, nil, "", service.ChatLimits{RatePerSecond: 50, Burst: 50}, validate, log)

	storage := &memoryStorage{}
	uploads := service.NewUploadService(storage, assignmentRepo, submissionRepo, submissions, 1, log)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &log})
	router.Register(app, config.Config{AppName: "SkillUp Test", SubmitRateMax: 100, SubmitRateWindow: time.Minute}, router.Dependencies{
		ExamHandler:         handler.NewExamHandler(content, submissions, log),
		AssignmentHandler:   handler.NewAssignmentHandler(content, submissions, log),
		UploadHandler:       handler.NewUploadHandler(uploads, log),
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, grading, log),
		GradesHandler:       handler.NewGradesHandler(gradebook, log),
		ConversationHandler: handler.NewConversationHandler(conversations, log),
		ChatHandler:         handler.NewChatHandler(chat, log),
		JWTMiddleware:       middleware.JWTProtected(testJWTSecret),
	})

	env := &testEnv{app: app, db: db, storage: storage}
	env.instructor = env.createUser(t, "Ines", models.RoleInstructor)
	env.student = env.createUser(t, "Sam", models.RoleStudent)
	env.classmate = env.createUser(t, "Ria", models.RoleStudent)
	env.outsider = env.createUser(t, "Olaf", models.RoleInstructor)
	env.admin = env.createUser(t, "Ada", models.RoleAdmin)

	env.course = models.Course{Title: "Go Fundamentals", InstructorID: env.instructor.ID}
	require.NoError(t, db.Omit("Instructor").Create(&env.course).Error)

	return env
}

func (e *testEnv) createUser(t *testing.T, name, role string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: name + "@skillup.test", Role: role}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.Role,
		"name": user.Name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// call performs a JSON request as user; a zero user sends no token.
func (e *testEnv) call(t *testing.T, method, path string, user models.User, body interface{}) (int, apiEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user.ID != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, user))
	}
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, apiEnvelope) {
	t.Helper()

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope apiEnvelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", string(raw))
	}
	return resp.StatusCode, envelope
}

func decodeData(t *testing.T, envelope apiEnvelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

func startFiberServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return listener.Addr().String()
}
