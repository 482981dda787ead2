package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/service"
	"github.com/noah-isme/skillup-api/internal/utils"
)

// ExamHandler exposes exam authoring, retrieval and submission.
type ExamHandler struct {
	content     service.CourseContentService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewExamHandler constructs an exam handler.
func NewExamHandler(content service.CourseContentService, submissions service.SubmissionService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		content:     content,
		submissions: submissions,
		logger:      logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register binds exam routes. submitLimiter guards the submit endpoint and may be nil.
func (h *ExamHandler) Register(router fiber.Router, submitLimiter fiber.Handler) {
	router.Post("/courses/:courseId/exams", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
	router.Get("/exams/:id", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
	router.Post("/exams/:id/submit", orPassThrough(submitLimiter), middleware.WithAuth(h.submit, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
}

func (h *ExamHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exam, err := h.content.CreateExam(requestContext(c), actorFromContext(c), courseID, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam created", exam)
}

func (h *ExamHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exam, err := h.content.GetExam(requestContext(c), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *ExamHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.SubmitExam(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam submitted", submission)
}
