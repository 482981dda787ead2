package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/service"
	"github.com/noah-isme/skillup-api/internal/utils"
)

// AssignmentHandler exposes assignment authoring, retrieval and URL submission.
type AssignmentHandler struct {
	content     service.CourseContentService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(content service.CourseContentService, submissions service.SubmissionService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		content:     content,
		submissions: submissions,
		logger:      logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register binds assignment routes. submitLimiter guards the submit endpoint and may be nil.
func (h *AssignmentHandler) Register(router fiber.Router, submitLimiter fiber.Handler) {
	router.Post("/courses/:courseId/assignments", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleInstructor}))
	router.Get("/assignments/:id", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
	router.Post("/assignments/:id/submit", orPassThrough(submitLimiter), middleware.WithAuth(h.submit, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.content.CreateAssignment(requestContext(c), actorFromContext(c), courseID, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.content.GetAssignment(requestContext(c), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.SubmitAssignment(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment submitted", submission)
}
