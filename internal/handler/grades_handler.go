package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/service"
	"github.com/noah-isme/skillup-api/internal/utils"
)

// GradesHandler serves student grade listings and course gradebooks.
type GradesHandler struct {
	service service.GradebookService
	logger  zerolog.Logger
}

// NewGradesHandler constructs a grades handler.
func NewGradesHandler(service service.GradebookService, logger zerolog.Logger) *GradesHandler {
	return &GradesHandler{
		service: service,
		logger:  logger.With().Str("component", "grades_handler").Logger(),
	}
}

// Register binds grade routes.
func (h *GradesHandler) Register(router fiber.Router) {
	router.Get("/student", middleware.WithAuth(h.student, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	router.Get("/course/:courseId", middleware.RequireRole(middleware.AuthRoleInstructor), h.course)
}

func (h *GradesHandler) student(c *fiber.Ctx) error {
	grades, err := h.service.StudentGrades(requestContext(c), userIDFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.OK(c, grades.Submissions, "grades retrieved", grades.Summary)
}

func (h *GradesHandler) course(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	gradebook, err := h.service.CourseGradebook(requestContext(c), actorFromContext(c), courseID)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "gradebook retrieved", gradebook)
}
