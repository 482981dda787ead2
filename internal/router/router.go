package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/skillup-api/internal/config"
	"github.com/noah-isme/skillup-api/internal/handler"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler         *handler.ExamHandler
	AssignmentHandler   *handler.AssignmentHandler
	UploadHandler       *handler.UploadHandler
	SubmissionHandler   *handler.SubmissionHandler
	GradesHandler       *handler.GradesHandler
	ConversationHandler *handler.ConversationHandler
	ChatHandler         *handler.ChatHandler
	HealthProbes        map[string]handler.HealthProbe
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	submitWindow := cfg.SubmitRateWindow
	if submitWindow <= 0 {
		submitWindow = time.Minute
	}
	submitLimiter := middleware.RateLimit("submit", cfg.SubmitRateMax, submitWindow)

	// Course content and student submissions share the top-level api group.
	secured := api.Group("", jwtMiddleware)
	if deps.ExamHandler != nil {
		deps.ExamHandler.Register(secured, submitLimiter)
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(secured, submitLimiter)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(secured, submitLimiter)
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions", jwtMiddleware))
	}

	if deps.GradesHandler != nil {
		deps.GradesHandler.Register(api.Group("/grades", jwtMiddleware))
	}

	if deps.ConversationHandler != nil {
		deps.ConversationHandler.Register(api.Group("/conversations", jwtMiddleware))
	}

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat", jwtMiddleware))
	}
}
