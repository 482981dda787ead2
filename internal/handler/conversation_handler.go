package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/service"
	"github.com/noah-isme/skillup-api/internal/utils"
)

// ConversationHandler exposes direct messaging over HTTP.
type ConversationHandler struct {
	service service.ConversationService
	logger  zerolog.Logger
}

// NewConversationHandler constructs a conversation handler.
func NewConversationHandler(service service.ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		logger:  logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds conversation routes.
func (h *ConversationHandler) Register(router fiber.Router) {
	authenticated := middleware.AuthOptions{RequireUser: true}

	router.Get("", middleware.WithAuth(h.list, authenticated))
	router.Post("", middleware.WithAuth(h.open, authenticated))
	router.Put("/messages/:id/read", middleware.WithAuth(h.markRead, authenticated))
	router.Get("/:id/messages", middleware.WithAuth(h.messages, authenticated))
	router.Post("/:id/messages", middleware.WithAuth(h.send, authenticated))
}

func (h *ConversationHandler) list(c *fiber.Ctx) error {
	conversations, err := h.service.List(requestContext(c), actorFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "conversations retrieved", conversations)
}

func (h *ConversationHandler) open(c *fiber.Ctx) error {
	var payload dto.ConversationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	conversation, err := h.service.Open(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "conversation ready", conversation)
}

func (h *ConversationHandler) messages(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	query := dto.MessageHistoryQuery{ConversationID: id}
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339Nano, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		query.Before = &parsed
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	query.Limit = limit

	messages, err := h.service.Messages(requestContext(c), actorFromContext(c), query)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages retrieved", messages)
}

func (h *ConversationHandler) send(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessageCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ConversationHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	message, err := h.service.MarkRead(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "message marked as read", message)
}
