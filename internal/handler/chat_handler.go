package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/service"
)

// ChatHandler wires the realtime channel websocket upgrade.
type ChatHandler struct {
	service service.ChatService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if userIDFromContext(c) == 0 {
			return fiber.ErrUnauthorized
		}
		c.Locals("connection_ctx", middleware.ConnectionContext(c))
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	connCtx, _ := conn.Locals("connection_ctx").(context.Context)
	correlation := middleware.CorrelationIDFromContext(connCtx)
	name, _ := conn.Locals("user_name").(string)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		UserName:      name,
		CorrelationID: correlation,
		Context:       connCtx,
	}

	h.logger.Info().Uint("user_id", userID).Str("correlation_id", correlation).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Str("correlation_id", correlation).Msg("chat websocket disconnected")
}

func websocketUserID(conn *websocket.Conn) uint {
	switch v := conn.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	case string:
		var id uint
		if _, err := fmt.Sscan(v, &id); err == nil {
			return id
		}
	}
	return 0
}
