package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
	"github.com/noah-isme/skillup-api/internal/observability"
	"github.com/noah-isme/skillup-api/internal/repository"
)

// Message transports, used as metric labels.
const (
	TransportHTTP      = "http"
	TransportWebsocket = "websocket"
)

// MessagePublisher delivers a persisted message to live room members.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, message dto.MessageResponse)
}

// ConversationService implements direct messaging between two users.
type ConversationService interface {
	Open(ctx context.Context, actor Actor, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error)
	List(ctx context.Context, actor Actor) ([]dto.ConversationResponse, error)
	Messages(ctx context.Context, actor Actor, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error)
	Send(ctx context.Context, actor Actor, conversationID uint, payload dto.MessageCreateRequest) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, actor Actor, messageID uint) (dto.MessageResponse, error)
	// PostMessage is the single write path shared by every transport.
	PostMessage(ctx context.Context, senderID, conversationID uint, content, transport string) (dto.MessageResponse, error)
	// Participant loads the conversation and checks userID belongs to it.
	Participant(ctx context.Context, userID, conversationID uint) (models.Conversation, error)
	SetPublisher(publisher MessagePublisher)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	courses       repository.CourseRepository
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time

	mu        sync.RWMutex
	publisher MessagePublisher
}

// NewConversationService constructs the conversation service.
func NewConversationService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, courses repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &conversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		courses:       courses,
		validator:     validate,
		sanitizer:     sanitizer,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/skillup-api/internal/service/conversation"),
		now:           time.Now,
	}
}

func (s *conversationService) SetPublisher(publisher MessagePublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = publisher
}

func (s *conversationService) Open(ctx context.Context, actor Actor, payload dto.ConversationCreateRequest) (dto.ConversationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationResponse{}, err
	}
	if payload.ParticipantID == actor.ID {
		return dto.ConversationResponse{}, ErrSelfConversation
	}

	if _, err := s.users.GetByID(ctx, payload.ParticipantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ConversationResponse{}, ErrUserNotFound
		}
		return dto.ConversationResponse{}, fmt.Errorf("load participant: %w", err)
	}

	if payload.CourseID != nil {
		if _, err := s.courses.GetByID(ctx, *payload.CourseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ConversationResponse{}, ErrCourseNotFound
			}
			return dto.ConversationResponse{}, fmt.Errorf("load course: %w", err)
		}
	}

	pairKey := models.ConversationPairKey(actor.ID, payload.ParticipantID, payload.CourseID)
	existing, err := s.conversations.GetByPairKey(ctx, pairKey)
	if err == nil {
		observability.ConversationsOpened().WithLabelValues("existing").Inc()
		return dto.NewConversationResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ConversationResponse{}, fmt.Errorf("lookup conversation: %w", err)
	}

	low, high := actor.ID, payload.ParticipantID
	if low > high {
		low, high = high, low
	}
	conversation := models.Conversation{
		ParticipantAID: low,
		ParticipantBID: high,
		CourseID:       payload.CourseID,
		PairKey:        pairKey,
	}

	if err := s.conversations.Create(ctx, &conversation); err != nil {
		if !repository.IsDuplicateKey(err) {
			return dto.ConversationResponse{}, fmt.Errorf("create conversation: %w", err)
		}
		winner, lookupErr := s.conversations.GetByPairKey(ctx, pairKey)
		if lookupErr != nil {
			return dto.ConversationResponse{}, fmt.Errorf("reload conversation after race: %w", lookupErr)
		}
		observability.ConversationsOpened().WithLabelValues("race").Inc()
		s.logger.Debug().Str("pair_key", pairKey).Msg("conversation created concurrently, returning winner")
		return dto.NewConversationResponse(winner), nil
	}

	observability.ConversationsOpened().WithLabelValues("created").Inc()
	s.logger.Info().Uint("conversation_id", conversation.ID).Str("pair_key", pairKey).Msg("conversation opened")

	created, err := s.conversations.GetByID(ctx, conversation.ID)
	if err != nil {
		return dto.ConversationResponse{}, fmt.Errorf("reload conversation: %w", err)
	}
	return dto.NewConversationResponse(created), nil
}

func (s *conversationService) List(ctx context.Context, actor Actor) ([]dto.ConversationResponse, error) {
	conversations, err := s.conversations.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return dto.NewConversationResponseSlice(conversations), nil
}

func (s *conversationService) Messages(ctx context.Context, actor Actor, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	if _, err := s.Participant(ctx, actor.ID, query.ConversationID); err != nil {
		return nil, err
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.messages.ListByConversation(ctx, query.ConversationID, before, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *conversationService) Send(ctx context.Context, actor Actor, conversationID uint, payload dto.MessageCreateRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.PostMessage(ctx, actor.ID, conversationID, payload.Content, TransportHTTP)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	s.mu.RLock()
	publisher := s.publisher
	s.mu.RUnlock()
	if publisher != nil {
		publisher.PublishMessage(ctx, message)
	}

	return message, nil
}

func (s *conversationService) MarkRead(ctx context.Context, actor Actor, messageID uint) (dto.MessageResponse, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrMessageNotFound
		}
		return dto.MessageResponse{}, fmt.Errorf("load message: %w", err)
	}

	if _, err := s.Participant(ctx, actor.ID, message.ConversationID); err != nil {
		return dto.MessageResponse{}, err
	}

	if !message.Read {
		if err := s.messages.MarkRead(ctx, message.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.MessageResponse{}, ErrMessageNotFound
			}
			return dto.MessageResponse{}, fmt.Errorf("mark message read: %w", err)
		}
		message.Read = true
	}

	return dto.NewMessageResponse(message), nil
}

func (s *conversationService) Participant(ctx context.Context, userID, conversationID uint) (models.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !conversation.HasParticipant(userID) {
		return models.Conversation{}, ErrNotParticipant
	}
	return conversation, nil
}

// PostMessage persists the message and then moves the conversation's lastMessage
// pointer. The two writes are sequential; a failed pointer update is logged and
// the stored message is still returned.
func (s *conversationService) PostMessage(ctx context.Context, senderID, conversationID uint, content, transport string) (dto.MessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.post_message", trace.WithAttributes(
		attribute.Int64("chat.conversation_id", int64(conversationID)),
		attribute.Int64("chat.sender_id", int64(senderID)),
		attribute.String("chat.transport", transport),
	))
	defer span.End()

	if _, err := s.Participant(ctx, senderID, conversationID); err != nil {
		span.SetStatus(codes.Error, "not_authorised")
		return dto.MessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if clean == "" {
		span.SetStatus(codes.Error, "empty_content")
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	message := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        clean,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.Create(ctx, &message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return dto.MessageResponse{}, fmt.Errorf("create message: %w", err)
	}

	if err := s.conversations.SetLastMessage(ctx, conversationID, message.ID, message.CreatedAt); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).
			Uint("conversation_id", conversationID).
			Uint("message_id", message.ID).
			Msg("failed to update conversation last message")
	}

	observability.ChatMessagesSent().WithLabelValues(transport).Inc()

	stored, err := s.messages.GetByID(ctx, message.ID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("message_id", message.ID).Msg("failed to reload message with sender")
		return dto.NewMessageResponse(message), nil
	}
	return dto.NewMessageResponse(stored), nil
}
