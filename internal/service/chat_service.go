package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/middleware"
	"github.com/noah-isme/skillup-api/internal/observability"
)

const (
	chatSendBufferSize = 32
	chatPingInterval   = 30 * time.Second
)

var (
	// ErrChatRateLimited indicates the connection exceeded its inbound frame budget.
	ErrChatRateLimited = errors.New("rate limit exceeded")
	// ErrChatNotJoined indicates a room event for a room the connection has not joined.
	ErrChatNotJoined = errors.New("join the conversation first")
)

// ChatConnection is the subset of a websocket connection the hub relies on.
type ChatConnection interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        uint
	UserName      string
	CorrelationID string
	Context       context.Context
}

// ChatLimits configures the per-connection inbound token bucket.
type ChatLimits struct {
	RatePerSecond float64
	Burst         int
}

// ChatService manages websocket connections, conversation rooms and cross-node delivery.
type ChatService interface {
	MessagePublisher
	ServeConnection(conn ChatConnection, opts ChatConnectionOptions)
	Start(ctx context.Context)
}

type chatService struct {
	conversations ConversationService
	frames        *ChatFrameValidator
	redis         *redis.Client
	redisChannel  string
	nats          *nats.Conn
	natsSubject   string
	validator     *validator.Validate
	limits        ChatLimits
	logger        zerolog.Logger
	tracer        trace.Tracer
	hub           *chatHub
	nodeID        string
}

// chatHub maps each conversation room to its local connections.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    ChatConnection
	send    chan dto.ChatEnvelope
	options ChatConnectionOptions
	service *chatService
	limiter *rate.Limiter
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context

	mu    sync.Mutex
	rooms map[uint]struct{}
}

// chatEvent is the cross-node fan-out payload.
type chatEvent struct {
	Source         string           `json:"source"`
	ConversationID uint             `json:"conversationId"`
	Envelope       dto.ChatEnvelope `json:"envelope"`
	SentAt         time.Time        `json:"sentAt"`
}

type inboundChatEvent struct {
	Source         string `json:"source"`
	ConversationID uint   `json:"conversationId"`
	Envelope       struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	} `json:"envelope"`
}

// NewChatService creates the websocket chat service. redisClient and natsConn may be nil
// for a single-node deployment.
func NewChatService(conversations ConversationService, frames *ChatFrameValidator, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, limits ChatLimits, validate *validator.Validate, logger zerolog.Logger) ChatService {
	if limits.RatePerSecond <= 0 {
		limits.RatePerSecond = 5
	}
	if limits.Burst <= 0 {
		limits.Burst = 10
	}

	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":chat"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	service := &chatService{
		conversations: conversations,
		frames:        frames,
		redis:         redisClient,
		redisChannel:  redisChannel,
		nats:          natsConn,
		natsSubject:   natsSubject,
		validator:     validate,
		limits:        limits,
		logger:        logger.With().Str("component", "chat_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/skillup-api/internal/service/chat"),
		hub: &chatHub{
			rooms: make(map[uint]map[*chatClient]struct{}),
			log:   logger.With().Str("component", "chat_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}

	conversations.SetPublisher(service)
	return service
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *chatService) ServeConnection(conn ChatConnection, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = middleware.CorrelationIDFromContext(baseCtx)
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatEnvelope, chatSendBufferSize),
		options: opts,
		service: s,
		limiter: rate.NewLimiter(rate.Limit(s.limits.RatePerSecond), s.limits.Burst),
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
		rooms:   make(map[uint]struct{}),
	}

	observability.ChatConnectionsTotal().Inc()
	observability.ChatActiveConnections().Inc()
	defer observability.ChatActiveConnections().Dec()

	go client.writer()
	client.reader()
}

// PublishMessage delivers a message persisted outside the channel, e.g. over HTTP.
func (s *chatService) PublishMessage(ctx context.Context, message dto.MessageResponse) {
	envelope := dto.ChatEnvelope{Event: dto.ChatEventMessageReceived, Data: message}
	s.hub.broadcast(message.ConversationID, envelope, nil)
	s.publish(ctx, message.ConversationID, envelope)
}

func (s *chatService) handleFrame(ctx context.Context, client *chatClient, raw []byte) error {
	if !client.limiter.Allow() {
		observability.ChatFrameErrors().WithLabelValues("rate_limited").Inc()
		return ErrChatRateLimited
	}

	frame, err := s.frames.Decode(raw)
	if err != nil {
		observability.ChatFrameErrors().WithLabelValues("schema").Inc()
		return err
	}

	switch frame.Event {
	case dto.ChatEventJoinConversation:
		return s.join(ctx, client, frame.Data)
	case dto.ChatEventLeaveConversation:
		return s.leave(client, frame.Data)
	case dto.ChatEventSendMessage:
		return s.sendMessage(ctx, client, frame.Data)
	case dto.ChatEventTyping, dto.ChatEventStopTyping:
		return s.typing(ctx, client, frame.Event, frame.Data)
	default:
		observability.ChatFrameErrors().WithLabelValues("unknown_event").Inc()
		return fmt.Errorf("%w: unknown event %q", ErrInvalidFrame, frame.Event)
	}
}

func (s *chatService) join(ctx context.Context, client *chatClient, data json.RawMessage) error {
	var payload dto.ChatRoomRequest
	if err := s.decodePayload(data, &payload); err != nil {
		return err
	}

	if _, err := s.conversations.Participant(ctx, client.options.UserID, payload.ConversationID); err != nil {
		observability.ChatFrameErrors().WithLabelValues("join_denied").Inc()
		return err
	}

	client.addRoom(payload.ConversationID)
	if !s.hub.join(payload.ConversationID, client) {
		return nil
	}
	client.deliver(dto.ChatEnvelope{
		Event: dto.ChatEventJoined,
		Data:  dto.ChatRoomEvent{ConversationID: payload.ConversationID},
	})
	return nil
}

func (s *chatService) leave(client *chatClient, data json.RawMessage) error {
	var payload dto.ChatRoomRequest
	if err := s.decodePayload(data, &payload); err != nil {
		return err
	}

	client.removeRoom(payload.ConversationID)
	s.hub.leave(payload.ConversationID, client)
	client.deliver(dto.ChatEnvelope{
		Event: dto.ChatEventLeft,
		Data:  dto.ChatRoomEvent{ConversationID: payload.ConversationID},
	})
	return nil
}

func (s *chatService) sendMessage(ctx context.Context, client *chatClient, data json.RawMessage) error {
	var payload dto.ChatSendRequest
	if err := s.decodePayload(data, &payload); err != nil {
		return err
	}
	if payload.SenderID != 0 && payload.SenderID != client.options.UserID {
		observability.ChatFrameErrors().WithLabelValues("identity").Inc()
		return ErrIdentityMismatch
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("chat.conversation_id", int64(payload.ConversationID)),
		attribute.Int64("chat.sender_id", int64(client.options.UserID)),
	}
	if client.options.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", client.options.CorrelationID))
	}
	spanCtx, span := s.tracer.Start(ctx, "chat.broadcast", trace.WithAttributes(attrs...))
	defer span.End()

	message, err := s.conversations.PostMessage(spanCtx, client.options.UserID, payload.ConversationID, payload.Content, TransportWebsocket)
	if err != nil {
		span.RecordError(err)
		return err
	}

	envelope := dto.ChatEnvelope{Event: dto.ChatEventMessageReceived, Data: message}
	if !s.hub.broadcast(message.ConversationID, envelope, nil)[client] {
		// The sender has not joined the room; still acknowledge to them.
		client.deliver(envelope)
	}
	s.publish(spanCtx, message.ConversationID, envelope)
	return nil
}

func (s *chatService) typing(ctx context.Context, client *chatClient, event string, data json.RawMessage) error {
	var payload dto.ChatTypingRequest
	if err := s.decodePayload(data, &payload); err != nil {
		return err
	}
	if payload.UserID != 0 && payload.UserID != client.options.UserID {
		observability.ChatFrameErrors().WithLabelValues("identity").Inc()
		return ErrIdentityMismatch
	}
	if !client.inRoom(payload.ConversationID) {
		return ErrChatNotJoined
	}

	outbound := dto.ChatEventUserTyping
	userName := strings.TrimSpace(payload.UserName)
	if userName == "" {
		userName = client.options.UserName
	}
	if event == dto.ChatEventStopTyping {
		outbound = dto.ChatEventUserStopTyping
		userName = ""
	}

	envelope := dto.ChatEnvelope{
		Event: outbound,
		Data: dto.ChatTypingEvent{
			ConversationID: payload.ConversationID,
			UserID:         client.options.UserID,
			UserName:       userName,
		},
	}
	s.hub.broadcast(payload.ConversationID, envelope, client)
	s.publish(ctx, payload.ConversationID, envelope)
	return nil
}

func (s *chatService) decodePayload(data json.RawMessage, target interface{}) error {
	if err := json.Unmarshal(data, target); err != nil {
		observability.ChatFrameErrors().WithLabelValues("payload").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := s.validator.Struct(target); err != nil {
		observability.ChatFrameErrors().WithLabelValues("payload").Inc()
		return err
	}
	return nil
}

func (s *chatService) publish(ctx context.Context, conversationID uint, envelope dto.ChatEnvelope) {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(chatEvent{
		Source:         s.nodeID,
		ConversationID: conversationID,
		Envelope:       envelope,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat event")
		return
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish chat event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish chat event to nats")
		}
	}
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent("redis", []byte(msg.Payload))
	}
}

// consumeNATS subscribes without a queue group so every node sees every event.
func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent("nats", msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(broker string, data []byte) {
	var event inboundChatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Str("broker", broker).Msg("invalid chat event")
		return
	}
	if event.Source == s.nodeID || event.ConversationID == 0 {
		return
	}

	observability.ChatFanoutEvents().WithLabelValues(broker).Inc()
	s.hub.broadcast(event.ConversationID, dto.ChatEnvelope{
		Event: event.Envelope.Event,
		Data:  event.Envelope.Data,
	}, nil)
}

func chatErrorMessage(err error) string {
	switch {
	case IsInvalidInput(err), IsForbidden(err), IsNotFound(err), isValidationError(err),
		errors.Is(err, ErrInvalidFrame), errors.Is(err, ErrChatRateLimited), errors.Is(err, ErrChatNotJoined):
		return err.Error()
	default:
		return "internal error"
	}
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// join adds client to room unless the client already closed. Closing happens before the
// client leaves its rooms, so checking under the hub lock keeps dead clients out.
func (h *chatHub) join(room uint, client *chatClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-client.closed:
		return false
	default:
	}

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Uint("conversation_id", room).Uint("user_id", client.options.UserID).Msg("chat client joined room")
	return true
}

func (h *chatHub) leave(room uint, client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

// broadcast queues the envelope for every member except skip and returns the recipients.
func (h *chatHub) broadcast(room uint, envelope dto.ChatEnvelope, skip *chatClient) map[*chatClient]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := make(map[*chatClient]bool, len(h.rooms[room]))
	for client := range h.rooms[room] {
		if client == skip {
			continue
		}
		client.deliver(envelope)
		delivered[client] = true
	}
	return delivered
}

func (h *chatHub) roomSize(room uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (c *chatClient) addRoom(room uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *chatClient) removeRoom(room uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *chatClient) inRoom(room uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *chatClient) joinedRooms() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]uint, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// deliver never blocks; a full queue drops the frame.
func (c *chatClient) deliver(envelope dto.ChatEnvelope) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- envelope:
	default:
		c.service.logger.Warn().Uint("user_id", c.options.UserID).Str("event", envelope.Event).Msg("dropping chat frame for slow client")
	}
}

func (c *chatClient) reader() {
	defer c.close()

	logger := c.service.logger.With().
		Uint("user_id", c.options.UserID).
		Str("correlation_id", c.options.CorrelationID).
		Logger()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		if err := c.service.handleFrame(c.baseCtx, c, raw); err != nil {
			logger.Warn().Err(err).Msg("failed to process chat frame")
			c.deliver(dto.ChatEnvelope{
				Event: dto.ChatEventError,
				Data:  dto.ChatErrorEvent{Message: chatErrorMessage(err)},
			})
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	ticker := time.NewTicker(chatPingInterval)
	defer ticker.Stop()

	for {
		select {
		case envelope := <-c.send:
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		for _, room := range c.joinedRooms() {
			c.service.hub.leave(room, c)
		}
		c.mu.Lock()
		c.rooms = make(map[uint]struct{})
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}
