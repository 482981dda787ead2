package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillup-api/internal/dto"
	"github.com/noah-isme/skillup-api/internal/models"
)

type recordedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type fakeChatConn struct {
	inbound  chan []byte
	outbound chan recordedFrame
	closed   chan struct{}
	once     sync.Once
}

func newFakeChatConn() *fakeChatConn {
	return &fakeChatConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan recordedFrame, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeChatConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeChatConn) WriteJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame recordedFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	c.outbound <- frame
	return nil
}

func (c *fakeChatConn) WriteMessage(int, []byte) error {
	return nil
}

func (c *fakeChatConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChatConn) send(t *testing.T, event string, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	require.NoError(t, err)
	c.inbound <- payload
}

func (c *fakeChatConn) expect(t *testing.T, event string) recordedFrame {
	t.Helper()
	select {
	case frame := <-c.outbound:
		require.Equal(t, event, frame.Event, "unexpected frame: %s", string(frame.Data))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s frame", event)
		return recordedFrame{}
	}
}

func (c *fakeChatConn) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case frame := <-c.outbound:
		t.Fatalf("unexpected %s frame: %s", frame.Event, string(frame.Data))
	case <-time.After(150 * time.Millisecond):
	}
}

type chatFixture struct {
	conversationFixture
	conversation dto.ConversationResponse
}

func newChatFixture(t *testing.T) chatFixture {
	t.Helper()
	f := newConversationFixture(t)
	return chatFixture{conversationFixture: f, conversation: f.open(t)}
}

func (f chatFixture) newChat(t *testing.T, redisClient *redis.Client, limits ChatLimits) ChatService {
	t.Helper()
	frames, err := NewChatFrameValidator()
	require.NoError(t, err)
	return NewChatService(f.svc, frames, redisClient, nil, "skillup-test", limits, testValidator(), testLogger())
}

func connect(t *testing.T, chat ChatService, user models.User) *fakeChatConn {
	t.Helper()
	conn := newFakeChatConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		chat.ServeConnection(conn, ChatConnectionOptions{UserID: user.ID, UserName: user.Name})
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return conn
}

func joinRoom(t *testing.T, conn *fakeChatConn, conversationID uint) {
	t.Helper()
	conn.send(t, dto.ChatEventJoinConversation, map[string]interface{}{"conversationId": conversationID})
	conn.expect(t, dto.ChatEventJoined)
}

func errorMessage(t *testing.T, frame recordedFrame) string {
	t.Helper()
	var payload dto.ChatErrorEvent
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	return payload.Message
}

func TestChatJoinRequiresParticipant(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})

	outsider := connect(t, chat, f.mallory)
	outsider.send(t, dto.ChatEventJoinConversation, map[string]interface{}{"conversationId": f.conversation.ID})
	frame := outsider.expect(t, dto.ChatEventError)
	require.Equal(t, ErrNotParticipant.Error(), errorMessage(t, frame))
	require.Zero(t, chat.(*chatService).hub.roomSize(f.conversation.ID))

	missing := connect(t, chat, f.alice)
	missing.send(t, dto.ChatEventJoinConversation, map[string]interface{}{"conversationId": 9999})
	frame = missing.expect(t, dto.ChatEventError)
	require.Equal(t, ErrConversationNotFound.Error(), errorMessage(t, frame))
}

func TestChatSendMessagePersistsAndBroadcasts(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})

	alice := connect(t, chat, f.alice)
	bob := connect(t, chat, f.bob)
	joinRoom(t, alice, f.conversation.ID)
	joinRoom(t, bob, f.conversation.ID)

	alice.send(t, dto.ChatEventSendMessage, map[string]interface{}{
		"conversationId": f.conversation.ID,
		"senderId":       f.alice.ID,
		"content":        "hi bob",
	})

	for _, conn := range []*fakeChatConn{alice, bob} {
		frame := conn.expect(t, dto.ChatEventMessageReceived)
		var message dto.MessageResponse
		require.NoError(t, json.Unmarshal(frame.Data, &message))
		require.Equal(t, "hi bob", message.Content)
		require.Equal(t, f.alice.ID, message.SenderID)
	}
	alice.expectSilence(t)

	var messages []models.Message
	require.NoError(t, f.db.Find(&messages).Error)
	require.Len(t, messages, 1)

	stored, err := f.repos.conversations.GetByID(context.Background(), f.conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageID)
	require.Equal(t, messages[0].ID, *stored.LastMessageID)
}

func TestChatSendAcknowledgesSenderOutsideRoom(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})

	alice := connect(t, chat, f.alice)
	alice.send(t, dto.ChatEventSendMessage, map[string]interface{}{
		"conversationId": f.conversation.ID,
		"content":        "quick note",
	})
	frame := alice.expect(t, dto.ChatEventMessageReceived)
	require.Contains(t, string(frame.Data), "quick note")
}

func TestChatSendRejectsOutsidersAndSpoofing(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})

	outsider := connect(t, chat, f.mallory)
	outsider.send(t, dto.ChatEventSendMessage, map[string]interface{}{
		"conversationId": f.conversation.ID,
		"content":        "hello?",
	})
	require.Equal(t, ErrNotParticipant.Error(), errorMessage(t, outsider.expect(t, dto.ChatEventError)))

	alice := connect(t, chat, f.alice)
	alice.send(t, dto.ChatEventSendMessage, map[string]interface{}{
		"conversationId": f.conversation.ID,
		"senderId":       f.bob.ID,
		"content":        "it's bob, trust me",
	})
	require.Equal(t, ErrIdentityMismatch.Error(), errorMessage(t, alice.expect(t, dto.ChatEventError)))

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestChatTypingReachesOtherMembersOnly(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})

	alice := connect(t, chat, f.alice)
	bob := connect(t, chat, f.bob)

	alice.send(t, dto.ChatEventTyping, map[string]interface{}{"conversationId": f.conversation.ID})
	require.Equal(t, ErrChatNotJoined.Error(), errorMessage(t, alice.expect(t, dto.ChatEventError)))

	joinRoom(t, alice, f.conversation.ID)
	joinRoom(t, bob, f.conversation.ID)

	alice.send(t, dto.ChatEventTyping, map[string]interface{}{"conversationId": f.conversation.ID})
	frame := bob.expect(t, dto.ChatEventUserTyping)
	var typing dto.ChatTypingEvent
	require.NoError(t, json.Unmarshal(frame.Data, &typing))
	require.Equal(t, f.alice.ID, typing.UserID)
	require.Equal(t, f.alice.Name, typing.UserName)
	alice.expectSilence(t)

	alice.send(t, dto.ChatEventStopTyping, map[string]interface{}{"conversationId": f.conversation.ID})
	bob.expect(t, dto.ChatEventUserStopTyping)
	alice.expectSilence(t)
}

func TestChatRejectsInvalidFrames(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})
	alice := connect(t, chat, f.alice)

	alice.inbound <- []byte(`not json`)
	require.Contains(t, errorMessage(t, alice.expect(t, dto.ChatEventError)), ErrInvalidFrame.Error())

	alice.inbound <- []byte(`{"event":"dance","data":{"conversationId":1}}`)
	require.Contains(t, errorMessage(t, alice.expect(t, dto.ChatEventError)), ErrInvalidFrame.Error())

	alice.inbound <- []byte(`{"event":"send_message","data":{"conversationId":1}}`)
	require.Contains(t, errorMessage(t, alice.expect(t, dto.ChatEventError)), ErrInvalidFrame.Error())

	alice.inbound <- []byte(`{"event":"join_conversation","data":{"conversationId":0}}`)
	require.Contains(t, errorMessage(t, alice.expect(t, dto.ChatEventError)), ErrInvalidFrame.Error())

	// The connection stays usable after rejected frames.
	joinRoom(t, alice, f.conversation.ID)
}

func TestChatRateLimitsInboundFrames(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{RatePerSecond: 0.001, Burst: 1})
	alice := connect(t, chat, f.alice)

	joinRoom(t, alice, f.conversation.ID)
	alice.send(t, dto.ChatEventTyping, map[string]interface{}{"conversationId": f.conversation.ID})
	require.Equal(t, ErrChatRateLimited.Error(), errorMessage(t, alice.expect(t, dto.ChatEventError)))
}

func TestChatLeaveAndDisconnectCleanRooms(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})
	hub := chat.(*chatService).hub

	alice := connect(t, chat, f.alice)
	bob := connect(t, chat, f.bob)
	joinRoom(t, alice, f.conversation.ID)
	joinRoom(t, bob, f.conversation.ID)
	require.Equal(t, 2, hub.roomSize(f.conversation.ID))

	bob.send(t, dto.ChatEventLeaveConversation, map[string]interface{}{"conversationId": f.conversation.ID})
	bob.expect(t, dto.ChatEventLeft)
	require.Equal(t, 1, hub.roomSize(f.conversation.ID))

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		return hub.roomSize(f.conversation.ID) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatHubSkipsClosedClients(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{}).(*chatService)

	client := &chatClient{
		conn:    newFakeChatConn(),
		send:    make(chan dto.ChatEnvelope, 1),
		service: chat,
		closed:  make(chan struct{}),
		rooms:   make(map[uint]struct{}),
	}
	require.True(t, chat.hub.join(f.conversation.ID, client))
	client.addRoom(f.conversation.ID)

	client.close()
	require.Equal(t, 0, chat.hub.roomSize(f.conversation.ID))

	// A join racing the close must not leave the dead client behind.
	client.addRoom(f.conversation.ID)
	require.False(t, chat.hub.join(f.conversation.ID, client))
	require.Equal(t, 0, chat.hub.roomSize(f.conversation.ID))
	require.Empty(t, chat.hub.broadcast(f.conversation.ID, dto.ChatEnvelope{Event: dto.ChatEventUserTyping}, nil))
}

func TestHTTPMessagesReachLiveRoom(t *testing.T) {
	f := newChatFixture(t)
	chat := f.newChat(t, nil, ChatLimits{})

	bob := connect(t, chat, f.bob)
	joinRoom(t, bob, f.conversation.ID)

	_, err := f.svc.Send(context.Background(), Actor{ID: f.alice.ID}, f.conversation.ID, dto.MessageCreateRequest{Content: "sent over http"})
	require.NoError(t, err)

	frame := bob.expect(t, dto.ChatEventMessageReceived)
	require.Contains(t, string(frame.Data), "sent over http")
}

func TestChatFanoutAcrossNodesViaRedis(t *testing.T) {
	f := newChatFixture(t)
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	nodeA := f.newChat(t, client, ChatLimits{})
	frames, err := NewChatFrameValidator()
	require.NoError(t, err)
	secondConversations := NewConversationService(f.repos.conversations, f.repos.messages, f.repos.users, f.repos.courses, testValidator(), testLogger())
	nodeB := NewChatService(secondConversations, frames, client, nil, "skillup-test", ChatLimits{}, testValidator(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	require.Eventually(t, func() bool {
		return server.PubSubNumSub("skillup-test:chat")["skillup-test:chat"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	alice := connect(t, nodeA, f.alice)
	bob := connect(t, nodeB, f.bob)
	joinRoom(t, alice, f.conversation.ID)
	joinRoom(t, bob, f.conversation.ID)

	alice.send(t, dto.ChatEventSendMessage, map[string]interface{}{
		"conversationId": f.conversation.ID,
		"content":        "across nodes",
	})

	alice.expect(t, dto.ChatEventMessageReceived)
	frame := bob.expect(t, dto.ChatEventMessageReceived)
	require.Contains(t, string(frame.Data), "across nodes")
	alice.expectSilence(t)
}
