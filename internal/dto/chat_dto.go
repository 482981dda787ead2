package dto

import "encoding/json"

// Channel events sent by clients.
const (
	ChatEventJoinConversation  = "join_conversation"
	ChatEventLeaveConversation = "leave_conversation"
	ChatEventSendMessage       = "send_message"
	ChatEventTyping            = "typing"
	ChatEventStopTyping        = "stop_typing"
)

// Channel events emitted by the server.
const (
	ChatEventJoined          = "joined"
	ChatEventLeft            = "left"
	ChatEventMessageReceived = "message_received"
	ChatEventUserTyping      = "user_typing"
	ChatEventUserStopTyping  = "user_stop_typing"
	ChatEventError           = "error"
)

// ChatFrame is the inbound envelope of every channel frame.
type ChatFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatEnvelope is the outbound envelope written to connections.
type ChatEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ChatRoomRequest targets a conversation room for join and leave.
type ChatRoomRequest struct {
	ConversationID uint `json:"conversationId" validate:"required,gt=0"`
}

// ChatSendRequest represents a message posted over the channel.
type ChatSendRequest struct {
	ConversationID uint   `json:"conversationId" validate:"required,gt=0"`
	SenderID       uint   `json:"senderId"`
	Content        string `json:"content" validate:"required,min=1,max=4000"`
}

// ChatTypingRequest carries typing presence from a client.
type ChatTypingRequest struct {
	ConversationID uint   `json:"conversationId" validate:"required,gt=0"`
	UserID         uint   `json:"userId"`
	UserName       string `json:"userName" validate:"max=255"`
}

// ChatRoomEvent acknowledges a join or leave.
type ChatRoomEvent struct {
	ConversationID uint `json:"conversationId"`
}

// ChatTypingEvent is broadcast to other members of a room.
type ChatTypingEvent struct {
	ConversationID uint   `json:"conversationId"`
	UserID         uint   `json:"userId"`
	UserName       string `json:"userName,omitempty"`
}

// ChatErrorEvent reports a failed frame to its originating connection.
type ChatErrorEvent struct {
	Message string `json:"message"`
}
