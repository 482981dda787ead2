package dto

import (
	"time"

	"github.com/noah-isme/skillup-api/internal/models"
)

// ConversationCreateRequest opens or retrieves a direct conversation with another user.
type ConversationCreateRequest struct {
	ParticipantID uint  `json:"participantId" validate:"required,gt=0"`
	CourseID      *uint `json:"courseId" validate:"omitempty,gt=0"`
}

// MessageCreateRequest is the HTTP payload for posting a message.
type MessageCreateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// MessageHistoryQuery filters a conversation's message history.
type MessageHistoryQuery struct {
	ConversationID uint       `validate:"required,gt=0"`
	Before         *time.Time `query:"before"`
	Limit          int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse is the serialized representation of a conversation message.
type MessageResponse struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	SenderID       uint      `json:"senderId"`
	Sender         *UserLite `json:"sender,omitempty"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationResponse is the populated view of a conversation.
type ConversationResponse struct {
	ID           uint             `json:"id"`
	Participants []UserLite       `json:"participants"`
	CourseID     *uint            `json:"courseId"`
	Course       *CourseLite      `json:"course,omitempty"`
	LastMessage  *MessageResponse `json:"lastMessage"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(model models.Message) MessageResponse {
	return MessageResponse{
		ID:             model.ID,
		ConversationID: model.ConversationID,
		SenderID:       model.SenderID,
		Sender:         NewUserLite(model.Sender),
		Content:        model.Content,
		Read:           model.Read,
		CreatedAt:      model.CreatedAt,
	}
}

// NewMessageResponseSlice converts message models into DTOs preserving order.
func NewMessageResponseSlice(items []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewMessageResponse(item))
	}
	return out
}

// NewConversationResponse converts a populated conversation model into a DTO.
func NewConversationResponse(model models.Conversation) ConversationResponse {
	participants := make([]UserLite, 0, 2)
	for _, user := range []models.User{model.ParticipantA, model.ParticipantB} {
		if lite := NewUserLite(user); lite != nil {
			participants = append(participants, *lite)
		}
	}

	response := ConversationResponse{
		ID:           model.ID,
		Participants: participants,
		CourseID:     model.CourseID,
		Course:       NewCourseLite(model.Course),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if model.LastMessage != nil && model.LastMessage.ID != 0 {
		last := NewMessageResponse(*model.LastMessage)
		response.LastMessage = &last
	}

	return response
}

// NewConversationResponseSlice converts conversation models into DTOs.
func NewConversationResponseSlice(items []models.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewConversationResponse(item))
	}
	return out
}
