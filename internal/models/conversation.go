package models

import (
	"fmt"
	"time"
)

// Conversation is a direct-message thread between exactly two users, optionally tied to a course.
// ParticipantAID is always the lower user id; PairKey enforces one conversation per pair and course.
type Conversation struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ParticipantAID uint      `gorm:"not null;index" json:"-"`
	ParticipantA   User      `gorm:"foreignKey:ParticipantAID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ParticipantBID uint      `gorm:"not null;index" json:"-"`
	ParticipantB   User      `gorm:"foreignKey:ParticipantBID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CourseID       *uint     `gorm:"index" json:"courseId"`
	Course         *Course   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"course,omitempty"`
	PairKey        string    `gorm:"size:96;uniqueIndex;not null" json:"-"`
	LastMessageID  *uint     `json:"lastMessageId"`
	LastMessage    *Message  `gorm:"foreignKey:LastMessageID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"lastMessage,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `gorm:"index" json:"updatedAt"`
}

// Message is a single chat line. Only the read flag changes after creation.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       uint      `gorm:"not null;index" json:"senderId"`
	Sender         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"sender"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Read           bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

// ConversationPairKey builds the normalized lookup key for a participant pair and optional course.
func ConversationPairKey(first, second uint, courseID *uint) string {
	low, high := first, second
	if low > high {
		low, high = high, low
	}
	course := "-"
	if courseID != nil {
		course = fmt.Sprintf("%d", *courseID)
	}
	return fmt.Sprintf("%d:%d:%s", low, high, course)
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID uint) bool {
	return userID != 0 && (c.ParticipantAID == userID || c.ParticipantBID == userID)
}
