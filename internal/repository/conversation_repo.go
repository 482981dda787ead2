package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/skillup-api/internal/models"
)

// ConversationRepository persists direct-message conversations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id uint) (models.Conversation, error)
	GetByPairKey(ctx context.Context, pairKey string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	SetLastMessage(ctx context.Context, conversationID, messageID uint, at time.Time) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) populated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("ParticipantA").
		Preload("ParticipantB").
		Preload("Course").
		Preload("LastMessage").
		Preload("LastMessage.Sender")
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.populated(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, err
	}

	return conversation, nil
}

func (r *conversationRepository) GetByPairKey(ctx context.Context, pairKey string) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.populated(ctx).Where("pair_key = ?", pairKey).First(&conversation).Error; err != nil {
		return models.Conversation{}, err
	}

	return conversation, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := r.populated(ctx).
		Where("participant_a_id = ? OR participant_b_id = ?", userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&conversations).Error; err != nil {
		return nil, err
	}

	return conversations, nil
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).
		Omit("ParticipantA", "ParticipantB", "Course", "LastMessage").
		Create(conversation).Error
}

func (r *conversationRepository) SetLastMessage(ctx context.Context, conversationID, messageID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"updated_at":      at,
		}).Error
}
