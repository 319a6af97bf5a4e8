package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"cipherchat/internal/models"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *models.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByConversation pages through a conversation's messages, oldest first.
func (r *MessageRepository) FindByConversation(conversationID uint, skip, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at").
		Offset(skip).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	return messages, nil
}
