package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cipherchat/internal/models"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create persists the conversation and attaches the given members. The
// creator must be included in memberIDs by the caller.
func (r *ConversationRepository) Create(conversation *models.Conversation, memberIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}

		for _, userID := range memberIDs {
			var user models.User
			if err := tx.First(&user, "id = ?", userID).Error; err != nil {
				continue // unknown member ids are skipped, not fatal
			}
			if err := tx.Model(conversation).Association("Members").Append(&user); err != nil {
				return fmt.Errorf("attach member %d: %w", userID, err)
			}
		}
		return nil
	})
}

func (r *ConversationRepository) FindByID(id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.First(&conversation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) AddMember(conversationID, userID uint) error {
	var conversation models.Conversation
	if err := r.db.First(&conversation, "id = ?", conversationID).Error; err != nil {
		return err
	}
	var user models.User
	if err := r.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	return r.db.Model(&conversation).Association("Members").Append(&user)
}

func (r *ConversationRepository) FindForUser(userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.
		Joins("JOIN conversation_members ON conversation_members.conversation_id = conversations.id").
		Where("conversation_members.user_id = ?", userID).
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations for user: %w", err)
	}
	return conversations, nil
}

// MemberIDs is the membership port the delivery core filters broadcasts
// through.
func (r *ConversationRepository) MemberIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Table("conversation_members").
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list conversation members: %w", err)
	}
	return ids, nil
}
