package services

import (
	"context"
	"fmt"
	"log/slog"

	"cipherchat/internal/crypto"
	"cipherchat/internal/models"
)

// redactedContent stands in for message rows that fail decryption so history
// reads surface a visible gap instead of failing or leaking garbage.
const redactedContent = "[unreadable message]"

// MessageStore is the durable message persistence port.
type MessageStore interface {
	Create(message *models.Message) error
	FindByConversation(conversationID uint, skip, limit int) ([]models.Message, error)
}

// MessageService persists messages encrypted and alerts the other members of
// the conversation once the row is durable.
type MessageService struct {
	messages      MessageStore
	conversations ConversationStore
	cipher        *crypto.Cipher
	bus           Notifier
	logger        *slog.Logger
}

func NewMessageService(
	messages MessageStore,
	conversations ConversationStore,
	cipher *crypto.Cipher,
	bus Notifier,
	logger *slog.Logger,
) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		cipher:        cipher,
		bus:           bus,
		logger:        logger,
	}
}

// Send encrypts and persists the message, then publishes a wakeup to every
// other member of the conversation.
func (s *MessageService) Send(ctx context.Context, senderID uint, req *models.MessageRequest) (*models.MessageResponse, error) {
	conversation, err := s.conversations.FindByID(req.ConversationID)
	if err != nil {
		return nil, err
	}

	token, err := s.cipher.Encrypt(req.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	message := &models.Message{
		Content:        token,
		UserID:         senderID,
		ConversationID: conversation.ID,
	}
	if err := s.messages.Create(message); err != nil {
		return nil, err
	}

	members, err := s.conversations.MemberIDs(ctx, conversation.ID)
	if err != nil {
		s.logger.Warn("cannot resolve members for notifications", "conversationID", conversation.ID, "error", err)
	}
	text := fmt.Sprintf("New message in '%s'", conversation.Name)
	for _, userID := range members {
		if userID == senderID {
			continue
		}
		if err := s.bus.Publish(ctx, userID, text); err != nil {
			s.logger.Warn("member notification lost", "userID", userID, "error", err)
		}
	}

	return &models.MessageResponse{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		UserID:         message.UserID,
		Content:        req.Content,
		CreatedAt:      message.CreatedAt,
	}, nil
}

// History returns a page of the conversation's messages, decrypted. Rows
// that fail decryption come back redacted, never as garbage plaintext.
func (s *MessageService) History(conversationID uint, skip, limit int) ([]models.MessageResponse, error) {
	rows, err := s.messages.FindByConversation(conversationID, skip, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]models.MessageResponse, 0, len(rows))
	for _, row := range rows {
		content, err := s.cipher.Decrypt(row.Content)
		if err != nil {
			s.logger.Warn("undecryptable message row redacted", "messageID", row.ID, "error", err)
			content = redactedContent
		}
		responses = append(responses, models.MessageResponse{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			UserID:         row.UserID,
			Content:        content,
			CreatedAt:      row.CreatedAt,
		})
	}
	return responses, nil
}
