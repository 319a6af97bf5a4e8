package services

import (
	"context"
	"fmt"
	"log/slog"

	"cipherchat/internal/models"
)

// ConversationStore is the conversation persistence port.
type ConversationStore interface {
	Create(conversation *models.Conversation, memberIDs []uint) error
	FindByID(id uint) (*models.Conversation, error)
	AddMember(conversationID, userID uint) error
	FindForUser(userID uint) ([]models.Conversation, error)
	MemberIDs(ctx context.Context, conversationID uint) ([]uint, error)
}

// Notifier is the slice of the notification bus this layer publishes on
// after durable writes.
type Notifier interface {
	Publish(ctx context.Context, userID uint, text string) error
}

type ConversationService struct {
	conversations ConversationStore
	bus           Notifier
	logger        *slog.Logger
}

func NewConversationService(conversations ConversationStore, bus Notifier, logger *slog.Logger) *ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationService{conversations: conversations, bus: bus, logger: logger}
}

// Create persists a conversation with the creator plus the requested members
// and alerts each added member across the fleet.
func (s *ConversationService) Create(ctx context.Context, creatorID uint, req *models.ConversationRequest) (*models.ConversationResponse, error) {
	memberIDs := []uint{creatorID}
	for _, id := range req.Members {
		if id != creatorID {
			memberIDs = append(memberIDs, id)
		}
	}

	conversation := &models.Conversation{Name: req.Name, IsGroup: req.IsGroup}
	if err := s.conversations.Create(conversation, memberIDs); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("You were added to chat '%s'", conversation.Name)
	for _, userID := range memberIDs {
		if userID == creatorID {
			continue
		}
		if err := s.bus.Publish(ctx, userID, text); err != nil {
			s.logger.Warn("member notification lost", "userID", userID, "error", err)
		}
	}

	return &models.ConversationResponse{
		ID:        conversation.ID,
		Name:      conversation.Name,
		IsGroup:   conversation.IsGroup,
		CreatedAt: conversation.CreatedAt,
	}, nil
}

func (s *ConversationService) ListForUser(userID uint) ([]models.ConversationResponse, error) {
	conversations, err := s.conversations.FindForUser(userID)
	if err != nil {
		return nil, err
	}
	responses := make([]models.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		responses = append(responses, models.ConversationResponse{
			ID:        c.ID,
			Name:      c.Name,
			IsGroup:   c.IsGroup,
			CreatedAt: c.CreatedAt,
		})
	}
	return responses, nil
}

// AddUser attaches the user to the conversation and alerts them.
func (s *ConversationService) AddUser(ctx context.Context, conversationID, userID uint) error {
	if err := s.conversations.AddMember(conversationID, userID); err != nil {
		return err
	}
	text := fmt.Sprintf("You were added to conversation %d", conversationID)
	if err := s.bus.Publish(ctx, userID, text); err != nil {
		s.logger.Warn("member notification lost", "userID", userID, "error", err)
	}
	return nil
}
