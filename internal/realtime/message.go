package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationPrefix tags out-of-band alert frames so clients can tell them
// apart from chat content. Chat frames are JSON envelopes and never start
// with this prefix.
const NotificationPrefix = "NOTIFICATION: "

// FrameType distinguishes the JSON frames sent to clients.
type FrameType string

const (
	// FrameTypeMessage is a live chat message.
	FrameTypeMessage FrameType = "chat.message"
	// FrameTypeHistory is a replayed message from the recent-message cache.
	FrameTypeHistory FrameType = "chat.history"
)

// ChatFrame is the outbound envelope for chat content. Content is plaintext;
// ciphertext exists only in the cache and the database.
type ChatFrame struct {
	ID             string    `json:"id"`
	Type           FrameType `json:"type"`
	ConversationID uint      `json:"conversation_id"`
	UserID         uint      `json:"user_id"`
	Username       string    `json:"username,omitempty"`
	Content        string    `json:"content"`
	SentAt         int64     `json:"sent_at"`
}

// NewChatFrame builds a frame with a fresh id and the current timestamp.
func NewChatFrame(frameType FrameType, conversationID, userID uint, username, content string) *ChatFrame {
	return &ChatFrame{
		ID:             uuid.New().String(),
		Type:           frameType,
		ConversationID: conversationID,
		UserID:         userID,
		Username:       username,
		Content:        content,
		SentAt:         time.Now().Unix(),
	}
}

// Encode marshals the frame for the wire.
func (f *ChatFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// NotificationFrame wraps alert text in the distinguished prefix.
func NotificationFrame(text string) []byte {
	return []byte(NotificationPrefix + text)
}
