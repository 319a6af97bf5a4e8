package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Message is a durable chat message row. Content is always ciphertext;
// decryption happens at the API edge on read.
type Message struct {
	gorm.Model
	Content        string `gorm:"not null" json:"-"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`

	User         User         `gorm:"foreignKey:UserID" json:"-"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

/** -------------------- DTOs -------------------- */
type MessageRequest struct {
	ConversationID uint   `json:"conversation_id" binding:"required"`
	Content        string `json:"content" binding:"required"`
}

type MessageResponse struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	UserID         uint      `json:"user_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
