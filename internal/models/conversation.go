package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Conversation groups users who receive each other's messages.
type Conversation struct {
	gorm.Model
	Name    string `gorm:"not null" json:"name"`
	IsGroup bool   `gorm:"default:false" json:"is_group"`

	Members []*User `gorm:"many2many:conversation_members" json:"-"`
}

/** -------------------- DTOs -------------------- */
type ConversationRequest struct {
	Name    string `json:"name" binding:"required"`
	IsGroup bool   `json:"is_group"`
	Members []uint `json:"members"`
}

type ConversationResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
}
