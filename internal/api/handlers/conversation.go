package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cipherchat/internal/api/middleware"
	"cipherchat/internal/models"
	"cipherchat/internal/services"
)

type ConversationHandler struct {
	conversations *services.ConversationService
}

func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// Create handles POST /chats.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	var req models.ConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.conversations.Create(c.Request.Context(), userID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List handles GET /chats.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	resp, err := h.conversations.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddUser handles POST /chats/:id/add-user/:userID.
func (h *ConversationHandler) AddUser(c *gin.Context) {
	conversationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	userID, err := strconv.ParseUint(c.Param("userID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.conversations.AddUser(c.Request.Context(), uint(conversationID), uint(userID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation or user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user added"})
}
