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

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send handles POST /messages.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.messages.Send(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// History handles GET /messages/:chatID.
func (h *MessageHandler) History(c *gin.Context) {
	conversationID, err := strconv.ParseUint(c.Param("chatID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if skip < 0 {
		skip = 0
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	resp, err := h.messages.History(uint(conversationID), skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
