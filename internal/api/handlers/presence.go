package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cipherchat/internal/presence"
)

type PresenceHandler struct {
	registry *presence.Registry
}

func NewPresenceHandler(registry *presence.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// ListOnline handles GET /online-users.
func (h *PresenceHandler) ListOnline(c *gin.Context) {
	users, err := h.registry.ListOnline(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list online users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"online_users": users})
}
