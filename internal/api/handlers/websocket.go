package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cipherchat/internal/realtime"
	"cipherchat/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler authenticates and upgrades realtime connections, then
// hands them to the session handler for the rest of their lifetime.
type WebSocketHandler struct {
	sessions *realtime.SessionHandler
	auth     *services.AuthService
	logger   *slog.Logger
}

func NewWebSocketHandler(sessions *realtime.SessionHandler, auth *services.AuthService, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{sessions: sessions, auth: auth, logger: logger}
}

// Serve handles GET /ws/:chatID. Browsers cannot set headers on websocket
// requests, so the token is also accepted as a query parameter.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conversationID, err := strconv.ParseUint(c.Param("chatID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	userID, username, err := h.auth.VerifyIdentity(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.logger.Info("websocket session opened",
		"userID", userID,
		"conversationID", conversationID,
	)
	h.sessions.Serve(conn, uint(conversationID), userID, username)
}
