package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"cipherchat/internal/crypto"
	"cipherchat/internal/history"
)

// redactedContent replaces history entries that fail decryption, so tampered
// ciphertext surfaces as a visible gap instead of garbage plaintext.
const redactedContent = "[unreadable message]"

// SessionHandler drives one connection end-to-end: register, optional
// history replay, receive loop, guaranteed unregister.
type SessionHandler struct {
	hub      *Hub
	cipher   *crypto.Cipher
	buffer   *history.Buffer
	presence Presence
	bus      NotificationBus
	members  MemberLister
	logger   *slog.Logger

	// IdleTimeout closes connections that send no frames for this long.
	// Zero disables the check.
	idleTimeout time.Duration
	replay      bool
}

func NewSessionHandler(
	hub *Hub,
	cipher *crypto.Cipher,
	buffer *history.Buffer,
	presence Presence,
	bus NotificationBus,
	members MemberLister,
	idleTimeout time.Duration,
	replay bool,
	logger *slog.Logger,
) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		hub:         hub,
		cipher:      cipher,
		buffer:      buffer,
		presence:    presence,
		bus:         bus,
		members:     members,
		logger:      logger,
		idleTimeout: idleTimeout,
		replay:      replay,
	}
}

// Serve owns the connection from registration to cleanup. It blocks until
// the peer disconnects, errors, or the hub shuts the connection. Cleanup
// runs on every exit path, panics included.
func (s *SessionHandler) Serve(conn Conn, conversationID, userID uint, username string) {
	client := NewClient(conn, conversationID, userID, username)
	ctx := context.Background()

	s.hub.Register(client)
	go client.writePump()

	if err := s.presence.MarkOnline(ctx, userID, username); err != nil {
		s.logger.Warn("presence unavailable, continuing degraded", "userID", userID, "error", err)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session panicked", "clientID", client.id, "userID", userID, "panic", r)
		}
		s.hub.Unregister(client)
		client.Close()
		if err := s.presence.MarkOffline(ctx, userID); err != nil {
			s.logger.Warn("presence unavailable on disconnect", "userID", userID, "error", err)
		}
	}()

	if s.replay {
		s.replayHistory(ctx, client)
	}
	s.readLoop(ctx, client)
}

// replayHistory backfills the conversation's recent messages, oldest first,
// before live traffic starts.
func (s *SessionHandler) replayHistory(ctx context.Context, client *Client) {
	entries, err := s.buffer.ReadAll(ctx, client.conversationID)
	if err != nil {
		s.logger.Warn("history replay unavailable", "conversationID", client.conversationID, "error", err)
		return
	}

	for i := len(entries) - 1; i >= 0; i-- {
		content, err := s.cipher.Decrypt(entries[i].Content)
		if err != nil {
			s.logger.Warn("undecryptable history entry replaced",
				"conversationID", client.conversationID, "error", err)
			content = redactedContent
		}
		frame := NewChatFrame(FrameTypeHistory, client.conversationID, entries[i].UserID, "", content)
		payload, err := frame.Encode()
		if err != nil {
			continue
		}
		if err := client.Send(payload); err != nil {
			return
		}
	}
}

func (s *SessionHandler) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var idle *time.Timer
	if s.idleTimeout > 0 {
		idle = time.AfterFunc(s.idleTimeout, func() {
			s.logger.Info("closing idle connection", "clientID", client.id, "userID", client.userID)
			client.Close()
		})
		defer idle.Stop()
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !client.isClosing() {
				s.logger.Warn("connection read failed", "clientID", client.id, "userID", client.userID, "error", err)
			}
			return
		}
		if idle != nil {
			idle.Reset(s.idleTimeout)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		text, ok := decodeInbound(messageType, data)
		if !ok {
			// Malformed frame: dropped, session continues.
			s.logger.Debug("dropping malformed inbound frame", "clientID", client.id)
			continue
		}
		s.handleInbound(ctx, client, text)
	}
}

// decodeInbound accepts a single non-empty UTF-8 text frame per logical chat
// message; everything else is malformed.
func decodeInbound(messageType int, data []byte) (string, bool) {
	if messageType != websocket.TextMessage {
		return "", false
	}
	if len(data) == 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// handleInbound runs the delivery pipeline for one message: encrypt, cache,
// broadcast locally, wake members on other instances. Cache and broadcast
// failures are independent; neither ends the session.
func (s *SessionHandler) handleInbound(ctx context.Context, client *Client, text string) {
	token, err := s.cipher.Encrypt(text)
	if err != nil {
		s.logger.Error("encrypt failed, message dropped", "clientID", client.id, "error", err)
		return
	}

	entry := history.Entry{Content: token, UserID: client.userID}
	if err := s.buffer.Append(ctx, client.conversationID, entry); err != nil {
		s.logger.Warn("message cache unavailable, delivery continues",
			"conversationID", client.conversationID, "error", err)
	}

	frame := NewChatFrame(FrameTypeMessage, client.conversationID, client.userID, client.username, text)
	payload, err := frame.Encode()
	if err != nil {
		s.logger.Error("encode outbound frame", "error", err)
		return
	}
	if err := s.hub.BroadcastToConversation(ctx, client.conversationID, payload); err != nil {
		s.logger.Warn("broadcast skipped", "conversationID", client.conversationID, "error", err)
	}

	s.wakeRemoteMembers(ctx, client)
}

// wakeRemoteMembers publishes a bus notification for every conversation
// member with no connection on this instance, so their instances can alert
// them. Fire-and-forget.
func (s *SessionHandler) wakeRemoteMembers(ctx context.Context, client *Client) {
	members, err := s.members.MemberIDs(ctx, client.conversationID)
	if err != nil {
		s.logger.Warn("cannot resolve members for wakeup", "conversationID", client.conversationID, "error", err)
		return
	}

	text := fmt.Sprintf("New message in conversation %d", client.conversationID)
	for _, userID := range members {
		if userID == client.userID || s.hub.HasLocalConnections(userID) {
			continue
		}
		if err := s.bus.Publish(ctx, userID, text); err != nil {
			s.logger.Warn("wakeup publish failed", "userID", userID, "error", err)
		}
	}
}
