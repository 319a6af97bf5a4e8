// Package realtime is the delivery core: the per-user connection registry,
// conversation broadcast, and per-connection session handling. One Hub exists
// per process and is injected into every session.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cipherchat/internal/store"
)

// MemberLister resolves a conversation to its member user ids. Backed by the
// relational layer; the hub consults it before every broadcast so messages
// never leak to non-members.
type MemberLister interface {
	MemberIDs(ctx context.Context, conversationID uint) ([]uint, error)
}

// Presence is the fleet-wide online view the session handler marks on
// connect/disconnect.
type Presence interface {
	MarkOnline(ctx context.Context, userID uint, username string) error
	MarkOffline(ctx context.Context, userID uint) error
}

// NotificationBus is the cross-instance wake channel.
type NotificationBus interface {
	Publish(ctx context.Context, userID uint, text string) error
	Subscribe(ctx context.Context, userID uint) (store.Subscription, error)
}

type userEntry struct {
	clients   map[*Client]bool
	cancelSub context.CancelFunc
}

// Hub owns the mapping from user id to that user's local connections. It is
// the only writer of that mapping. Sends never block while the lock is held:
// delivery goes through each client's buffered channel.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]*userEntry

	members MemberLister
	bus     NotificationBus
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(members MemberLister, bus NotificationBus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		users:   make(map[uint]*userEntry),
		members: members,
		bus:     bus,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds the connection to the user's local set. The first local
// connection for a user also opens that user's notification subscription.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	entry := h.users[client.userID]
	first := entry == nil
	if first {
		entry = &userEntry{clients: make(map[*Client]bool)}
		h.users[client.userID] = entry
	}
	entry.clients[client] = true
	if first {
		subCtx, cancel := context.WithCancel(h.ctx)
		entry.cancelSub = cancel
		go h.forwardNotifications(subCtx, client.userID)
	}
	h.mu.Unlock()

	client.setState(stateActive)
	h.logger.Info("client registered", "clientID", client.id, "userID", client.userID)
}

// Unregister removes the connection; when the user's local set becomes empty
// the entry is deleted and the notification subscription closed. Safe to
// call for a connection that was never registered.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	entry := h.users[client.userID]
	if entry != nil {
		delete(entry.clients, client)
		if len(entry.clients) == 0 {
			if entry.cancelSub != nil {
				entry.cancelSub()
			}
			delete(h.users, client.userID)
		}
	}
	h.mu.Unlock()

	client.setState(stateClosed)
	h.logger.Info("client unregistered", "clientID", client.id, "userID", client.userID)
}

// HasLocalConnections reports whether the user holds at least one connection
// on this instance.
func (h *Hub) HasLocalConnections(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID] != nil
}

// LocalConnections returns the number of live connections on this instance.
func (h *Hub) LocalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, entry := range h.users {
		n += len(entry.clients)
	}
	return n
}

// BroadcastToConversation delivers the payload to every local connection of
// every conversation member. A failing recipient is dropped from the
// registry without aborting delivery to the rest.
func (h *Hub) BroadcastToConversation(ctx context.Context, conversationID uint, payload []byte) error {
	members, err := h.members.MemberIDs(ctx, conversationID)
	if err != nil {
		h.logger.Warn("cannot resolve conversation members, skipping broadcast",
			"conversationID", conversationID, "error", err)
		return fmt.Errorf("resolve conversation members: %w", err)
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(members))
	for _, userID := range members {
		if entry := h.users[userID]; entry != nil {
			for client := range entry.clients {
				recipients = append(recipients, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		h.deliver(client, payload)
	}
	return nil
}

// NotifyUser sends a notification frame to every local connection of the
// user. No-op when the user has no local connections; cross-instance
// delivery happens through the bus subscription on the owning instance.
func (h *Hub) NotifyUser(userID uint, text string) {
	h.mu.RLock()
	entry := h.users[userID]
	recipients := make([]*Client, 0)
	if entry != nil {
		for client := range entry.clients {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	frame := NotificationFrame(text)
	for _, client := range recipients {
		h.deliver(client, frame)
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	if err := client.Send(payload); err != nil {
		h.logger.Warn("dropping connection after failed send",
			"clientID", client.id, "userID", client.userID, "error", err)
		h.Unregister(client)
		client.Close()
	}
}

// forwardNotifications pumps the user's bus channel into local delivery for
// as long as the user has a connection on this instance.
func (h *Hub) forwardNotifications(ctx context.Context, userID uint) {
	sub, err := h.bus.Subscribe(ctx, userID)
	if err != nil {
		h.logger.Warn("notification subscription unavailable, cross-instance alerts lost",
			"userID", userID, "error", err)
		return
	}
	defer sub.Close()

	for {
		select {
		case text, ok := <-sub.Messages():
			if !ok {
				return
			}
			h.NotifyUser(userID, text)
		case <-ctx.Done():
			return
		}
	}
}

// Stop closes every connection. Each session observes its connection close,
// unregisters, and fires the presence cleanup on its own exit path.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.RLock()
	clients := make([]*Client, 0)
	for _, entry := range h.users {
		for client := range entry.clients {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
	h.logger.Info("hub stopped", "connectionsClosed", len(clients))
}
