package realtime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cipherchat/internal/notify"
	"cipherchat/internal/store"
)

func newTestHub(members *fakeMembers) (*Hub, *store.Memory) {
	shared := store.NewMemory()
	hub := NewHub(members, notify.NewBus(shared), nil)
	return hub, shared
}

func registeredClient(hub *Hub, conversationID, userID uint, username string) (*Client, *mockConn) {
	conn := newMockConn()
	client := NewClient(conn, conversationID, userID, username)
	hub.Register(client)
	go client.writePump()
	return client, conn
}

func TestRegisterUnregisterLifecycle(t *testing.T) {
	hub, _ := newTestHub(&fakeMembers{})
	defer hub.Stop()

	clientA, _ := registeredClient(hub, 1, 10, "alice")
	clientB, connB := registeredClient(hub, 1, 10, "alice")

	hub.Unregister(clientA)
	clientA.Close()

	// The remaining connection still receives user notifications.
	hub.NotifyUser(10, "still here")
	waitFor(t, time.Second, func() bool {
		return len(connB.frames()) == 1
	}, "surviving connection did not receive notification")

	frame := string(connB.frames()[0])
	if frame != "NOTIFICATION: still here" {
		t.Errorf("notification frame = %q", frame)
	}

	hub.Unregister(clientB)
	if hub.HasLocalConnections(10) {
		t.Error("user entry still present after last unregister")
	}
}

func TestUnregisterNeverRegistered(t *testing.T) {
	hub, _ := newTestHub(&fakeMembers{})
	defer hub.Stop()

	client := NewClient(newMockConn(), 1, 99, "ghost")
	// Must be a no-op, not a panic.
	hub.Unregister(client)
}

func TestBroadcastFiltersByMembership(t *testing.T) {
	members := &fakeMembers{conversations: map[uint][]uint{5: {1, 2}}}
	hub, _ := newTestHub(members)
	defer hub.Stop()

	_, conn1 := registeredClient(hub, 5, 1, "alice")
	_, conn2 := registeredClient(hub, 5, 2, "bob")
	_, conn3 := registeredClient(hub, 5, 3, "mallory")

	if err := hub.BroadcastToConversation(context.Background(), 5, []byte("payload")); err != nil {
		t.Fatalf("BroadcastToConversation: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(conn1.frames()) == 1 && len(conn2.frames()) == 1
	}, "members did not receive broadcast")

	time.Sleep(50 * time.Millisecond)
	if len(conn3.frames()) != 0 {
		t.Error("non-member received a conversation broadcast")
	}
}

func TestBroadcastSurvivesFailedRecipient(t *testing.T) {
	members := &fakeMembers{conversations: map[uint][]uint{5: {1, 2}}}
	hub, _ := newTestHub(members)
	defer hub.Stop()

	clientBad, _ := registeredClient(hub, 5, 1, "alice")
	_, connGood := registeredClient(hub, 5, 2, "bob")

	// A closing connection fails its Send; delivery to others continues.
	clientBad.Close()

	if err := hub.BroadcastToConversation(context.Background(), 5, []byte("payload")); err != nil {
		t.Fatalf("BroadcastToConversation: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return len(connGood.frames()) == 1
	}, "healthy recipient did not receive broadcast")

	if hub.HasLocalConnections(1) {
		t.Error("failed connection was not unregistered")
	}
}

func TestBroadcastMemberLookupFailure(t *testing.T) {
	members := &fakeMembers{err: errors.New("database down")}
	hub, _ := newTestHub(members)
	defer hub.Stop()

	_, conn := registeredClient(hub, 5, 1, "alice")

	if err := hub.BroadcastToConversation(context.Background(), 5, []byte("payload")); err == nil {
		t.Fatal("expected error when membership cannot be resolved")
	}
	time.Sleep(50 * time.Millisecond)
	if len(conn.frames()) != 0 {
		t.Error("broadcast delivered despite unknown membership")
	}
}

func TestNotifyUserWithoutConnections(t *testing.T) {
	hub, _ := newTestHub(&fakeMembers{})
	defer hub.Stop()
	// No-op, must not panic.
	hub.NotifyUser(404, "anyone there?")
}

func TestCrossInstanceNotification(t *testing.T) {
	// Two hubs over one shared store stand in for two process instances.
	shared := store.NewMemory()
	hub1 := NewHub(&fakeMembers{}, notify.NewBus(shared), nil)
	hub2 := NewHub(&fakeMembers{}, notify.NewBus(shared), nil)
	defer hub1.Stop()
	defer hub2.Stop()

	// User 7 is connected to instance 2 only.
	_, conn := registeredClient(hub2, 1, 7, "grace")

	// Registration opens the bus subscription asynchronously.
	time.Sleep(100 * time.Millisecond)

	// Instance 1 publishes; instance 2's local delivery must fire.
	bus1 := notify.NewBus(shared)
	if err := bus1.Publish(context.Background(), 7, "hi"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(conn.frames()) == 1
	}, "cross-instance notification was not delivered")

	frame := string(conn.frames()[0])
	if !strings.HasPrefix(frame, NotificationPrefix) {
		t.Errorf("frame %q lacks notification prefix", frame)
	}
	if frame != "NOTIFICATION: hi" {
		t.Errorf("frame = %q, want %q", frame, "NOTIFICATION: hi")
	}
}

func TestStopClosesAllConnections(t *testing.T) {
	hub, _ := newTestHub(&fakeMembers{})

	clientA, _ := registeredClient(hub, 1, 1, "alice")
	clientB, _ := registeredClient(hub, 2, 2, "bob")

	hub.Stop()

	if !clientA.isClosing() || !clientB.isClosing() {
		t.Error("Stop left connections open")
	}
}
