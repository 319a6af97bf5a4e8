package notify

import (
	"context"
	"testing"
	"time"

	"cipherchat/internal/store"
)

func TestPublishReachesSubscriber(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemory()
	// Separate Bus values stand in for two process instances over one store.
	publisher := NewBus(shared)
	subscriber := NewBus(shared)

	sub, err := subscriber.Subscribe(ctx, 5)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := publisher.Publish(ctx, 5, "hi"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if msg != "hi" {
			t.Errorf("received %q, want %q", msg, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestPublishIsScopedPerUser(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(store.NewMemory())

	sub, err := bus.Subscribe(ctx, 1)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, 2, "not for user 1"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		t.Errorf("user 1 received another user's notification: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutSubscriberIsDropped(t *testing.T) {
	bus := NewBus(store.NewMemory())
	if err := bus.Publish(context.Background(), 9, "nobody home"); err != nil {
		t.Errorf("Publish with no subscriber should not fail: %v", err)
	}
}
