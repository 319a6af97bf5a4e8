package presence

import (
	"context"
	"testing"

	"cipherchat/internal/store"
)

func containsUser(users []OnlineUser, id uint, username string) bool {
	for _, u := range users {
		if u.ID == id && u.Username == username {
			return true
		}
	}
	return false
}

func TestMarkOnlineThenOffline(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(store.NewMemory(), nil)

	if err := reg.MarkOnline(ctx, 1, "alice"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}

	users, err := reg.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if !containsUser(users, 1, "alice") {
		t.Errorf("ListOnline = %v, want to include (1, alice)", users)
	}

	if err := reg.MarkOffline(ctx, 1); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	users, err = reg.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("ListOnline after offline = %v, want empty", users)
	}
}

func TestPresenceSurvivesOtherConnections(t *testing.T) {
	ctx := context.Background()
	// Two registries over one store stand in for two fleet instances.
	shared := store.NewMemory()
	instance1 := NewRegistry(shared, nil)
	instance2 := NewRegistry(shared, nil)

	if err := instance1.MarkOnline(ctx, 7, "bob"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}
	if err := instance2.MarkOnline(ctx, 7, "bob"); err != nil {
		t.Fatalf("MarkOnline: %v", err)
	}

	// Disconnect from one instance only; the other still holds a connection.
	if err := instance1.MarkOffline(ctx, 7); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	users, err := instance2.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if !containsUser(users, 7, "bob") {
		t.Errorf("user went offline while still connected elsewhere: %v", users)
	}

	// Last connection anywhere in the fleet clears presence.
	if err := instance2.MarkOffline(ctx, 7); err != nil {
		t.Fatalf("MarkOffline: %v", err)
	}
	users, err = instance1.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("ListOnline after last disconnect = %v, want empty", users)
	}
}

func TestMarkOnlineIsIdempotentInListing(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(store.NewMemory(), nil)

	reg.MarkOnline(ctx, 3, "carol")
	reg.MarkOnline(ctx, 3, "carol")

	users, err := reg.ListOnline(ctx)
	if err != nil {
		t.Fatalf("ListOnline: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("ListOnline returned %d entries for one user, want 1", len(users))
	}
}
