// Package notify carries out-of-band user notifications across process
// instances over the shared pub/sub channel. Delivery is fire-and-forget: a
// user with no live subscription anywhere simply misses the message.
package notify

import (
	"context"
	"fmt"

	"cipherchat/internal/store"
)

func channelKey(userID uint) string {
	return fmt.Sprintf("notifications:%d", userID)
}

// Bus publishes and subscribes on per-user notification channels.
type Bus struct {
	ps store.PubSub
}

func NewBus(ps store.PubSub) *Bus {
	return &Bus{ps: ps}
}

// Publish broadcasts text on the user's channel. No acknowledgment, no
// persistence.
func (b *Bus) Publish(ctx context.Context, userID uint, text string) error {
	if err := b.ps.Publish(ctx, channelKey(userID), text); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Subscribe opens the user's channel. The caller owns the subscription and
// must close it when the user's last local connection goes away.
func (b *Bus) Subscribe(ctx context.Context, userID uint) (store.Subscription, error) {
	sub, err := b.ps.Subscribe(ctx, channelKey(userID))
	if err != nil {
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}
	return sub, nil
}
