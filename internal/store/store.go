// Package store defines the two ports the delivery core uses for state shared
// across process instances: a key-value store with atomic set/list/counter
// primitives and a publish/subscribe channel. Every instance in the fleet
// talks to the same backing store; no cross-instance locking exists beyond
// the store's own atomicity.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KeyValueStore is the shared mutable state port. Implementations must make
// each call atomic; callers never compose multi-key transactions on top.
type KeyValueStore interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error

	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)

	// ListPushTrim prepends value to the list at key and truncates it to at
	// most capacity entries, atomically with respect to concurrent pushes.
	ListPushTrim(ctx context.Context, key, value string, capacity int64) error
	// ListRange returns the whole list, head (newest) first.
	ListRange(ctx context.Context, key string) ([]string, error)
}

// PubSub is the cross-process notification port. Publishing is
// fire-and-forget: a channel with no live subscribers drops the message.
type PubSub interface {
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe opens a subscription that lives until Close is called or the
	// context is cancelled.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one live pub/sub listener. Messages is closed once the
// subscription ends.
type Subscription interface {
	Messages() <-chan string
	Close() error
}
