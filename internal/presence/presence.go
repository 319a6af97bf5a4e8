// Package presence tracks which users currently hold at least one live
// connection anywhere in the fleet. The view lives in the shared store so
// every instance observes the same membership.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"cipherchat/internal/store"
)

const onlineUsersKey = "online_users"

func userKey(userID uint) string  { return fmt.Sprintf("user:%d", userID) }
func connsKey(userID uint) string { return fmt.Sprintf("user:%d:conns", userID) }

// OnlineUser is one entry of the online set.
type OnlineUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Registry is the fleet-wide presence view. All mutations go through atomic
// store primitives; stale reads across instances are acceptable.
type Registry struct {
	kv     store.KeyValueStore
	logger *slog.Logger
}

func NewRegistry(kv store.KeyValueStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{kv: kv, logger: logger}
}

// MarkOnline records one more live connection for the user. The set-add and
// name write are idempotent; the connection counter makes MarkOffline safe
// when the user is connected to several instances at once.
func (r *Registry) MarkOnline(ctx context.Context, userID uint, username string) error {
	if _, err := r.kv.Incr(ctx, connsKey(userID)); err != nil {
		return fmt.Errorf("increment connection count: %w", err)
	}
	if err := r.kv.SetAdd(ctx, onlineUsersKey, strconv.FormatUint(uint64(userID), 10)); err != nil {
		return fmt.Errorf("add to online set: %w", err)
	}
	if err := r.kv.Set(ctx, userKey(userID), username); err != nil {
		return fmt.Errorf("store display name: %w", err)
	}
	r.logger.Debug("user marked online", "userID", userID)
	return nil
}

// MarkOffline records one connection gone. Only when the fleet-wide counter
// reaches zero is the user removed from the online set; a user connected to
// another instance stays visible.
func (r *Registry) MarkOffline(ctx context.Context, userID uint) error {
	remaining, err := r.kv.Decr(ctx, connsKey(userID))
	if err != nil {
		return fmt.Errorf("decrement connection count: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	if err := r.kv.SetRemove(ctx, onlineUsersKey, strconv.FormatUint(uint64(userID), 10)); err != nil {
		return fmt.Errorf("remove from online set: %w", err)
	}
	if err := r.kv.Del(ctx, userKey(userID), connsKey(userID)); err != nil {
		return fmt.Errorf("delete presence keys: %w", err)
	}
	r.logger.Debug("user marked offline", "userID", userID)
	return nil
}

// ListOnline returns the current online set with display names, in no
// particular order.
func (r *Registry) ListOnline(ctx context.Context) ([]OnlineUser, error) {
	ids, err := r.kv.SetMembers(ctx, onlineUsersKey)
	if err != nil {
		return nil, fmt.Errorf("read online set: %w", err)
	}

	users := make([]OnlineUser, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			r.logger.Warn("skipping malformed online set entry", "entry", raw)
			continue
		}
		username, err := r.kv.Get(ctx, userKey(uint(id)))
		if err != nil {
			if err != store.ErrNotFound {
				return nil, fmt.Errorf("read display name: %w", err)
			}
			// Name key expired or was cleaned up by a racing disconnect.
			continue
		}
		users = append(users, OnlineUser{ID: uint(id), Username: username})
	}
	return users, nil
}
