// Package history keeps a bounded per-conversation cache of the most recent
// encrypted messages in the shared store, for replay to (re)connecting
// clients. It is not durable storage; the relational layer owns that.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cipherchat/internal/store"
)

// DefaultCap is the number of recent messages kept per conversation.
const DefaultCap = 100

func conversationKey(conversationID uint) string {
	return fmt.Sprintf("chat:%d", conversationID)
}

// Entry is one cached message. Content is always ciphertext; decryption is
// the reader's responsibility.
type Entry struct {
	Content string `json:"content"`
	UserID  uint   `json:"user_id"`
}

// Buffer is the recent-message ring. Concurrent appends from different
// instances interleave through the store's atomic push-and-trim.
type Buffer struct {
	kv       store.KeyValueStore
	capacity int64
	logger   *slog.Logger
}

func NewBuffer(kv store.KeyValueStore, capacity int64, logger *slog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{kv: kv, capacity: capacity, logger: logger}
}

// Append inserts the entry at the head of the conversation's ring, evicting
// the oldest entry once the cap is exceeded.
func (b *Buffer) Append(ctx context.Context, conversationID uint, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := b.kv.ListPushTrim(ctx, conversationKey(conversationID), string(data), b.capacity); err != nil {
		return fmt.Errorf("cache message: %w", err)
	}
	return nil
}

// ReadAll returns the conversation's ring newest-first. Entries that fail to
// decode are skipped rather than failing the whole read.
func (b *Buffer) ReadAll(ctx context.Context, conversationID uint) ([]Entry, error) {
	raw, err := b.kv.ListRange(ctx, conversationKey(conversationID))
	if err != nil {
		return nil, fmt.Errorf("read message cache: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			b.logger.Warn("skipping undecodable cache entry", "conversationID", conversationID, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
