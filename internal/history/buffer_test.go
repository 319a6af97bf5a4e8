package history

import (
	"context"
	"fmt"
	"testing"

	"cipherchat/internal/store"
)

func TestAppendEvictsBeyondCap(t *testing.T) {
	ctx := context.Background()
	const cap = 10
	buf := NewBuffer(store.NewMemory(), cap, nil)

	for i := 0; i < cap+5; i++ {
		entry := Entry{Content: fmt.Sprintf("ciphertext-%d", i), UserID: 1}
		if err := buf.Append(ctx, 42, entry); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, err := buf.ReadAll(ctx, 42)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != cap {
		t.Fatalf("ReadAll returned %d entries, want %d", len(entries), cap)
	}

	// Newest first: the head must be the last append, the 5 oldest gone.
	if entries[0].Content != fmt.Sprintf("ciphertext-%d", cap+4) {
		t.Errorf("head entry = %q, want newest", entries[0].Content)
	}
	if entries[cap-1].Content != "ciphertext-5" {
		t.Errorf("tail entry = %q, want ciphertext-5", entries[cap-1].Content)
	}
	for _, entry := range entries {
		for i := 0; i < 5; i++ {
			if entry.Content == fmt.Sprintf("ciphertext-%d", i) {
				t.Errorf("evicted entry %q still present", entry.Content)
			}
		}
	}
}

func TestReadAllEmptyConversation(t *testing.T) {
	buf := NewBuffer(store.NewMemory(), 0, nil)
	entries, err := buf.ReadAll(context.Background(), 7)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ReadAll on empty conversation = %v, want no entries", entries)
	}
}

func TestBuffersAreIndependentPerConversation(t *testing.T) {
	ctx := context.Background()
	buf := NewBuffer(store.NewMemory(), 5, nil)

	buf.Append(ctx, 1, Entry{Content: "one", UserID: 1})
	buf.Append(ctx, 2, Entry{Content: "two", UserID: 1})

	entries, err := buf.ReadAll(ctx, 1)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "one" {
		t.Errorf("conversation 1 buffer = %v, want [one]", entries)
	}
}

func TestReadAllSkipsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	buf := NewBuffer(kv, 5, nil)

	buf.Append(ctx, 9, Entry{Content: "good", UserID: 2})
	kv.ListPushTrim(ctx, "chat:9", "{not json", 5)

	entries, err := buf.ReadAll(ctx, 9)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "good" {
		t.Errorf("ReadAll = %v, want only the decodable entry", entries)
	}
}
