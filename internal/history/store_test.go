package history

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/memchat/memchat/internal/chat"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnsureSessionIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.EnsureSession(ctx, "alice", "s1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if err := store.EnsureSession(ctx, "alice", "s1"); err != nil {
		t.Fatalf("EnsureSession (repeat): %v", err)
	}

	ids, err := store.SessionIDs(ctx)
	if err != nil {
		t.Fatalf("SessionIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s1" {
		t.Errorf("ids: got %v, want [s1]", ids)
	}
}

func TestAppendAndReadMessages(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.EnsureSession(ctx, "alice", "s1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}

	want := []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi, how can I help?"},
		{Role: chat.RoleUser, Content: "never mind"},
	}
	for _, m := range want {
		if err := store.AppendMessage(ctx, "s1", m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := store.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("messages:\ngot  %+v\nwant %+v", got, want)
	}

	n, err := store.MessageCount(ctx, "s1")
	if err != nil {
		t.Fatalf("MessageCount: %v", err)
	}
	if n != len(want) {
		t.Errorf("count: got %d, want %d", n, len(want))
	}
}

func TestMessagesIsolatedBySession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		if err := store.EnsureSession(ctx, "alice", id); err != nil {
			t.Fatalf("EnsureSession %s: %v", id, err)
		}
	}
	if err := store.AppendMessage(ctx, "s1", chat.Message{Role: chat.RoleUser, Content: "for s1"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := store.Messages(ctx, "s2")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("s2 transcript: got %+v, want empty", got)
	}
}

func TestMessagesEmptySession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	got, err := store.Messages(ctx, "unknown")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}

	n, err := store.MessageCount(ctx, "unknown")
	if err != nil || n != 0 {
		t.Errorf("count: got (%d, %v), want (0, nil)", n, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.EnsureSession(ctx, "alice", "s1"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if err := store.AppendMessage(ctx, "s1", chat.Message{Role: chat.RoleUser, Content: "persist me"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Messages(ctx, "s1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 1 || got[0].Content != "persist me" {
		t.Errorf("messages after reopen: got %+v", got)
	}
}
