package batch

import (
	"context"
	"fmt"
	"testing"

	"github.com/lighthouse-health/exposure-relay/internal/store"
)

func TestNotificationBatcherCommit(t *testing.T) {
	s := store.NewMemoryStore()
	b := NewNotificationBatcher(s)
	ctx := context.Background()

	_ = b.Add(NotificationEntry{ID: "n1", Data: map[string]any{"recipientId": "r1"}})
	_ = b.Add(NotificationEntry{ID: "n2", Data: map[string]any{"recipientId": "r2"}})

	result, err := b.Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.CreatedIDs[0] != "n1" || result.CreatedIDs[1] != "n2" {
		t.Errorf("unexpected created ids: %+v", result.CreatedIDs)
	}

	var got map[string]any
	if err := s.Get(ctx, store.Notifications, "n1", &got); err != nil {
		t.Fatal(err)
	}
}

func TestNotificationBatcherTerminalAfterCommit(t *testing.T) {
	s := store.NewMemoryStore()
	b := NewNotificationBatcher(s)
	ctx := context.Background()

	_ = b.Add(NotificationEntry{ID: "n1", Data: map[string]any{}})
	if _, err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if err := b.Add(NotificationEntry{ID: "n2", Data: map[string]any{}}); err == nil {
		t.Error("expected error adding after commit")
	}
	if _, err := b.Commit(ctx); err == nil {
		t.Error("expected error re-committing")
	}
}

func TestNotificationBatcherChunksAtCap(t *testing.T) {
	s := store.NewMemoryStore()
	b := NewNotificationBatcher(s)
	ctx := context.Background()

	total := store.BatchCommitCap + 10
	for i := 0; i < total; i++ {
		_ = b.Add(NotificationEntry{ID: fmt.Sprintf("n%d", i), Data: map[string]any{"i": i}})
	}

	result, err := b.Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i, created := range result.CreatedIDs {
		if created == "" {
			t.Fatalf("expected entry %d to be committed, got empty created id", i)
		}
	}
}
