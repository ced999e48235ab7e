package store

import (
	"context"
	"testing"
)

type sample struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, Users, "u1", sample{Name: "a", Age: 1}, false); err != nil {
		t.Fatal(err)
	}
	var got sample
	if err := s.Get(ctx, Users, "u1", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "a" || got.Age != 1 {
		t.Errorf("unexpected doc: %+v", got)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	var out sample
	err := s.Get(context.Background(), Users, "missing", &out)
	if AsCode(err) != CodeNotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestMemoryStoreMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, Users, "u1", map[string]any{"name": "a", "age": 1}, false)
	_ = s.Set(ctx, Users, "u1", map[string]any{"age": 2}, true)

	var got map[string]any
	_ = s.Get(ctx, Users, "u1", &got)
	if got["name"] != "a" {
		t.Errorf("expected merge to preserve name, got %v", got["name"])
	}
	if got["age"].(float64) != 2 {
		t.Errorf("expected merge to overwrite age, got %v", got["age"])
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, Interactions, "i1", map[string]any{"partnerAnonymousId": "X", "recordedAt": 100}, false)
	_ = s.Set(ctx, Interactions, "i2", map[string]any{"partnerAnonymousId": "Y", "recordedAt": 200}, false)

	snaps, err := s.Query(ctx, Interactions, "partnerAnonymousId", "X", QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != "i1" {
		t.Errorf("expected exactly i1, got %+v", snaps)
	}
}

func TestMemoryStoreQueryIn(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, Users, "u1", map[string]any{"hashedNotificationId": "A"}, false)
	_ = s.Set(ctx, Users, "u2", map[string]any{"hashedNotificationId": "B"}, false)
	_ = s.Set(ctx, Users, "u3", map[string]any{"hashedNotificationId": "C"}, false)

	snaps, err := s.QueryIn(ctx, Users, "hashedNotificationId", []string{"A", "C", "Z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Errorf("expected 2 matches, got %d", len(snaps))
	}
}

func TestMemoryStoreQueryArrayContains(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, Notifications, "n1", map[string]any{"chainPath": []string{"h1", "h2"}}, false)
	_ = s.Set(ctx, Notifications, "n2", map[string]any{"chainPath": []string{"h3"}}, false)

	snaps, err := s.QueryArrayContains(ctx, Notifications, "chainPath", "h2")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != "n1" {
		t.Errorf("expected exactly n1, got %+v", snaps)
	}
}

func TestMemoryStoreQueryBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, Interactions, "i1", map[string]any{"recordedAt": 100}, false)
	_ = s.Set(ctx, Interactions, "i2", map[string]any{"recordedAt": 300}, false)

	snaps, err := s.QueryBefore(ctx, Interactions, "recordedAt", 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != "i1" {
		t.Errorf("expected exactly i1, got %+v", snaps)
	}
}

func TestMemoryStoreBatchTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	b := s.Batch()
	if err := b.Set(ctx, Users, "u1", map[string]any{"a": 1}, false); err != nil {
		t.Fatal(err)
	}
	if err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, Users, "u2", map[string]any{"a": 1}, false); err == nil {
		t.Error("expected error writing to a committed batch")
	}
	if err := b.Commit(ctx); err == nil {
		t.Error("expected error re-committing a batch")
	}
}

func TestMemoryStoreTransactionCommitsUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, Users, "u1", map[string]any{"a": 1}, false)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Transaction) error {
		var out map[string]any
		if err := tx.Get(ctx, Users, "u1", &out); err != nil {
			return err
		}
		return tx.Update(ctx, Users, "u1", map[string]any{"a": 2})
	})
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	_ = s.Get(ctx, Users, "u1", &out)
	if out["a"].(float64) != 2 {
		t.Errorf("expected transaction update to commit, got %v", out["a"])
	}
}
