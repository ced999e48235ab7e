package retention

import (
	"context"
	"fmt"
	"testing"

	"github.com/lighthouse-health/exposure-relay/internal/store"
)

func TestSweepDeletesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := int64(HorizonDays+10) * day

	_ = s.Set(ctx, store.Interactions, "old", map[string]any{"recordedAt": now - (HorizonDays+5)*day}, false)
	_ = s.Set(ctx, store.Interactions, "new", map[string]any{"recordedAt": now - 1*day}, false)

	sweeper := New(s)
	log, err := sweeper.Run(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if log.InteractionsDeleted != 1 {
		t.Errorf("expected exactly 1 interaction deleted, got %d", log.InteractionsDeleted)
	}

	var out map[string]any
	if err := s.Get(ctx, store.Interactions, "new", &out); err != nil {
		t.Errorf("expected recent interaction to survive the sweep: %v", err)
	}
	if err := s.Get(ctx, store.Interactions, "old", &out); store.AsCode(err) != store.CodeNotFound {
		t.Errorf("expected expired interaction to be deleted, got %v", err)
	}
}

func TestSweepWritesCleanupLog(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := int64(HorizonDays+10) * day

	sweeper := New(s)
	if _, err := sweeper.Run(ctx, now); err != nil {
		t.Fatal(err)
	}

	snaps, err := s.QueryBefore(ctx, store.CleanupLogs, "timestamp", now+1)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Errorf("expected exactly one cleanup log written, got %d", len(snaps))
	}
}

func TestSweepPagesAtBatchCap(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := int64(HorizonDays+10) * day
	expiredAt := now - (HorizonDays+5)*day

	total := store.BatchCommitCap + 20
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("r%d", i)
		_ = s.Set(ctx, store.Reports, id, map[string]any{"reportedAt": expiredAt}, false)
	}

	sweeper := New(s)
	log, err := sweeper.Run(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if log.ReportsDeleted != total {
		t.Errorf("expected all %d expired reports deleted across pages, got %d", total, log.ReportsDeleted)
	}
}
