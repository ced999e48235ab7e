// Package retention implements the Retention Sweeper (C11): a daily
// bulk deletion of records older than the retention horizon, paged at
// the store's batch-commit cap, with a written audit record per run.
// See spec.md §4.11.
package retention

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

// HorizonDays is the retention cutoff, per spec.md §4.11.
const HorizonDays = 180
const day = 24 * 60 * 60 * 1000

// sweepTarget names one collection and the timestamp field the sweep
// filters on.
type sweepTarget struct {
	coll  store.Collection
	field string
}

var targets = []sweepTarget{
	{store.Interactions, "recordedAt"},
	{store.Notifications, "receivedAt"},
	{store.Reports, "reportedAt"},
}

// Sweeper deletes expired documents and records one cleanupLogs entry
// per run.
type Sweeper struct {
	store store.Store
}

func New(s store.Store) *Sweeper {
	return &Sweeper{store: s}
}

// Run sweeps every target collection and writes the resulting
// models.CleanupLog. A page-level failure is logged and does not
// abort the rest of the sweep, per spec.md §4.11.
func (s *Sweeper) Run(ctx context.Context, now int64) (models.CleanupLog, error) {
	cutoff := now - HorizonDays*day

	result := models.CleanupLog{Timestamp: now}
	for _, target := range targets {
		deleted := s.sweepCollection(ctx, target, cutoff)
		switch target.coll {
		case store.Interactions:
			result.InteractionsDeleted = deleted
		case store.Notifications:
			result.NotificationsDeleted = deleted
		case store.Reports:
			result.ReportsDeleted = deleted
		}
	}

	if err := s.store.Set(ctx, store.CleanupLogs, uuid.NewString(), result, false); err != nil {
		return result, err
	}
	return result, nil
}

// sweepCollection deletes every expired document in target, paging at
// store.BatchCommitCap documents per batch commit.
func (s *Sweeper) sweepCollection(ctx context.Context, target sweepTarget, cutoff int64) int {
	snaps, err := s.store.QueryBefore(ctx, target.coll, target.field, cutoff)
	if err != nil {
		log.Printf("retention: query failed for %s: %v", target.coll, err)
		return 0
	}

	deleted := 0
	for start := 0; start < len(snaps); start += store.BatchCommitCap {
		end := start + store.BatchCommitCap
		if end > len(snaps) {
			end = len(snaps)
		}
		b := s.store.Batch()
		for _, snap := range snaps[start:end] {
			if err := b.Delete(ctx, target.coll, snap.ID); err != nil {
				log.Printf("retention: queuing delete failed for %s/%s: %v", target.coll, snap.ID, err)
			}
		}
		if err := b.Commit(ctx); err != nil {
			log.Printf("retention: batch commit failed for %s page [%d,%d): %v", target.coll, start, end, err)
			continue
		}
		deleted += end - start
	}
	return deleted
}
