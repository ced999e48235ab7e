// Package batch holds the C7 batchers: NotificationBatcher accumulates
// notification writes for one atomic store commit (≤500 ops), and
// FCMBatcher accumulates pending pushes, grouping and multicasting
// them through the Push Dispatcher (C3) in batches of ≤500 tokens.
package batch

import (
	"context"
	"fmt"

	"github.com/lighthouse-health/exposure-relay/internal/store"
)

// NotificationEntry is one queued notification write.
type NotificationEntry struct {
	ID                   string
	Data                 any
	HashedInteractionID  string
	HashedNotificationID string
}

// CommitResult is the per-index outcome of committing a
// NotificationBatcher: CreatedIDs[i] is the document id written for
// Entries[i] (empty if it failed), and Errors[i] carries that entry's
// failure message, if any.
type CommitResult struct {
	CreatedIDs []string
	Errors     []string
}

// NotificationBatcher collects notification writes and commits them
// in store batches of ≤500. Committing once is terminal; any Add or
// Commit after a successful Commit is an error, per spec.md §4.7.
type NotificationBatcher struct {
	s         store.Store
	entries   []NotificationEntry
	committed bool
}

func NewNotificationBatcher(s store.Store) *NotificationBatcher {
	return &NotificationBatcher{s: s}
}

func (b *NotificationBatcher) Add(entry NotificationEntry) error {
	if b.committed {
		return fmt.Errorf("notification batcher: already committed")
	}
	b.entries = append(b.entries, entry)
	return nil
}

// Commit writes every queued entry, chunking at store.BatchCommitCap.
// A failure committing one chunk is recorded against every entry in
// that chunk; subsequent chunks still attempt to commit, per the
// propagation policy that per-item batch errors never abort the whole
// batch (spec.md §7).
func (b *NotificationBatcher) Commit(ctx context.Context) (CommitResult, error) {
	if b.committed {
		return CommitResult{}, fmt.Errorf("notification batcher: already committed")
	}
	b.committed = true

	result := CommitResult{
		CreatedIDs: make([]string, len(b.entries)),
		Errors:     make([]string, len(b.entries)),
	}

	for start := 0; start < len(b.entries); start += store.BatchCommitCap {
		end := start + store.BatchCommitCap
		if end > len(b.entries) {
			end = len(b.entries)
		}
		b.commitChunk(ctx, start, end, &result)
	}

	return result, nil
}

// commitChunk builds and commits one store batch covering
// b.entries[start:end], recording per-index errors into result
// without aborting the caller's remaining chunks.
func (b *NotificationBatcher) commitChunk(ctx context.Context, start, end int, result *CommitResult) {
	sb := b.s.Batch()
	for i := start; i < end; i++ {
		e := b.entries[i]
		if err := sb.Set(ctx, store.Notifications, e.ID, e.Data, false); err != nil {
			for j := start; j < end; j++ {
				result.Errors[j] = err.Error()
			}
			return
		}
	}
	if err := sb.Commit(ctx); err != nil {
		for j := start; j < end; j++ {
			result.Errors[j] = err.Error()
		}
		return
	}
	for i := start; i < end; i++ {
		result.CreatedIDs[i] = b.entries[i].ID
	}
}
