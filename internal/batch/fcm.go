package batch

import (
	"context"

	"github.com/lighthouse-health/exposure-relay/internal/push"
)

// FCMResult is the outcome of sending one FCMBatcher, with global
// indices (into the order records were Add-ed) of tokens classified
// invalid, for the caller to clear from their owning user documents.
type FCMResult struct {
	SuccessCount        int
	FailureCount        int
	InvalidTokenIndices []int
}

// FCMBatcher collects pending pushes, dropping empty tokens silently,
// and on Send groups them by payload signature before multicasting in
// chunks of ≤500 (spec.md §4.7).
type FCMBatcher struct {
	dispatcher *push.Dispatcher
	records    []push.Record
}

func NewFCMBatcher(dispatcher *push.Dispatcher) *FCMBatcher {
	return &FCMBatcher{dispatcher: dispatcher}
}

// Add queues rec for sending. A record with an empty token is dropped
// silently, per spec.md §4.7 — a user with no registered device
// simply receives no push, which is not an error.
func (b *FCMBatcher) Add(rec push.Record) {
	if rec.Token == "" {
		return
	}
	b.records = append(b.records, rec)
}

const multicastCap = 500

// Send groups queued records by payload signature, splits each group
// into multicasts of ≤500 tokens, and returns the aggregate result
// with invalid-token indices expressed against the original Add
// order.
func (b *FCMBatcher) Send(ctx context.Context) FCMResult {
	groups := make(map[[3]push.LocKey][]int)
	for i, rec := range b.records {
		sig := rec.Signature()
		groups[sig] = append(groups[sig], i)
	}

	var total FCMResult
	for _, indices := range groups {
		for start := 0; start < len(indices); start += multicastCap {
			end := start + multicastCap
			if end > len(indices) {
				end = len(indices)
			}
			chunkIndices := indices[start:end]
			chunk := make([]push.Record, len(chunkIndices))
			for i, idx := range chunkIndices {
				chunk[i] = b.records[idx]
			}

			res := b.dispatcher.SendMulticast(ctx, chunk)
			total.SuccessCount += res.SuccessCount
			total.FailureCount += res.FailureCount
			for _, localIdx := range res.InvalidTokenIndices {
				total.InvalidTokenIndices = append(total.InvalidTokenIndices, chunkIndices[localIdx])
			}
		}
	}
	return total
}

// Len reports how many non-empty-token records are queued.
func (b *FCMBatcher) Len() int { return len(b.records) }
