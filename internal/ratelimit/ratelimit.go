// Package ratelimit is the C5 Rate Limiter: a per-(user, operation
// kind) sliding window enforced inside a store transaction, with
// fail-open semantics on store errors so a transient outage never
// locks a user out of reporting a positive test (see spec.md §4.5).
//
// This runs independently from the teacher-derived per-IP token
// bucket in internal/api, which guards the HTTP layer against abuse
// regardless of caller identity; this package enforces the product
// limits with identity-aware windows that must be consistent even
// under concurrent retries of the same trigger.
package ratelimit

import (
	"context"
	"log"

	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

// Window is the sliding-window size, per spec.md §4.5.
const Window int64 = 60 * 60 * 1000 // 1 hour, ms

// Buffer is added past Window when computing a document's expiresAt,
// giving the store's TTL cleanup (spec.md §6) slack past the window's
// logical expiry before physically removing the document.
const Buffer int64 = 5 * 60 * 1000 // 5 minutes, ms

// Limiter enforces the per-user-per-operation sliding window.
type Limiter struct {
	store store.Store
}

func New(s store.Store) *Limiter {
	return &Limiter{store: s}
}

// Allow checks and records one attempt of op by uid at time now (ms
// epoch). It returns true if the attempt is within limits —
// incrementing the window's count as a side effect — or false if the
// caller is over budget. A store failure is logged and treated as
// allowed, per the fail-open policy in spec.md §4.5.
func (l *Limiter) Allow(ctx context.Context, uid string, op models.OperationKind, now int64) bool {
	max, ok := models.Limits[op]
	if !ok {
		// An operation kind absent from the limits table has no
		// enforced ceiling; callers should not reach this in practice.
		return true
	}

	docID := models.DocID(uid, op)
	allowed := true

	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		var rl models.RateLimit
		err := tx.Get(ctx, store.RateLimits, docID, &rl)
		switch {
		case err != nil && store.AsCode(err) == store.CodeNotFound:
			return tx.Set(ctx, store.RateLimits, docID, freshWindow(now), false)
		case err != nil:
			return err
		case now-rl.WindowStart > Window:
			return tx.Set(ctx, store.RateLimits, docID, freshWindow(now), false)
		case rl.Count < max:
			return tx.Update(ctx, store.RateLimits, docID, map[string]any{"count": rl.Count + 1})
		default:
			allowed = false
			return nil
		}
	})
	if err != nil {
		log.Printf("ratelimit: store error for %s, failing open: %v", docID, err)
		return true
	}
	return allowed
}

func freshWindow(now int64) models.RateLimit {
	return models.RateLimit{
		Count:       1,
		WindowStart: now,
		ExpiresAt:   now + Window + Buffer,
	}
}
