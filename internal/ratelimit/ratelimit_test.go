package ratelimit

import (
	"context"
	"testing"

	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

func TestAllowWithinLimit(t *testing.T) {
	s := store.NewMemoryStore()
	l := New(s)
	ctx := context.Background()
	now := int64(1_000_000)

	for i := 0; i < models.Limits[models.OpPositiveReport]; i++ {
		if !l.Allow(ctx, "u1", models.OpPositiveReport, now) {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}
}

func TestAllowRejectsOverLimit(t *testing.T) {
	s := store.NewMemoryStore()
	l := New(s)
	ctx := context.Background()
	now := int64(1_000_000)
	max := models.Limits[models.OpPositiveReport]

	for i := 0; i < max; i++ {
		l.Allow(ctx, "u1", models.OpPositiveReport, now)
	}
	if l.Allow(ctx, "u1", models.OpPositiveReport, now) {
		t.Error("expected the (max+1)th attempt in the same window to be rejected")
	}
}

func TestAllowResetsAfterWindowElapses(t *testing.T) {
	s := store.NewMemoryStore()
	l := New(s)
	ctx := context.Background()
	now := int64(1_000_000)
	max := models.Limits[models.OpPositiveReport]

	for i := 0; i < max; i++ {
		l.Allow(ctx, "u1", models.OpPositiveReport, now)
	}
	later := now + Window + 1
	if !l.Allow(ctx, "u1", models.OpPositiveReport, later) {
		t.Error("expected a fresh window to allow the next attempt")
	}
}

func TestAllowIsolatedPerUserAndOp(t *testing.T) {
	s := store.NewMemoryStore()
	l := New(s)
	ctx := context.Background()
	now := int64(1_000_000)
	max := models.Limits[models.OpPositiveReport]

	for i := 0; i < max; i++ {
		l.Allow(ctx, "u1", models.OpPositiveReport, now)
	}
	if !l.Allow(ctx, "u2", models.OpPositiveReport, now) {
		t.Error("expected a different user's window to be independent")
	}
	if !l.Allow(ctx, "u1", models.OpNegativeTest, now) {
		t.Error("expected a different operation kind's window to be independent")
	}
}
