package report

import (
	"context"
	"testing"

	"firebase.google.com/go/v4/messaging"

	"github.com/lighthouse-health/exposure-relay/internal/hashing"
	"github.com/lighthouse-health/exposure-relay/internal/push"
	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

const msDay = 24 * 60 * 60 * 1000

type noopSender struct{}

func (noopSender) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	responses := make([]*messaging.SendResponse, len(msg.Tokens))
	for i := range responses {
		responses[i] = &messaging.SendResponse{Success: true}
	}
	return &messaging.BatchResponse{SuccessCount: len(msg.Tokens), Responses: responses}, nil
}

func newProcessor() *Processor {
	s := store.NewMemoryStore()
	return New(s, push.NewDispatcher(noopSender{}))
}

func seedUser(t *testing.T, p *Processor, uid string) {
	t.Helper()
	u := models.User{
		UID:                  uid,
		HashedInteractionID:  hashing.Interaction(uid),
		HashedNotificationID: hashing.Notification(uid),
	}
	if err := p.store.Set(context.Background(), store.Users, uid, u, false); err != nil {
		t.Fatal(err)
	}
}

func seedInteraction(t *testing.T, p *Processor, id, ownerUID, partnerUID string, recordedAt int64) {
	t.Helper()
	i := models.Interaction{
		OwnerID:            hashing.Interaction(ownerUID),
		PartnerAnonymousID: hashing.Interaction(partnerUID),
		RecordedAt:         recordedAt,
	}
	if err := p.store.Set(context.Background(), store.Interactions, id, i, false); err != nil {
		t.Fatal(err)
	}
}

func TestValidatePositiveRejectsEmptySTITypes(t *testing.T) {
	now := int64(1_000_000_000_000)
	err := ValidatePositive(nil, now, models.PrivacyFull, now)
	if store.AsCode(err) != store.CodeInvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestValidatePositiveRejectsFutureTestDate(t *testing.T) {
	now := int64(1_000_000_000_000)
	err := ValidatePositive([]string{"HIV"}, now+msDay, models.PrivacyFull, now)
	if store.AsCode(err) != store.CodeInvalidArgument {
		t.Errorf("expected InvalidArgument for future testDate, got %v", err)
	}
}

func TestValidatePositiveRejectsOutsideRetention(t *testing.T) {
	now := int64(1_000_000_000_000)
	err := ValidatePositive([]string{"HIV"}, now-200*msDay, models.PrivacyFull, now)
	if store.AsCode(err) != store.CodeInvalidArgument {
		t.Errorf("expected InvalidArgument for testDate outside retention, got %v", err)
	}
}

func TestProcessPositiveEndToEnd(t *testing.T) {
	p := newProcessor()
	ctx := context.Background()
	now := int64(1_000_000_000_000)
	seedUser(t, p, "A")
	seedUser(t, p, "B")
	seedInteraction(t, p, "i1", "B", "A", now-3*msDay)

	rep, err := p.CreatePositiveReport(ctx, "A", []string{"HIV"}, now, models.PrivacyFull, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessPositive(ctx, rep.ID, now); err != nil {
		t.Fatal(err)
	}

	var final models.Report
	if err := p.store.Get(ctx, store.Reports, rep.ID, &final); err != nil {
		t.Fatal(err)
	}
	if final.Status != models.StatusCompleted {
		t.Errorf("expected report completed, got %s", final.Status)
	}

	snaps, err := p.store.Query(ctx, store.Notifications, "recipientId", hashing.Notification("B"), store.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected exactly 1 notification for B, got %d", len(snaps))
	}
}

func TestProcessPositiveIdempotentRerun(t *testing.T) {
	p := newProcessor()
	ctx := context.Background()
	now := int64(1_000_000_000_000)
	seedUser(t, p, "A")
	seedUser(t, p, "B")
	seedInteraction(t, p, "i1", "B", "A", now-3*msDay)

	rep, err := p.CreatePositiveReport(ctx, "A", []string{"HIV"}, now, models.PrivacyFull, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessPositive(ctx, rep.ID, now); err != nil {
		t.Fatal(err)
	}
	// Re-running against the now-completed report must be a no-op.
	if err := p.ProcessPositive(ctx, rep.ID, now); err != nil {
		t.Fatal(err)
	}

	snaps, err := p.store.Query(ctx, store.Notifications, "recipientId", hashing.Notification("B"), store.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Errorf("expected no duplicate notification after re-run, got %d", len(snaps))
	}
}

func TestDeleteExposureReportMarksDeletedAtNotPhysical(t *testing.T) {
	p := newProcessor()
	ctx := context.Background()
	now := int64(1_000_000_000_000)
	seedUser(t, p, "A")
	seedUser(t, p, "B")
	seedInteraction(t, p, "i1", "B", "A", now-3*msDay)

	rep, err := p.CreatePositiveReport(ctx, "A", []string{"HIV"}, now, models.PrivacyFull, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessPositive(ctx, rep.ID, now); err != nil {
		t.Fatal(err)
	}

	if err := p.DeleteExposureReport(ctx, "A", rep.ID, now+msDay); err != nil {
		t.Fatal(err)
	}

	snaps, err := p.store.Query(ctx, store.Notifications, "recipientId", hashing.Notification("B"), store.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected notification to still exist (soft delete), got %d", len(snaps))
	}
	var n models.Notification
	if err := snaps[0].Unmarshal(&n); err != nil {
		t.Fatal(err)
	}
	if n.DeletedAt == 0 {
		t.Error("expected deletedAt to be set")
	}

	var gone models.Report
	if err := p.store.Get(ctx, store.Reports, rep.ID, &gone); store.AsCode(err) != store.CodeNotFound {
		t.Errorf("expected report document physically deleted, got %v", err)
	}
}

func TestDeleteExposureReportRejectsNonOwner(t *testing.T) {
	p := newProcessor()
	ctx := context.Background()
	now := int64(1_000_000_000_000)
	seedUser(t, p, "A")
	seedUser(t, p, "Mallory")

	rep, err := p.CreatePositiveReport(ctx, "A", []string{"HIV"}, now, models.PrivacyFull, now)
	if err != nil {
		t.Fatal(err)
	}

	err = p.DeleteExposureReport(ctx, "Mallory", rep.ID, now)
	if store.AsCode(err) != store.CodePermissionDenied {
		t.Errorf("expected PermissionDenied for non-owner, got %v", err)
	}
}

func TestValidateSavedIDFormat(t *testing.T) {
	if err := ValidateSavedID("short"); store.AsCode(err) != store.CodeInvalidArgument {
		t.Error("expected InvalidArgument for a too-short savedId")
	}
	if err := ValidateSavedID("ABCDEFGHIJ0123456789"); err != nil {
		t.Errorf("expected a 20-char alphanumeric id to validate, got %v", err)
	}
}
