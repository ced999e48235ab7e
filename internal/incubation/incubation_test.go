package incubation

import "testing"

func TestEffectiveDaysMax(t *testing.T) {
	got := EffectiveDays([]string{"HIV", "Syphilis", "Gonorrhea"})
	if got != 90 {
		t.Errorf("expected max incubation 90 (Syphilis), got %d", got)
	}
}

func TestEffectiveDaysUnknownSTI(t *testing.T) {
	got := EffectiveDays([]string{"Unlisted"})
	if got != defaultDays {
		t.Errorf("expected default %d for unknown STI, got %d", defaultDays, got)
	}
}

func TestWindowClampedToNow(t *testing.T) {
	now := int64(1_000_000_000_000)
	interactionDate := now - 1*day
	start, end := Window(interactionDate, 90, now)
	if end != now {
		t.Errorf("expected window end clamped to now, got %d want %d", end, now)
	}
	if start != interactionDate-90*day {
		t.Errorf("unexpected window start: %d", start)
	}
}

func TestWindowClampedToRetentionFloor(t *testing.T) {
	now := int64(1_000_000_000_000)
	interactionDate := now - 170*day
	start, _ := Window(interactionDate, 30, now)
	floor := now - int64(RetentionHorizonDays)*day
	if start != floor {
		t.Errorf("expected window start clamped to retention floor %d, got %d", floor, start)
	}
}

func TestScenarioIncubationBoundary(t *testing.T) {
	// Scenario 4: Syphilis (90d). The reporter's outgoing window is
	// computed from their own testDate (= now); a candidate interaction
	// recorded at now-95d falls outside it, one at now-85d falls inside.
	now := int64(1_000_000_000_000)
	eff := EffectiveDays([]string{"Syphilis"})
	start, end := Window(now, eff, now)

	outsideRecordedAt := now - 95*day
	if outsideRecordedAt >= start && outsideRecordedAt <= end {
		t.Errorf("expected now-95d interaction outside window [%d,%d]", start, end)
	}

	insideRecordedAt := now - 85*day
	if insideRecordedAt < start || insideRecordedAt > end {
		t.Errorf("expected now-85d interaction inside window [%d,%d]", start, end)
	}
}
