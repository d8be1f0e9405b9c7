package session

import (
	"testing"
	"time"
)

// completedAt builds a completed record of the given kind ending at endedAt.
func completedAt(kind Kind, endedAt time.Time) Record {
	started := endedAt.Add(-time.Duration(kind.DefaultMinutes()) * time.Minute)
	return Record{
		ID:             "s-" + string(kind) + endedAt.Format("150405"),
		OwnerID:        "u1",
		Kind:           kind,
		PlannedMinutes: kind.DefaultMinutes(),
		StartedAt:      started,
		EndedAt:        &endedAt,
		State:          StateCompleted,
	}
}

func TestSuggestNextEmptyHistory(t *testing.T) {
	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	got := SuggestNext(nil, now, DefaultCycleInterval)
	if got.Kind != KindFocus {
		t.Fatalf("expected focus, got %s", got.Kind)
	}
	if got.Minutes != 25 {
		t.Fatalf("expected 25 minutes, got %d", got.Minutes)
	}
	if got.Reason == "" {
		t.Fatal("expected a reason")
	}
}

func TestSuggestNextIgnoresPriorDays(t *testing.T) {
	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	history := []Record{
		completedAt(KindFocus, now.Add(-24*time.Hour)),
		completedAt(KindFocus, now.Add(-25*time.Hour)),
	}

	got := SuggestNext(history, now, DefaultCycleInterval)
	if got.Kind != KindFocus {
		t.Fatalf("expected focus for fresh day, got %s", got.Kind)
	}
}

func TestSuggestNextShortBreakMidCycle(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	// 1st through 3rd completed focus sessions each suggest a short break.
	for count := 1; count <= 3; count++ {
		var history []Record
		for i := 0; i < count; i++ {
			history = append(history, completedAt(KindFocus, now.Add(-time.Duration(i)*time.Hour)))
		}
		got := SuggestNext(history, now, 4)
		if got.Kind != KindShortBreak {
			t.Fatalf("after %d focus sessions: expected short break, got %s", count, got.Kind)
		}
		if got.Minutes != 5 {
			t.Fatalf("expected 5 minutes, got %d", got.Minutes)
		}
	}
}

func TestSuggestNextLongBreakAtInterval(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	var history []Record
	for i := 0; i < 4; i++ {
		history = append(history, completedAt(KindFocus, now.Add(-time.Duration(i)*time.Hour)))
	}

	got := SuggestNext(history, now, 4)
	if got.Kind != KindLongBreak {
		t.Fatalf("expected long break after 4th focus, got %s", got.Kind)
	}
	if got.Minutes != 15 {
		t.Fatalf("expected 15 minutes, got %d", got.Minutes)
	}
}

func TestSuggestNextFocusAfterBreak(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	history := []Record{
		completedAt(KindShortBreak, now.Add(-10*time.Minute)),
		completedAt(KindFocus, now.Add(-time.Hour)),
	}

	got := SuggestNext(history, now, 4)
	if got.Kind != KindFocus {
		t.Fatalf("expected focus after break, got %s", got.Kind)
	}
}

func TestSuggestNextLongBreakResetsStreak(t *testing.T) {
	now := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)
	// Most recent first: 2 focus sessions, then a long break, then 4 focus.
	history := []Record{
		completedAt(KindFocus, now.Add(-10*time.Minute)),
		completedAt(KindFocus, now.Add(-time.Hour)),
		completedAt(KindLongBreak, now.Add(-2*time.Hour)),
		completedAt(KindFocus, now.Add(-3*time.Hour)),
		completedAt(KindFocus, now.Add(-4*time.Hour)),
		completedAt(KindFocus, now.Add(-5*time.Hour)),
		completedAt(KindFocus, now.Add(-6*time.Hour)),
	}

	got := SuggestNext(history, now, 4)
	if got.Kind != KindShortBreak {
		t.Fatalf("expected short break with streak of 2, got %s", got.Kind)
	}
}

func TestSuggestNextShortBreaksDoNotResetStreak(t *testing.T) {
	now := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)
	// focus, short break, focus, short break, focus, short break, focus -> streak 4.
	var history []Record
	for i := 0; i < 4; i++ {
		history = append(history, completedAt(KindFocus, now.Add(-time.Duration(2*i)*time.Hour)))
		if i < 3 {
			history = append(history, completedAt(KindShortBreak, now.Add(-time.Duration(2*i+1)*time.Hour)))
		}
	}

	got := SuggestNext(history, now, 4)
	if got.Kind != KindLongBreak {
		t.Fatalf("expected long break with streak of 4 across short breaks, got %s", got.Kind)
	}
}

func TestSuggestNextDeepFocusCountsTowardStreak(t *testing.T) {
	now := time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC)
	history := []Record{
		completedAt(KindDeepFocus, now.Add(-10*time.Minute)),
		completedAt(KindFocus, now.Add(-2*time.Hour)),
		completedAt(KindDeepFocus, now.Add(-3*time.Hour)),
		completedAt(KindFocus, now.Add(-4*time.Hour)),
	}

	got := SuggestNext(history, now, 4)
	if got.Kind != KindLongBreak {
		t.Fatalf("expected long break counting deep focus, got %s", got.Kind)
	}
}

func TestSuggestNextIgnoresIncompleteAndCustom(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	cancelled := completedAt(KindFocus, now.Add(-time.Hour))
	cancelled.State = StateCancelled
	history := []Record{
		completedAt(KindCustom, now.Add(-10*time.Minute)),
		cancelled,
	}

	got := SuggestNext(history, now, 4)
	if got.Kind != KindFocus {
		t.Fatalf("expected focus when no cycle history counts, got %s", got.Kind)
	}
}

func TestSuggestNextDefaultsInterval(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	var history []Record
	for i := 0; i < 4; i++ {
		history = append(history, completedAt(KindFocus, now.Add(-time.Duration(i)*time.Hour)))
	}

	got := SuggestNext(history, now, 0)
	if got.Kind != KindLongBreak {
		t.Fatalf("expected default interval of 4, got %s", got.Kind)
	}
}
