package session

import (
	"testing"
	"time"
)

func TestElapsedRunning(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	record := Record{State: StateRunning, StartedAt: start}

	if got := Elapsed(record, start.Add(10*time.Minute)); got != 10*time.Minute {
		t.Fatalf("expected 10m, got %v", got)
	}
}

func TestElapsedRunningExcludesPausedTotal(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	record := Record{State: StateRunning, StartedAt: start, TotalPaused: 5 * time.Minute}

	if got := Elapsed(record, start.Add(20*time.Minute)); got != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", got)
	}
}

func TestElapsedFrozenWhilePaused(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(10 * time.Minute)
	record := Record{State: StatePaused, StartedAt: start, PausedAt: &pausedAt}

	early := Elapsed(record, pausedAt.Add(time.Minute))
	late := Elapsed(record, pausedAt.Add(3*time.Hour))
	if early != late {
		t.Fatalf("expected frozen elapsed, got %v then %v", early, late)
	}
	if early != 10*time.Minute {
		t.Fatalf("expected 10m, got %v", early)
	}
}

func TestElapsedTerminalUsesEndedAt(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	endedAt := start.Add(30 * time.Minute)
	record := Record{
		State:       StateCompleted,
		StartedAt:   start,
		EndedAt:     &endedAt,
		TotalPaused: 5 * time.Minute,
	}

	if got := Elapsed(record, endedAt.Add(48*time.Hour)); got != 25*time.Minute {
		t.Fatalf("expected 25m, got %v", got)
	}
}

func TestElapsedNeverNegative(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	record := Record{State: StateRunning, StartedAt: start, TotalPaused: time.Hour}

	if got := Elapsed(record, start.Add(time.Minute)); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestRemaining(t *testing.T) {
	if got := Remaining(25*time.Minute, 10*time.Minute); got != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", got)
	}
	if got := Remaining(25*time.Minute, 30*time.Minute); got != 0 {
		t.Fatalf("expected 0 on overrun, got %v", got)
	}
	if got := Remaining(25*time.Minute, 25*time.Minute); got != 0 {
		t.Fatalf("expected 0 at exact boundary, got %v", got)
	}
}

func TestCompletionPercent(t *testing.T) {
	cases := []struct {
		name    string
		actual  time.Duration
		planned time.Duration
		want    int
	}{
		{"partial", 20 * time.Minute, 25 * time.Minute, 80},
		{"full", 25 * time.Minute, 25 * time.Minute, 100},
		{"overrun capped", 40 * time.Minute, 25 * time.Minute, 100},
		{"zero planned", 10 * time.Minute, 0, 0},
		{"zero actual", 0, 25 * time.Minute, 0},
		{"rounds", 10 * time.Minute, 60 * time.Minute, 17},
		{"cancelled early", 3 * time.Minute, 25 * time.Minute, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompletionPercent(tc.actual, tc.planned); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestOverrun(t *testing.T) {
	if Overrun(20*time.Minute, 25*time.Minute) {
		t.Fatal("expected no overrun under planned")
	}
	if Overrun(25*time.Minute, 25*time.Minute) {
		t.Fatal("expected no overrun at exact boundary")
	}
	if !Overrun(25*time.Minute+time.Second, 25*time.Minute) {
		t.Fatal("expected overrun past planned")
	}
}

func TestActualMinutes(t *testing.T) {
	if got := ActualMinutes(20 * time.Minute); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
	if got := ActualMinutes(90 * time.Second); got != 2 {
		t.Fatalf("expected rounding to 2, got %d", got)
	}
	if got := ActualMinutes(-time.Minute); got != 0 {
		t.Fatalf("expected 0 for negative, got %d", got)
	}
}

func TestPauseResumeRoundTripKeepsElapsedContinuous(t *testing.T) {
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	record, err := Start(StartInput{OwnerID: "u1", Kind: KindFocus}, fixedClock(start), testIDGenerator)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	at := start.Add(10 * time.Minute)
	before := Elapsed(record, at)
	if err := record.Pause(at); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := record.Resume(at); err != nil {
		t.Fatalf("resume: %v", err)
	}
	after := Elapsed(record, at)

	if before != after {
		t.Fatalf("expected elapsed continuous across pause/resume, got %v then %v", before, after)
	}
	if record.TotalPaused != 0 {
		t.Fatalf("expected zero accumulated pause for instant round-trip, got %v", record.TotalPaused)
	}
}
