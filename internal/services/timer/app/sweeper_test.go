package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/focustide/internal/services/timer/domain/session"
)

func TestSweeperExpiresOverrunSessions(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock(testDay)
	service := newTestService(store, clock, Options{GraceWindow: 10 * time.Minute})
	ctx := context.Background()

	view, err := service.Start(ctx, session.StartInput{OwnerID: "u1", PlannedMinutes: 25})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(time.Hour)

	sweeper := NewSweeper(service, 5*time.Millisecond, DefaultSweepBatch)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- sweeper.Run(runCtx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		record, _ := store.stored(view.ID)
		if record.State == session.StateExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not expire the overrun session")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop on cancellation")
	}
}

func TestSweeperDefaults(t *testing.T) {
	sweeper := NewSweeper(nil, 0, 0)
	if sweeper.interval != DefaultSweepInterval {
		t.Fatalf("interval = %v, want %v", sweeper.interval, DefaultSweepInterval)
	}
	if sweeper.batch != DefaultSweepBatch {
		t.Fatalf("batch = %d, want %d", sweeper.batch, DefaultSweepBatch)
	}
	if err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("nil-service sweeper should return immediately, got %v", err)
	}
}
