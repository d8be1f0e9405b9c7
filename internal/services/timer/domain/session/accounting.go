package session

import (
	"math"
	"time"
)

// Time accounting is kept in one place so elapsed/remaining/completion math
// has a single implementation. All paused time is folded into TotalPaused at
// resume or finish, so a record read mid-pause and one read after several
// pause/resume cycles produce identical elapsed values.

// Elapsed returns wall-clock time the session has spent running, excluding
// paused intervals. For paused sessions the value is frozen at the pause
// timestamp; for terminal sessions it is fixed by EndedAt.
func Elapsed(r Record, now time.Time) time.Duration {
	var elapsed time.Duration
	switch {
	case r.State == StatePaused && r.PausedAt != nil:
		elapsed = r.PausedAt.Sub(r.StartedAt) - r.TotalPaused
	case r.State.Terminal() && r.EndedAt != nil:
		elapsed = r.EndedAt.Sub(r.StartedAt) - r.TotalPaused
	default:
		elapsed = now.Sub(r.StartedAt) - r.TotalPaused
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns the planned time not yet spent, never negative.
func Remaining(planned, elapsed time.Duration) time.Duration {
	if remaining := planned - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// CompletionPercent returns the ratio of actual to planned duration as a
// rounded percentage capped at 100. A zero planned duration yields 0.
func CompletionPercent(actual, planned time.Duration) int {
	if planned <= 0 {
		return 0
	}
	if actual <= 0 {
		return 0
	}
	percent := int(math.Round(float64(actual) / float64(planned) * 100))
	if percent > 100 {
		return 100
	}
	return percent
}

// Overrun reports whether the session has run past its planned duration.
func Overrun(elapsed, planned time.Duration) bool {
	return elapsed > planned
}

// ActualMinutes converts an elapsed duration to whole minutes for goal
// time-contribution reporting, rounding to the nearest minute.
func ActualMinutes(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	return int(math.Round(elapsed.Minutes()))
}
