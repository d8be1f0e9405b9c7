package session

import "time"

// DefaultCycleInterval is the number of completed focus sessions between
// long breaks.
const DefaultCycleInterval = 4

// Suggestion is advisory output for what to start next. It never gates Start.
type Suggestion struct {
	Kind    Kind
	Minutes int
	Reason  string
}

// SuggestNext recommends the next session kind from the owner's completed
// history, following pomodoro cycling: a long break after every interval
// focus sessions, a short break after other focus sessions, and a focus
// session after any break.
//
// history must contain completed records ordered most recent first. Records
// not completed on the same UTC day as now are ignored, as are custom
// sessions, which sit outside the focus/break cycle.
func SuggestNext(history []Record, now time.Time, interval int) Suggestion {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}

	today := filterToday(history, now)
	if len(today) == 0 {
		return Suggestion{
			Kind:    KindFocus,
			Minutes: KindFocus.DefaultMinutes(),
			Reason:  "start your first focus session of the day",
		}
	}

	last := today[0]
	if last.Kind.IsBreak() {
		return Suggestion{
			Kind:    KindFocus,
			Minutes: KindFocus.DefaultMinutes(),
			Reason:  "break finished, time to focus",
		}
	}

	streak := focusStreak(today)
	if streak > 0 && streak%interval == 0 {
		return Suggestion{
			Kind:    KindLongBreak,
			Minutes: KindLongBreak.DefaultMinutes(),
			Reason:  "focus cycle complete, take a long break",
		}
	}
	return Suggestion{
		Kind:    KindShortBreak,
		Minutes: KindShortBreak.DefaultMinutes(),
		Reason:  "focus session complete, take a short break",
	}
}

// filterToday keeps completed non-custom records that ended on now's UTC day,
// preserving order.
func filterToday(history []Record, now time.Time) []Record {
	year, month, day := now.UTC().Date()
	var today []Record
	for _, r := range history {
		if r.State != StateCompleted || r.EndedAt == nil {
			continue
		}
		if r.Kind == KindCustom {
			continue
		}
		y, m, d := r.EndedAt.UTC().Date()
		if y != year || m != month || d != day {
			continue
		}
		today = append(today, r)
	}
	return today
}

// focusStreak counts consecutive completed focus sessions since the last
// long break, scanning from most recent backwards.
func focusStreak(today []Record) int {
	streak := 0
	for _, r := range today {
		if r.Kind == KindLongBreak {
			break
		}
		if r.Kind.IsFocus() {
			streak++
		}
	}
	return streak
}
