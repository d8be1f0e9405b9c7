package session

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/focustide/internal/platform/errors"
	"github.com/louisbranch/focustide/internal/platform/id"
)

// Kind classifies what a timed session is for.
type Kind string

const (
	KindFocus      Kind = "focus"
	KindDeepFocus  Kind = "deep_focus"
	KindShortBreak Kind = "short_break"
	KindLongBreak  Kind = "long_break"
	KindCustom     Kind = "custom"
)

// State is the lifecycle state of a session.
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Planned duration bounds, in minutes.
const (
	MinPlannedMinutes = 1
	MaxPlannedMinutes = 480
)

// Rating bounds for completed sessions.
const (
	MinRating = 1
	MaxRating = 5
)

var (
	// ErrEmptyOwnerID indicates a missing owner ID.
	ErrEmptyOwnerID = apperrors.New(apperrors.CodeEmptyOwnerID, "owner id is required")
	// ErrInvalidKind indicates an unrecognized session kind.
	ErrInvalidKind = apperrors.New(apperrors.CodeInvalidKind, "session kind is not recognized")
	// ErrInvalidDuration indicates a planned duration outside the allowed bounds.
	ErrInvalidDuration = apperrors.New(apperrors.CodeInvalidDuration, "planned duration must be between 1 and 480 minutes")
	// ErrInvalidRating indicates a rating outside 1-5.
	ErrInvalidRating = apperrors.New(apperrors.CodeInvalidRating, "rating must be between 1 and 5")
	// ErrNotRunning indicates a pause on a session that is not running.
	ErrNotRunning = apperrors.New(apperrors.CodeSessionNotRunning, "session is not running")
	// ErrNoPausedSession indicates a resume on a session that is not paused.
	ErrNoPausedSession = apperrors.New(apperrors.CodeNoPausedSession, "session is not paused")
	// ErrNoActiveSession indicates a terminal transition on a session that is not active.
	ErrNoActiveSession = apperrors.New(apperrors.CodeNoActiveSession, "session is not active")
	// ErrNotCompleted indicates a post-completion amendment on a non-completed session.
	ErrNotCompleted = apperrors.New(apperrors.CodeSessionNotTerminal, "session is not completed")
)

// Record represents one timed session from start to a terminal state.
//
// Elapsed and remaining time are never stored; they are derived from the
// timestamps and the accumulated paused total (see accounting.go).
type Record struct {
	ID      string
	OwnerID string
	// GoalID is an optional weak reference to a goal owned elsewhere. It is
	// looked up, never owned, and never cascade-deleted by this service.
	GoalID         string
	Kind           Kind
	Title          string
	PlannedMinutes int
	StartedAt      time.Time
	UpdatedAt      time.Time
	EndedAt        *time.Time // nil until the session reaches a terminal state
	State          State
	PausedAt       *time.Time // non-nil iff State == StatePaused
	PauseCount     int
	TotalPaused    time.Duration // cumulative paused time, only ever grows
	Rating         int           // 0 when unset; 1-5 after completion
	Notes          string
}

// Valid reports whether the kind is one of the recognized session kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFocus, KindDeepFocus, KindShortBreak, KindLongBreak, KindCustom:
		return true
	}
	return false
}

// IsFocus reports whether the kind counts toward focus cycles.
func (k Kind) IsFocus() bool {
	return k == KindFocus || k == KindDeepFocus
}

// IsBreak reports whether the kind is a break.
func (k Kind) IsBreak() bool {
	return k == KindShortBreak || k == KindLongBreak
}

// DefaultTitle returns the display label used when a session has no explicit title.
func (k Kind) DefaultTitle() string {
	switch k {
	case KindFocus:
		return "Focus"
	case KindDeepFocus:
		return "Deep focus"
	case KindShortBreak:
		return "Short break"
	case KindLongBreak:
		return "Long break"
	default:
		return "Session"
	}
}

// DefaultMinutes returns the conventional planned duration for the kind.
// Custom sessions have no default and return 0.
func (k Kind) DefaultMinutes() int {
	switch k {
	case KindFocus:
		return 25
	case KindDeepFocus:
		return 50
	case KindShortBreak:
		return 5
	case KindLongBreak:
		return 15
	default:
		return 0
	}
}

// Terminal reports whether the state permits no further lifecycle transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Active reports whether the record currently holds the owner's active slot.
func (r Record) Active() bool {
	return r.State == StateRunning || r.State == StatePaused
}

// Planned returns the planned duration as a time.Duration.
func (r Record) Planned() time.Duration {
	return time.Duration(r.PlannedMinutes) * time.Minute
}

// StartInput describes the metadata needed to start a session.
type StartInput struct {
	OwnerID string
	Kind    Kind
	// PlannedMinutes of 0 selects the kind's default duration.
	PlannedMinutes int
	GoalID         string
	Title          string
}

// NormalizeStartInput trims, defaults, and validates start metadata.
func NormalizeStartInput(input StartInput) (StartInput, error) {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return StartInput{}, ErrEmptyOwnerID
	}
	if input.Kind == "" {
		input.Kind = KindFocus
	}
	if !input.Kind.Valid() {
		return StartInput{}, ErrInvalidKind
	}
	if input.PlannedMinutes == 0 {
		input.PlannedMinutes = input.Kind.DefaultMinutes()
	}
	if input.PlannedMinutes < MinPlannedMinutes || input.PlannedMinutes > MaxPlannedMinutes {
		return StartInput{}, ErrInvalidDuration
	}
	input.GoalID = strings.TrimSpace(input.GoalID)
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		input.Title = input.Kind.DefaultTitle()
	}
	return input, nil
}

// Start creates a new running session with a generated ID and timestamps.
func Start(input StartInput, now func() time.Time, idGenerator func() (string, error)) (Record, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeStartInput(input)
	if err != nil {
		return Record{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Record{}, fmt.Errorf("generate session id: %w", err)
	}

	startedAt := now().UTC()
	return Record{
		ID:             sessionID,
		OwnerID:        normalized.OwnerID,
		GoalID:         normalized.GoalID,
		Kind:           normalized.Kind,
		Title:          normalized.Title,
		PlannedMinutes: normalized.PlannedMinutes,
		StartedAt:      startedAt,
		UpdatedAt:      startedAt,
		State:          StateRunning,
	}, nil
}

// Pause freezes a running session.
func (r *Record) Pause(now time.Time) error {
	if r.State.Terminal() {
		return ErrNoActiveSession
	}
	if r.State != StateRunning {
		return ErrNotRunning
	}
	now = now.UTC()
	r.State = StatePaused
	r.PausedAt = &now
	r.PauseCount++
	r.UpdatedAt = now
	return nil
}

// Resume restarts a paused session, folding the paused span into TotalPaused.
func (r *Record) Resume(now time.Time) error {
	if r.State != StatePaused || r.PausedAt == nil {
		return ErrNoPausedSession
	}
	now = now.UTC()
	r.TotalPaused += now.Sub(*r.PausedAt)
	r.PausedAt = nil
	r.State = StateRunning
	r.UpdatedAt = now
	return nil
}

// Complete ends a running or paused session as completed. A paused session
// has its open paused span finalized before the terminal timestamps are set.
func (r *Record) Complete(now time.Time) error {
	return r.finish(StateCompleted, now)
}

// Cancel ends a running or paused session as cancelled.
func (r *Record) Cancel(now time.Time) error {
	return r.finish(StateCancelled, now)
}

// Expire ends a running session as expired when it has overrun its planned
// duration by more than grace. It reports whether the transition happened;
// a session inside its grace window is left untouched.
func (r *Record) Expire(now time.Time, grace time.Duration) (bool, error) {
	if r.State != StateRunning {
		return false, ErrNoActiveSession
	}
	if Elapsed(*r, now) <= r.Planned()+grace {
		return false, nil
	}
	if err := r.finish(StateExpired, now); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Record) finish(terminal State, now time.Time) error {
	if !r.Active() {
		return ErrNoActiveSession
	}
	now = now.UTC()
	if r.State == StatePaused && r.PausedAt != nil {
		r.TotalPaused += now.Sub(*r.PausedAt)
		r.PausedAt = nil
	}
	r.State = terminal
	r.EndedAt = &now
	r.UpdatedAt = now
	return nil
}

// SetRating records a 1-5 rating on a completed session.
func (r *Record) SetRating(rating int, now time.Time) error {
	if r.State != StateCompleted {
		return ErrNotCompleted
	}
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	r.Rating = rating
	r.UpdatedAt = now.UTC()
	return nil
}

// SetNotes replaces the free-text notes. Notes may be written any time
// before or at completion, and amended afterwards.
func (r *Record) SetNotes(notes string, now time.Time) {
	r.Notes = strings.TrimSpace(notes)
	r.UpdatedAt = now.UTC()
}
