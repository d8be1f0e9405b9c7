// Package app orchestrates the timed-session lifecycle: state transitions,
// the single-active-session invariant, goal time contributions, and reads.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/focustide/internal/platform/errors"
	"github.com/louisbranch/focustide/internal/platform/id"
	"github.com/louisbranch/focustide/internal/services/timer/domain/session"
	"github.com/louisbranch/focustide/internal/services/timer/storage"
)

// DefaultGraceWindow is how far past its planned duration a running session
// may drift before an expiry check ends it.
const DefaultGraceWindow = 10 * time.Minute

// ErrInvalidGoal indicates a start referenced a goal the directory cannot resolve.
var ErrInvalidGoal = apperrors.New(apperrors.CodeInvalidGoal, "goal reference cannot be resolved")

// GoalDirectory is the narrow contract to the goal collaborator. Goals are
// owned elsewhere; this service only resolves references and reports time
// contributions.
type GoalDirectory interface {
	// ResolveGoal reports whether the goal reference exists for the owner.
	ResolveGoal(ctx context.Context, ownerID, goalID string) (bool, error)
	// RecordTimeContribution credits minutes of completed focus time to a
	// goal. Best effort: failures are logged by the caller, never retried.
	RecordTimeContribution(ctx context.Context, ownerID, goalID string, minutes int) error
}

// Options configures optional service collaborators and policy knobs.
type Options struct {
	// Goals resolves goal references and receives time contributions.
	// When nil, goal references are stored unvalidated and no contributions
	// are reported.
	Goals GoalDirectory
	// GraceWindow overrides DefaultGraceWindow.
	GraceWindow time.Duration
	// CycleInterval overrides session.DefaultCycleInterval for suggestions.
	CycleInterval int
}

// Service implements the timed-session lifecycle operations.
type Service struct {
	store         storage.SessionStore
	goals         GoalDirectory
	clock         func() time.Time
	idGenerator   func() (string, error)
	graceWindow   time.Duration
	cycleInterval int
}

// NewService creates a Service with default clock and id generation.
func NewService(store storage.SessionStore, opts Options) *Service {
	grace := opts.GraceWindow
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	interval := opts.CycleInterval
	if interval <= 0 {
		interval = session.DefaultCycleInterval
	}
	return &Service{
		store:         store,
		goals:         opts.Goals,
		clock:         time.Now,
		idGenerator:   id.NewID,
		graceWindow:   grace,
		cycleInterval: interval,
	}
}

// View is the public read shape for a session. Elapsed and remaining are
// computed at read time, never stored.
type View struct {
	ID             string
	Kind           session.Kind
	Title          string
	PlannedMinutes int
	StartedAt      time.Time
	State          session.State
	Elapsed        time.Duration
	Remaining      time.Duration
	PauseCount     int
}

// Result is the outcome of a terminal transition, pairing the view with the
// final accounting figures.
type Result struct {
	View
	ActualMinutes     int
	CompletionPercent int
}

func (s *Service) view(record session.Record, now time.Time) View {
	elapsed := session.Elapsed(record, now)
	return View{
		ID:             record.ID,
		Kind:           record.Kind,
		Title:          record.Title,
		PlannedMinutes: record.PlannedMinutes,
		StartedAt:      record.StartedAt,
		State:          record.State,
		Elapsed:        elapsed,
		Remaining:      session.Remaining(record.Planned(), elapsed),
		PauseCount:     record.PauseCount,
	}
}

func (s *Service) result(record session.Record, now time.Time) Result {
	elapsed := session.Elapsed(record, now)
	return Result{
		View:              s.view(record, now),
		ActualMinutes:     session.ActualMinutes(elapsed),
		CompletionPercent: session.CompletionPercent(elapsed, record.Planned()),
	}
}

// storageErr wraps unexpected store failures so callers can distinguish
// outages from lifecycle conflicts. Domain sentinels pass through untouched.
func storageErr(op string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStorageUnavailable, fmt.Sprintf("%s: session store unavailable", op), err)
}

// Start begins a new session for the owner. A stale running session past its
// grace window is expired in passing rather than blocking the new start.
func (s *Service) Start(ctx context.Context, input session.StartInput) (View, error) {
	if s.store == nil {
		return View{}, fmt.Errorf("session store is not configured")
	}

	normalized, err := session.NormalizeStartInput(input)
	if err != nil {
		return View{}, err
	}

	if normalized.GoalID != "" && s.goals != nil {
		exists, err := s.goals.ResolveGoal(ctx, normalized.OwnerID, normalized.GoalID)
		if err != nil {
			return View{}, fmt.Errorf("resolve goal: %w", err)
		}
		if !exists {
			return View{}, ErrInvalidGoal
		}
	}

	now := s.clock().UTC()

	// Lazy expiry: a running session abandoned past planned+grace must not
	// hold the active slot against a fresh start.
	active, err := s.store.GetActiveSession(ctx, normalized.OwnerID)
	switch {
	case err == nil:
		expired := false
		if active.State == session.StateRunning {
			expired, _ = active.Expire(now, s.graceWindow)
		}
		if !expired {
			return View{}, storage.ErrActiveSessionExists
		}
		if err := s.store.UpdateSession(ctx, active); err != nil {
			return View{}, storageErr("expire stale session", err)
		}
		log.Printf("session expired owner_id=%s session_id=%s planned_minutes=%d", active.OwnerID, active.ID, active.PlannedMinutes)
	case errors.Is(err, storage.ErrNotFound):
		// No active session; proceed.
	default:
		return View{}, storageErr("check active session", err)
	}

	record, err := session.Start(normalized, s.clock, s.idGenerator)
	if err != nil {
		return View{}, err
	}

	// The store's insert is the atomic guard; a concurrent start between the
	// check above and here still loses cleanly.
	if err := s.store.InsertSession(ctx, record); err != nil {
		if errors.Is(err, storage.ErrActiveSessionExists) {
			return View{}, storage.ErrActiveSessionExists
		}
		return View{}, storageErr("insert session", err)
	}

	return s.view(record, record.StartedAt), nil
}

// Pause freezes the owner's running session.
func (s *Service) Pause(ctx context.Context, ownerID string) (View, error) {
	record, err := s.requireActive(ctx, ownerID)
	if err != nil {
		return View{}, err
	}

	now := s.clock().UTC()
	if err := record.Pause(now); err != nil {
		return View{}, err
	}
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return View{}, storageErr("pause session", err)
	}
	return s.view(record, now), nil
}

// Resume restarts the owner's paused session.
func (s *Service) Resume(ctx context.Context, ownerID string) (View, error) {
	record, err := s.requireActive(ctx, ownerID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNoActiveSession) {
			return View{}, session.ErrNoPausedSession
		}
		return View{}, err
	}

	now := s.clock().UTC()
	if err := record.Resume(now); err != nil {
		return View{}, err
	}
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return View{}, storageErr("resume session", err)
	}
	return s.view(record, now), nil
}

// StopInput carries the optional post-completion fields accepted by Stop.
type StopInput struct {
	Rating int // 0 leaves the rating unset
	Notes  string
}

// Stop completes the owner's active session and reports any goal time
// contribution. Completion is authoritative: a failed contribution is
// logged and never rolls the transition back.
func (s *Service) Stop(ctx context.Context, ownerID string, input StopInput) (Result, error) {
	record, err := s.requireActive(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}

	// Validate before any mutation so a bad rating leaves the session running.
	if input.Rating != 0 && (input.Rating < session.MinRating || input.Rating > session.MaxRating) {
		return Result{}, session.ErrInvalidRating
	}

	now := s.clock().UTC()
	if err := record.Complete(now); err != nil {
		return Result{}, err
	}
	if input.Rating != 0 {
		if err := record.SetRating(input.Rating, now); err != nil {
			return Result{}, err
		}
	}
	if strings.TrimSpace(input.Notes) != "" {
		record.SetNotes(input.Notes, now)
	}
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return Result{}, storageErr("stop session", err)
	}

	result := s.result(record, now)
	s.contributeToGoal(ctx, record, result.ActualMinutes)
	return result, nil
}

// contributeToGoal reports completed focus time to the goal collaborator.
// At most once, best effort.
func (s *Service) contributeToGoal(ctx context.Context, record session.Record, minutes int) {
	if record.GoalID == "" || s.goals == nil || minutes <= 0 {
		return
	}
	if err := s.goals.RecordTimeContribution(ctx, record.OwnerID, record.GoalID, minutes); err != nil {
		log.Printf("goal contribution failed owner_id=%s session_id=%s goal_id=%s minutes=%d error=%v",
			record.OwnerID, record.ID, record.GoalID, minutes, err)
	}
}

// Cancel ends the owner's active session as cancelled. The actual duration
// is still reported for partial-credit reporting, but cancelled sessions are
// excluded from productive-time aggregates.
func (s *Service) Cancel(ctx context.Context, ownerID string) (Result, error) {
	record, err := s.requireActive(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}

	now := s.clock().UTC()
	if err := record.Cancel(now); err != nil {
		return Result{}, err
	}
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return Result{}, storageErr("cancel session", err)
	}
	return s.result(record, now), nil
}

// ExpireOverrun ends running sessions, across owners, that have overrun
// their planned duration past the grace window. It returns how many
// sessions were expired. Races with a concurrent stop lose harmlessly: the
// session is already terminal and the update is skipped.
func (s *Service) ExpireOverrun(ctx context.Context, limit int) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("session store is not configured")
	}

	now := s.clock().UTC()
	stale, err := s.store.ListOverrunRunning(ctx, now, s.graceWindow, limit)
	if err != nil {
		return 0, storageErr("list overrun sessions", err)
	}

	expired := 0
	for _, record := range stale {
		ok, err := record.Expire(now, s.graceWindow)
		if err != nil || !ok {
			continue
		}
		if err := s.store.UpdateSession(ctx, record); err != nil {
			log.Printf("expire sweep update failed owner_id=%s session_id=%s error=%v", record.OwnerID, record.ID, err)
			continue
		}
		log.Printf("session expired owner_id=%s session_id=%s planned_minutes=%d", record.OwnerID, record.ID, record.PlannedMinutes)
		expired++
	}
	return expired, nil
}

// Amend updates the rating and/or notes of a completed session. This is the
// only mutation allowed once a session is terminal.
func (s *Service) Amend(ctx context.Context, ownerID, sessionID string, rating int, notes string) (Result, error) {
	if s.store == nil {
		return Result{}, fmt.Errorf("session store is not configured")
	}
	record, err := s.store.GetSession(ctx, ownerID, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, storage.ErrNotFound
		}
		return Result{}, storageErr("get session", err)
	}

	now := s.clock().UTC()
	if rating != 0 {
		if err := record.SetRating(rating, now); err != nil {
			return Result{}, err
		}
	}
	if strings.TrimSpace(notes) != "" {
		if record.State != session.StateCompleted {
			return Result{}, session.ErrNotCompleted
		}
		record.SetNotes(notes, now)
	}
	if err := s.store.UpdateSession(ctx, record); err != nil {
		return Result{}, storageErr("amend session", err)
	}
	return s.result(record, now), nil
}

// GetActive returns the owner's active session view, or false when none exists.
func (s *Service) GetActive(ctx context.Context, ownerID string) (View, bool, error) {
	if s.store == nil {
		return View{}, false, fmt.Errorf("session store is not configured")
	}
	record, err := s.store.GetActiveSession(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, false, nil
		}
		return View{}, false, storageErr("get active session", err)
	}
	return s.view(record, s.clock().UTC()), true, nil
}

// History returns the owner's session views matching filter, most recent first.
func (s *Service) History(ctx context.Context, ownerID string, filter storage.Filter) ([]View, error) {
	if s.store == nil {
		return nil, fmt.Errorf("session store is not configured")
	}
	records, err := s.store.ListSessions(ctx, ownerID, filter)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	now := s.clock().UTC()
	views := make([]View, 0, len(records))
	for _, record := range records {
		views = append(views, s.view(record, now))
	}
	return views, nil
}

// SuggestNext recommends the next session kind from the owner's completed
// history today. Advisory only; it never gates Start.
func (s *Service) SuggestNext(ctx context.Context, ownerID string) (session.Suggestion, error) {
	if s.store == nil {
		return session.Suggestion{}, fmt.Errorf("session store is not configured")
	}
	now := s.clock().UTC()
	dayStart := now.Truncate(24 * time.Hour)
	records, err := s.store.ListSessions(ctx, ownerID, storage.Filter{
		State:        session.StateCompleted,
		StartedAfter: dayStart.Add(-24 * time.Hour), // catch sessions started yesterday that completed today
		Limit:        storage.MaxListLimit,
	})
	if err != nil {
		return session.Suggestion{}, storageErr("list completed sessions", err)
	}
	return session.SuggestNext(records, now, s.cycleInterval), nil
}

// Summary aggregates an owner's day for dashboard consumption. Only
// completed focus-kind and custom sessions count toward productive minutes;
// cancelled and expired sessions are excluded.
type Summary struct {
	Day               time.Time
	CompletedFocus    int
	CompletedBreaks   int
	Cancelled         int
	Expired           int
	ProductiveMinutes int
}

// Summarize computes the owner's summary for the UTC day containing at.
func (s *Service) Summarize(ctx context.Context, ownerID string, at time.Time) (Summary, error) {
	if s.store == nil {
		return Summary{}, fmt.Errorf("session store is not configured")
	}
	dayStart := at.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)
	records, err := s.store.ListSessions(ctx, ownerID, storage.Filter{
		StartedAfter:  dayStart,
		StartedBefore: dayEnd,
		Limit:         storage.MaxListLimit,
	})
	if err != nil {
		return Summary{}, storageErr("list sessions", err)
	}

	summary := Summary{Day: dayStart}
	for _, record := range records {
		switch record.State {
		case session.StateCompleted:
			if record.Kind.IsBreak() {
				summary.CompletedBreaks++
				continue
			}
			summary.CompletedFocus++
			summary.ProductiveMinutes += session.ActualMinutes(session.Elapsed(record, dayEnd))
		case session.StateCancelled:
			summary.Cancelled++
		case session.StateExpired:
			summary.Expired++
		}
	}
	return summary, nil
}

// requireActive loads the owner's active session or fails with
// ErrNoActiveSession.
func (s *Service) requireActive(ctx context.Context, ownerID string) (session.Record, error) {
	if s.store == nil {
		return session.Record{}, fmt.Errorf("session store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return session.Record{}, session.ErrEmptyOwnerID
	}
	record, err := s.store.GetActiveSession(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Record{}, session.ErrNoActiveSession
		}
		return session.Record{}, storageErr("get active session", err)
	}
	return record, nil
}
