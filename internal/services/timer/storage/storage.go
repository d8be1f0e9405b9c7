// Package storage defines persistence contracts for timer session state.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/focustide/internal/platform/errors"
	"github.com/louisbranch/focustide/internal/services/timer/domain/session"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such session"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrActiveSessionExists indicates an insert tried to start a second active
// session for the same owner, which would violate the single-active-session
// domain rule.
var ErrActiveSessionExists = apperrors.New(apperrors.CodeActiveSessionExists, "active session already exists for owner")

// List limits for session history queries.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Filter narrows session history queries. Zero values mean "no constraint".
type Filter struct {
	Kind          session.Kind
	State         session.State
	StartedAfter  time.Time
	StartedBefore time.Time
	Limit         int
}

// SessionStore owns timed-session lifecycle records.
//
// InsertSession is the single point that needs true atomicity: the store must
// guarantee at most one record per owner in a running or paused state, even
// under concurrent inserts, and report violations as ErrActiveSessionExists.
// All other mutations act on one already-owned record.
type SessionStore interface {
	// InsertSession persists a new session. For active sessions it atomically
	// acquires the owner's active slot or fails with ErrActiveSessionExists.
	InsertSession(ctx context.Context, record session.Record) error
	// UpdateSession replaces a session's mutable state by (owner, id).
	// Returns ErrNotFound when no such session exists.
	UpdateSession(ctx context.Context, record session.Record) error
	// GetSession retrieves one session by owner and session ID.
	GetSession(ctx context.Context, ownerID, sessionID string) (session.Record, error)
	// GetActiveSession retrieves the owner's running or paused session.
	// Returns ErrNotFound when the owner has no active session.
	GetActiveSession(ctx context.Context, ownerID string) (session.Record, error)
	// ListSessions returns the owner's sessions matching filter, most
	// recently started first.
	ListSessions(ctx context.Context, ownerID string, filter Filter) ([]session.Record, error)
	// ListOverrunRunning returns running sessions, across owners, whose
	// planned duration plus grace elapsed before now. Used by expiry sweeps.
	ListOverrunRunning(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]session.Record, error)
}
