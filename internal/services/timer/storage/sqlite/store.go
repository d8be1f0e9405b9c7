// Package sqlite provides a SQLite-backed timer session store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/focustide/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/focustide/internal/services/timer/domain/session"
	"github.com/louisbranch/focustide/internal/services/timer/storage"
	"github.com/louisbranch/focustide/internal/services/timer/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists timer sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	at := fromMillis(value.Int64)
	return &at
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const sessionColumns = `id, owner_id, goal_id, kind, title, planned_minutes, state,
	started_at, updated_at, ended_at, paused_at, pause_count, total_paused_ms, rating, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (session.Record, error) {
	var (
		record        session.Record
		kind, state   string
		startedAt     int64
		updatedAt     int64
		endedAt       sql.NullInt64
		pausedAt      sql.NullInt64
		totalPausedMs int64
	)
	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.GoalID,
		&kind,
		&record.Title,
		&record.PlannedMinutes,
		&state,
		&startedAt,
		&updatedAt,
		&endedAt,
		&pausedAt,
		&record.PauseCount,
		&totalPausedMs,
		&record.Rating,
		&record.Notes,
	)
	if err != nil {
		return session.Record{}, err
	}
	record.Kind = session.Kind(kind)
	record.State = session.State(state)
	record.StartedAt = fromMillis(startedAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.EndedAt = fromNullMillis(endedAt)
	record.PausedAt = fromNullMillis(pausedAt)
	record.TotalPaused = time.Duration(totalPausedMs) * time.Millisecond
	return record, nil
}

// InsertSession persists a new session. For active sessions the owner's
// active slot is acquired inside one transaction: an explicit existence
// check produces a clean conflict error, and the partial unique index on
// (owner_id) WHERE state IN ('running','paused') backstops any race.
func (s *Store) InsertSession(ctx context.Context, record session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.OwnerID) == "" {
		return fmt.Errorf("owner id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if record.Active() {
		var active int
		err := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM sessions WHERE owner_id = ? AND state IN ('running', 'paused')`,
			record.OwnerID,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("check active session: %w", err)
		}
		if active != 0 {
			return storage.ErrActiveSessionExists
		}
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OwnerID,
		record.GoalID,
		string(record.Kind),
		record.Title,
		record.PlannedMinutes,
		string(record.State),
		toMillis(record.StartedAt),
		toMillis(record.UpdatedAt),
		toNullMillis(record.EndedAt),
		toNullMillis(record.PausedAt),
		record.PauseCount,
		record.TotalPaused.Milliseconds(),
		record.Rating,
		record.Notes,
	)
	if err != nil {
		if isActiveSlotConflict(err) {
			return storage.ErrActiveSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return tx.Commit()
}

// isActiveSlotConflict reports whether err is a violation of the partial
// unique index guarding the single-active-session invariant.
func isActiveSlotConflict(err error) bool {
	return strings.Contains(err.Error(), "sessions_one_active_per_owner") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed: sessions.owner_id")
}

// UpdateSession replaces a session's mutable state by (owner, id).
func (s *Store) UpdateSession(ctx context.Context, record session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET
			kind = ?, title = ?, planned_minutes = ?, state = ?,
			updated_at = ?, ended_at = ?, paused_at = ?,
			pause_count = ?, total_paused_ms = ?, rating = ?, notes = ?
		 WHERE owner_id = ? AND id = ?`,
		string(record.Kind),
		record.Title,
		record.PlannedMinutes,
		string(record.State),
		toMillis(record.UpdatedAt),
		toNullMillis(record.EndedAt),
		toNullMillis(record.PausedAt),
		record.PauseCount,
		record.TotalPaused.Milliseconds(),
		record.Rating,
		record.Notes,
		record.OwnerID,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetSession retrieves one session by owner and session ID.
func (s *Store) GetSession(ctx context.Context, ownerID, sessionID string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.Record{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE owner_id = ? AND id = ?`,
		ownerID,
		sessionID,
	)
	record, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, storage.ErrNotFound
		}
		return session.Record{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// GetActiveSession retrieves the owner's running or paused session.
func (s *Store) GetActiveSession(ctx context.Context, ownerID string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return session.Record{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE owner_id = ? AND state IN ('running', 'paused')`,
		ownerID,
	)
	record, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, storage.ErrNotFound
		}
		return session.Record{}, fmt.Errorf("get active session: %w", err)
	}
	return record, nil
}

// ListSessions returns the owner's sessions matching filter, most recently
// started first.
func (s *Store) ListSessions(ctx context.Context, ownerID string, filter storage.Filter) ([]session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE owner_id = ?`
	args := []any{ownerID}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, toMillis(filter.StartedAfter))
	}
	if !filter.StartedBefore.IsZero() {
		query += ` AND started_at < ?`
		args = append(args, toMillis(filter.StartedBefore))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	if limit > storage.MaxListLimit {
		limit = storage.MaxListLimit
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []session.Record
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// ListOverrunRunning returns running sessions whose planned duration plus
// grace elapsed before now. Elapsed running time in SQL terms is
// now - started_at - total_paused_ms, so the overrun condition becomes
// started_at + planned + paused + grace < now.
func (s *Store) ListOverrunRunning(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE state = 'running'
		   AND started_at + (planned_minutes * 60000) + total_paused_ms + ? < ?
		 ORDER BY started_at ASC
		 LIMIT ?`,
		grace.Milliseconds(),
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list overrun sessions: %w", err)
	}
	defer rows.Close()

	var records []session.Record
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}
