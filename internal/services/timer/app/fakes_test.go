package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/focustide/internal/services/timer/domain/session"
	"github.com/louisbranch/focustide/internal/services/timer/storage"
)

// fakeStore is an in-memory SessionStore that enforces the same
// single-active-session guarantee as the SQLite store.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]session.Record

	insertErr error
	updateErr error
	getErr    error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]session.Record)}
}

func (f *fakeStore) InsertSession(ctx context.Context, record session.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if record.Active() {
		for _, existing := range f.sessions {
			if existing.OwnerID == record.OwnerID && existing.Active() {
				return storage.ErrActiveSessionExists
			}
		}
	}
	f.sessions[record.ID] = record
	return nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, record session.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.sessions[record.ID]; !ok {
		return storage.ErrNotFound
	}
	f.sessions[record.ID] = record
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, ownerID, sessionID string) (session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return session.Record{}, f.getErr
	}
	record, ok := f.sessions[sessionID]
	if !ok || record.OwnerID != ownerID {
		return session.Record{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) GetActiveSession(ctx context.Context, ownerID string) (session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return session.Record{}, f.getErr
	}
	for _, record := range f.sessions {
		if record.OwnerID == ownerID && record.Active() {
			return record, nil
		}
	}
	return session.Record{}, storage.ErrNotFound
}

func (f *fakeStore) ListSessions(ctx context.Context, ownerID string, filter storage.Filter) ([]session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var records []session.Record
	for _, record := range f.sessions {
		if record.OwnerID != ownerID {
			continue
		}
		if filter.Kind != "" && record.Kind != filter.Kind {
			continue
		}
		if filter.State != "" && record.State != filter.State {
			continue
		}
		if !filter.StartedAfter.IsZero() && record.StartedAt.Before(filter.StartedAfter) {
			continue
		}
		if !filter.StartedBefore.IsZero() && !record.StartedAt.Before(filter.StartedBefore) {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (f *fakeStore) ListOverrunRunning(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var records []session.Record
	for _, record := range f.sessions {
		if record.State != session.StateRunning {
			continue
		}
		if session.Elapsed(record, now) > record.Planned()+grace {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// stored returns a snapshot of the record by id for assertions.
func (f *fakeStore) stored(sessionID string) (session.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.sessions[sessionID]
	return record, ok
}

// fakeGoals is a configurable GoalDirectory.
type fakeGoals struct {
	mu         sync.Mutex
	exists     bool
	resolveErr error
	recordErr  error

	resolved      []string
	contributions map[string]int
}

func newFakeGoals(exists bool) *fakeGoals {
	return &fakeGoals{exists: exists, contributions: make(map[string]int)}
}

func (f *fakeGoals) ResolveGoal(ctx context.Context, ownerID, goalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, goalID)
	return f.exists, f.resolveErr
}

func (f *fakeGoals) RecordTimeContribution(ctx context.Context, ownerID, goalID string, minutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.contributions[goalID] += minutes
	return nil
}

func (f *fakeGoals) contributed(goalID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contributions[goalID]
}

// fakeClock is a settable clock for deterministic lifecycle tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestService wires a Service with a fake store and clock.
func newTestService(store *fakeStore, clock *fakeClock, opts Options) *Service {
	service := NewService(store, opts)
	service.clock = clock.Now
	seq := 0
	service.idGenerator = func() (string, error) {
		seq++
		return fmt.Sprintf("session-%d", seq), nil
	}
	return service
}
