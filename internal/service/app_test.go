package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/notify"
	"github.com/sakif/notekeeper/internal/observe"
	"github.com/sakif/notekeeper/internal/repository"
	"github.com/sakif/notekeeper/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var start = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeScheduler keeps the pending set in a map so tests can see exactly
// what would fire.
type fakeScheduler struct {
	mu      sync.Mutex
	pending map[string]notify.Request
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: make(map[string]notify.Request)}
}

func (f *fakeScheduler) ScheduleAt(_ context.Context, req notify.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[model.NotificationKey(req.Kind, req.EntityID)] = req
	return nil
}

func (f *fakeScheduler) Cancel(_ context.Context, userID string, kind model.OwnerKind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.NotificationKey(kind, id)
	if req, ok := f.pending[key]; ok && req.UserID == userID {
		delete(f.pending, key)
	}
	return nil
}

func (f *fakeScheduler) get(kind model.OwnerKind, id string) (notify.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.pending[model.NotificationKey(kind, id)]
	return req, ok
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// fakeSession is an in-memory current user.
type fakeSession struct {
	v *observe.Value[string]
}

func newFakeSession() *fakeSession {
	return &fakeSession{v: observe.NewValue("")}
}

func (s *fakeSession) CurrentUser() string { return s.v.Load() }

func (s *fakeSession) WatchCurrentUser(ctx context.Context) <-chan string {
	return s.v.Watch(ctx)
}

func (s *fakeSession) SetCurrentUser(_ context.Context, id string) error {
	s.v.Store(id)
	return nil
}

func (s *fakeSession) ClearCurrentUser(_ context.Context) error {
	s.v.Store("")
	return nil
}

var _ repository.CurrentUserSource = (*fakeSession)(nil)

type testApp struct {
	*App
	clock   *clockwork.FakeClock
	sched   *fakeScheduler
	session *fakeSession
}

// newTestApp wires a real repository over in-memory SQLite with a fake
// scheduler and session. The session starts signed in as "alice".
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	db, err := sqlite.New(":memory:", sqlite.WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ta := &testApp{clock: clock, sched: newFakeScheduler(), session: newFakeSession()}
	ta.App = &App{
		Repo:      repository.New(db, clock, time.UTC, logger),
		Session:   ta.session,
		Scheduler: ta.sched,
		Clock:     clock,
		Logger:    logger,
	}
	ta.session.v.Store("alice")
	return ta
}

func at(t time.Time) *time.Time { return &t }
