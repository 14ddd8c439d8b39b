package repository_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/observe"
	"github.com/sakif/notekeeper/internal/repository"
	"github.com/sakif/notekeeper/internal/repository/sqlite"
)

var (
	zone  = time.FixedZone("UTC+2", 2*60*60)
	start = time.Date(2026, 3, 14, 9, 30, 0, 0, zone)
)

func newTestRepo(t *testing.T) (*repository.Repository, *sqlite.DB, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	db, err := sqlite.New(":memory:", sqlite.WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return repository.New(db, clock, zone, logger), db, clock
}

func next[T any](t *testing.T, ch <-chan observe.Result[T]) T {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "stream closed")
		require.NoError(t, r.Err)
		return r.Value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
	}
	panic("unreachable")
}

func noteTitles(notes []model.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}

func at(t time.Time) *time.Time { return &t }

func TestWatchActiveNotes_ReemitsAfterWrite(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := repo.WatchActiveNotes(ctx, "u1")
	assert.Empty(t, next(t, stream))

	n := &model.Note{UserID: "u1", Title: "Buy milk", Topic: model.TopicShopping}
	require.NoError(t, repo.AddNote(ctx, n))
	assert.Equal(t, []string{"Buy milk"}, noteTitles(next(t, stream)))

	require.NoError(t, repo.SetNoteCompletion(ctx, "u1", n.ID, true))
	assert.Empty(t, next(t, stream))
}

func TestWatchCompletedNotes_ReemitsAfterWrite(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := repo.WatchCompletedNotes(ctx, "u1")
	assert.Empty(t, next(t, stream))

	n := &model.Note{UserID: "u1", Title: "Pay invoice", Topic: model.TopicWork}
	require.NoError(t, repo.AddNote(ctx, n))
	assert.Empty(t, next(t, stream))

	require.NoError(t, repo.SetNoteCompletion(ctx, "u1", n.ID, true))
	assert.Equal(t, []string{"Pay invoice"}, noteTitles(next(t, stream)))

	require.NoError(t, repo.AddNote(ctx, &model.Note{UserID: "u2", Title: "not mine", IsCompleted: true}))
	assert.Equal(t, []string{"Pay invoice"}, noteTitles(next(t, stream)))

	_, err := repo.DeleteCompletedNotes(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, next(t, stream))
}

func TestNotePage_SearchAndTopic(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.AddNote(ctx, &model.Note{UserID: "u1", Title: "Buy milk", Topic: model.TopicShopping}))
	require.NoError(t, repo.AddNote(ctx, &model.Note{UserID: "u1", Title: "Quarterly report", Topic: model.TopicWork}))

	filter := model.DefaultNoteFilter()
	filter.Search = "milk"
	page, err := repo.NotePage(ctx, model.NoteQuery{UserID: "u1", NoteFilter: filter})
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk"}, noteTitles(page.Notes))

	filter.Topic = model.TopicWork
	page, err = repo.NotePage(ctx, model.NoteQuery{UserID: "u1", NoteFilter: filter})
	require.NoError(t, err)
	assert.Empty(t, page.Notes)
}

func TestTodayReminders_Bounds(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	notes := []*model.Note{
		{UserID: "u1", Title: "yesterday late", ReminderTime: at(time.Date(2026, 3, 13, 23, 59, 0, 0, zone))},
		{UserID: "u1", Title: "midnight", ReminderTime: at(time.Date(2026, 3, 14, 0, 0, 0, 0, zone))},
		{UserID: "u1", Title: "today 14:00", ReminderTime: at(time.Date(2026, 3, 14, 14, 0, 0, 0, zone))},
		{UserID: "u1", Title: "last ms", ReminderTime: at(time.Date(2026, 3, 14, 23, 59, 59, int(999*time.Millisecond), zone))},
		{UserID: "u1", Title: "tomorrow 00:01", ReminderTime: at(time.Date(2026, 3, 15, 0, 1, 0, 0, zone))},
		{UserID: "u1", Title: "no reminder"},
	}
	for _, n := range notes {
		n.Topic = model.TopicGeneral
		require.NoError(t, repo.AddNote(ctx, n))
	}

	got, err := repo.TodayReminders(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"midnight", "today 14:00", "last ms"}, noteTitles(got))
}

func TestWatchTodayReminders_RollsOverAtMidnight(t *testing.T) {
	repo, _, clock := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, repo.AddNote(ctx, &model.Note{UserID: "u1", Title: "today 14:00", Topic: model.TopicWork,
		ReminderTime: at(time.Date(2026, 3, 14, 14, 0, 0, 0, zone))}))
	require.NoError(t, repo.AddNote(ctx, &model.Note{UserID: "u1", Title: "tomorrow 00:01", Topic: model.TopicWork,
		ReminderTime: at(time.Date(2026, 3, 15, 0, 1, 0, 0, zone))}))

	stream := repo.WatchTodayReminders(ctx, "u1")
	assert.Equal(t, []string{"today 14:00"}, noteTitles(next(t, stream)))

	// The stream arms its midnight timer after the first emission.
	clock.BlockUntil(1)
	clock.Advance(15 * time.Hour)

	assert.Equal(t, []string{"tomorrow 00:01"}, noteTitles(next(t, stream)))
}

func TestWatchUser_NilUntilSaved(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := repo.WatchUser(ctx, "sub-1")
	assert.Nil(t, next(t, stream))

	require.NoError(t, repo.SaveUser(ctx, &model.User{ID: "sub-1", Name: "Dana", Email: "dana@example.com"}))
	u := next(t, stream)
	require.NotNil(t, u)
	assert.Equal(t, "Dana", u.Name)
}

func TestReminders_TodayViewUsesLocalDay(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	ctx := context.Background()

	for _, r := range []*model.Reminder{
		{UserID: "u1", Title: "standup", ReminderDateTime: time.Date(2026, 3, 14, 10, 0, 0, 0, zone)},
		{UserID: "u1", Title: "early tomorrow", ReminderDateTime: time.Date(2026, 3, 15, 0, 30, 0, 0, zone)},
	} {
		require.NoError(t, repo.AddReminder(ctx, r))
	}

	got, err := repo.Reminders(ctx, model.ReminderQuery{UserID: "u1", View: model.ReminderToday})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "standup", got[0].Title)
}

func TestClaimReminderNotified_PublishesOnce(t *testing.T) {
	repo, _, clock := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &model.Reminder{UserID: "u1", Title: "due", ReminderDateTime: clock.Now().Add(-time.Minute)}
	require.NoError(t, repo.AddReminder(ctx, r))

	pending, err := repo.PendingReminders(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	stream := repo.WatchReminders(ctx, model.ReminderQuery{UserID: "u1", View: model.ReminderAll})
	assert.False(t, next(t, stream)[0].IsNotified)

	ok, err := repo.ClaimReminderNotified(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, next(t, stream)[0].IsNotified)

	ok, err = repo.ClaimReminderNotified(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err = repo.PendingReminders(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestErrors_NotFoundKeptStorageWrapped(t *testing.T) {
	repo, db, _ := newTestRepo(t)
	ctx := context.Background()

	err := repo.DeleteNote(ctx, "u1", "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NotErrorIs(t, err, apperror.ErrStorage)

	require.NoError(t, db.Close())
	_, err = repo.ActiveNotes(ctx, "u1")
	assert.ErrorIs(t, err, apperror.ErrStorage)
	assert.Equal(t, "storage error", apperror.Public(err))
}
