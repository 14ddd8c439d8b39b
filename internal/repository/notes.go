package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/observe"
)

// Repository owns every read and write of domain data and the change
// signals that keep watchers current.
type Repository struct {
	store  Store
	clock  clockwork.Clock
	loc    *time.Location
	logger *slog.Logger

	notesChanged     *observe.Broker
	remindersChanged *observe.Broker
	usersChanged     *observe.Broker
}

// New builds a Repository. loc decides where "today" starts and ends; nil
// means time.Local.
func New(store Store, clock clockwork.Clock, loc *time.Location, logger *slog.Logger) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{
		store:            store,
		clock:            clock,
		loc:              loc,
		logger:           logger,
		notesChanged:     observe.NewBroker(),
		remindersChanged: observe.NewBroker(),
		usersChanged:     observe.NewBroker(),
	}
}

// storageErr keeps domain errors as they are and wraps anything else coming
// out of the engine as a storage failure.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Storage(op, err)
}

// DayBounds returns the first and last millisecond of the local day holding t.
func (r *Repository) DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(r.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// untilMidnight wakes a stream at the start of the next local day.
func (r *Repository) untilMidnight() (<-chan time.Time, func()) {
	now := r.clock.Now()
	_, end := r.DayBounds(now)
	d := end.Add(time.Millisecond).Sub(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	timer := r.clock.NewTimer(d)
	return timer.Chan(), func() { timer.Stop() }
}

// AddNote inserts n. The caller has already validated it.
func (r *Repository) AddNote(ctx context.Context, n *model.Note) error {
	if err := r.store.CreateNote(ctx, n); err != nil {
		return storageErr("add note", err)
	}
	r.notesChanged.Publish()
	return nil
}

func (r *Repository) GetNote(ctx context.Context, userID, id string) (*model.Note, error) {
	n, err := r.store.GetNote(ctx, userID, id)
	return n, storageErr("get note", err)
}

// UpdateNote writes title, content, topic and reminder time.
func (r *Repository) UpdateNote(ctx context.Context, n *model.Note) error {
	if err := r.store.UpdateNote(ctx, n); err != nil {
		return storageErr("update note", err)
	}
	r.notesChanged.Publish()
	return nil
}

func (r *Repository) DeleteNote(ctx context.Context, userID, id string) error {
	if err := r.store.DeleteNote(ctx, userID, id); err != nil {
		return storageErr("delete note", err)
	}
	r.notesChanged.Publish()
	return nil
}

func (r *Repository) SetNoteCompletion(ctx context.Context, userID, id string, completed bool) error {
	if err := r.store.SetNoteCompletion(ctx, userID, id, completed); err != nil {
		return storageErr("set note completion", err)
	}
	r.notesChanged.Publish()
	return nil
}

// DeleteCompletedNotes returns the ids it removed so their notifications can
// be cancelled.
func (r *Repository) DeleteCompletedNotes(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.store.DeleteCompletedNotes(ctx, userID)
	if err != nil {
		return nil, storageErr("delete completed notes", err)
	}
	if len(ids) > 0 {
		r.notesChanged.Publish()
	}
	return ids, nil
}

func (r *Repository) DeleteNotes(ctx context.Context, userID string, ids []string) ([]string, error) {
	deleted, err := r.store.DeleteNotes(ctx, userID, ids)
	if err != nil {
		return nil, storageErr("delete notes", err)
	}
	if len(deleted) > 0 {
		r.notesChanged.Publish()
	}
	return deleted, nil
}

func (r *Repository) ActiveNotes(ctx context.Context, userID string) ([]model.Note, error) {
	notes, err := r.store.ListNotes(ctx, userID, model.CompletionActive)
	return notes, storageErr("list active notes", err)
}

func (r *Repository) CompletedNotes(ctx context.Context, userID string) ([]model.Note, error) {
	notes, err := r.store.ListNotes(ctx, userID, model.CompletionCompleted)
	return notes, storageErr("list completed notes", err)
}

// WatchActiveNotes emits the user's open notes, newest first, and again after
// every note write.
func (r *Repository) WatchActiveNotes(ctx context.Context, userID string) <-chan observe.Result[[]model.Note] {
	return observe.Query(ctx, func(ctx context.Context) ([]model.Note, error) {
		return r.ActiveNotes(ctx, userID)
	}, r.notesChanged)
}

func (r *Repository) WatchCompletedNotes(ctx context.Context, userID string) <-chan observe.Result[[]model.Note] {
	return observe.Query(ctx, func(ctx context.Context) ([]model.Note, error) {
		return r.CompletedNotes(ctx, userID)
	}, r.notesChanged)
}

// NotePage returns one page of PageSize notes matching q.
func (r *Repository) NotePage(ctx context.Context, q model.NoteQuery) (model.NotePage, error) {
	page, err := r.store.QueryNotes(ctx, q, model.PageSize)
	return page, storageErr("query notes", err)
}

// WatchNotePage re-runs q after every note write. A write invalidates any
// page already handed out, so callers holding later pages should restart
// from the first one.
func (r *Repository) WatchNotePage(ctx context.Context, q model.NoteQuery) <-chan observe.Result[model.NotePage] {
	return observe.Query(ctx, func(ctx context.Context) (model.NotePage, error) {
		return r.NotePage(ctx, q)
	}, r.notesChanged)
}

// TodayReminders lists notes whose reminder falls on the current local day.
func (r *Repository) TodayReminders(ctx context.Context, userID string) ([]model.Note, error) {
	from, to := r.DayBounds(r.clock.Now())
	notes, err := r.store.NotesWithReminderBetween(ctx, userID, from, to)
	return notes, storageErr("list today's reminders", err)
}

// WatchTodayReminders re-queries after every note write and at each local
// midnight, so the list rolls over to the new day on its own.
func (r *Repository) WatchTodayReminders(ctx context.Context, userID string) <-chan observe.Result[[]model.Note] {
	return observe.QueryWake(ctx, func(ctx context.Context) ([]model.Note, error) {
		return r.TodayReminders(ctx, userID)
	}, r.untilMidnight, r.notesChanged)
}
