package service

import (
	"context"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/observe"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is what a screen renders: the status of its latest load plus the
// data. Error holds a message safe to show the user.
type State[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`
}

// watchState re-subscribes query whenever keys emits. Each key starts with a
// loading state; a signed-out key settles on success with empty data. Once
// a new key arrives nothing from the previous one is emitted.
func watchState[K any, T any](
	ctx context.Context,
	keys <-chan K,
	empty T,
	signedOut func(K) bool,
	query func(context.Context, K) <-chan observe.Result[T],
) <-chan State[T] {
	return observe.SwitchMap(ctx, keys, func(ctx context.Context, k K) <-chan State[T] {
		out := make(chan State[T])
		go func() {
			defer close(out)
			send := func(s State[T]) bool {
				select {
				case out <- s:
					return true
				case <-ctx.Done():
					return false
				}
			}

			if !send(State[T]{Status: StatusLoading, Data: empty}) {
				return
			}
			if signedOut(k) {
				send(State[T]{Status: StatusSuccess, Data: empty})
				return
			}
			for r := range query(ctx, k) {
				s := State[T]{Status: StatusSuccess, Data: r.Value}
				if r.Err != nil {
					s = State[T]{Status: StatusError, Data: empty, Error: apperror.Public(r.Err)}
				}
				if !send(s) {
					return
				}
			}
		}()
		return out
	})
}

type noteKey struct {
	userID string
	filter model.NoteFilter
}

// NoteList is the state of a note listing screen. The home screen shows
// active notes and the archive shows completed ones; each keeps its own
// filter.
type NoteList struct {
	app        *App
	completion model.Completion
	filter     *observe.Value[model.NoteFilter]
}

func NewHomeList(app *App) *NoteList {
	return newNoteList(app, model.CompletionActive)
}

func NewArchiveList(app *App) *NoteList {
	return newNoteList(app, model.CompletionCompleted)
}

func newNoteList(app *App, c model.Completion) *NoteList {
	f := model.DefaultNoteFilter()
	f.Completion = c
	return &NoteList{app: app, completion: c, filter: observe.NewValue(f)}
}

func (l *NoteList) Filter() model.NoteFilter {
	return l.filter.Load()
}

// SetFilter replaces the filter. The list's completion scope cannot be
// changed; empty sort settings fall back to the defaults.
func (l *NoteList) SetFilter(f model.NoteFilter) {
	f.Completion = l.completion
	if f.Topic == "" {
		f.Topic = model.TopicAll
	}
	if f.Sort == "" {
		f.Sort = model.SortCreatedAt
	}
	if f.Order == "" {
		f.Order = model.SortDesc
	}
	l.filter.Store(f)
}

// Watch streams the first page for the current user and filter until ctx
// is done.
func (l *NoteList) Watch(ctx context.Context) <-chan State[model.NotePage] {
	keys := observe.Combine(ctx, l.app.Session.WatchCurrentUser(ctx), l.filter.Watch(ctx),
		func(u string, f model.NoteFilter) noteKey { return noteKey{userID: u, filter: f} })

	return watchState(ctx, keys, model.NotePage{Notes: []model.Note{}},
		func(k noteKey) bool { return k.userID == "" },
		func(ctx context.Context, k noteKey) <-chan observe.Result[model.NotePage] {
			return l.app.Repo.WatchNotePage(ctx, model.NoteQuery{UserID: k.userID, NoteFilter: k.filter})
		})
}

// ReminderFilter selects the reminder view. NoteID is used by the by-note
// view and Search by the search view.
type ReminderFilter struct {
	View   model.ReminderView `json:"view"`
	Search string             `json:"search,omitempty"`
	NoteID string             `json:"noteId,omitempty"`
}

type reminderKey struct {
	userID string
	filter ReminderFilter
}

type ReminderList struct {
	app    *App
	filter *observe.Value[ReminderFilter]
}

func NewReminderList(app *App) *ReminderList {
	return &ReminderList{app: app, filter: observe.NewValue(ReminderFilter{View: model.ReminderActive})}
}

func (l *ReminderList) Filter() ReminderFilter {
	return l.filter.Load()
}

func (l *ReminderList) SetFilter(f ReminderFilter) {
	if f.View == "" {
		f.View = model.ReminderActive
	}
	l.filter.Store(f)
}

func (l *ReminderList) Watch(ctx context.Context) <-chan State[[]model.Reminder] {
	keys := observe.Combine(ctx, l.app.Session.WatchCurrentUser(ctx), l.filter.Watch(ctx),
		func(u string, f ReminderFilter) reminderKey { return reminderKey{userID: u, filter: f} })

	return watchState(ctx, keys, []model.Reminder{},
		func(k reminderKey) bool { return k.userID == "" },
		func(ctx context.Context, k reminderKey) <-chan observe.Result[[]model.Reminder] {
			return l.app.Repo.WatchReminders(ctx, model.ReminderQuery{
				UserID: k.userID,
				View:   k.filter.View,
				Search: k.filter.Search,
				NoteID: k.filter.NoteID,
			})
		})
}

// TodayList shows the notes whose reminder falls on the current local day.
// It refreshes by itself at midnight.
type TodayList struct {
	app *App
}

func NewTodayList(app *App) *TodayList {
	return &TodayList{app: app}
}

func (l *TodayList) Watch(ctx context.Context) <-chan State[[]model.Note] {
	return watchState(ctx, l.app.Session.WatchCurrentUser(ctx), []model.Note{},
		func(u string) bool { return u == "" },
		l.app.Repo.WatchTodayReminders)
}
