// Package repository is the single façade over persistence and preferences.
//
// LAYOUT:
//   - repository.go  store interfaces implemented by repository/sqlite
//   - notes.go       Repository, note reads/writes, today's reminders
//   - reminders.go   reminder reads/writes and the worker's claim path
//   - users.go       user rows
//
// Nothing else in the app talks to the stores directly. Every write goes
// through Repository, which publishes a change signal after the write has
// committed; every observable read is a Query stream re-run on those
// signals.
package repository

import (
	"context"
	"time"

	"github.com/sakif/notekeeper/internal/model"
)

type UserStore interface {
	UpsertUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
}

type NoteStore interface {
	CreateNote(ctx context.Context, note *model.Note) error
	GetNote(ctx context.Context, userID, id string) (*model.Note, error)
	UpdateNote(ctx context.Context, note *model.Note) error
	DeleteNote(ctx context.Context, userID, id string) error
	SetNoteCompletion(ctx context.Context, userID, id string, completed bool) error
	// DeleteCompletedNotes and DeleteNotes return the ids actually removed.
	DeleteCompletedNotes(ctx context.Context, userID string) ([]string, error)
	DeleteNotes(ctx context.Context, userID string, ids []string) ([]string, error)
	ListNotes(ctx context.Context, userID string, completion model.Completion) ([]model.Note, error)
	QueryNotes(ctx context.Context, q model.NoteQuery, limit int) (model.NotePage, error)
	NotesWithReminderBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Note, error)
}

type ReminderStore interface {
	CreateReminder(ctx context.Context, r *model.Reminder) error
	GetReminder(ctx context.Context, userID string, id int64) (*model.Reminder, error)
	UpdateReminder(ctx context.Context, r *model.Reminder) error
	DeleteReminder(ctx context.Context, userID string, id int64) error
	SetReminderCompletion(ctx context.Context, userID string, id int64, completed bool) error
	// Bulk operations return the ids they touched.
	CompleteReminders(ctx context.Context, userID string, ids []int64) ([]int64, error)
	DeleteReminders(ctx context.Context, userID string, ids []int64) ([]int64, error)
	DeleteRemindersByNote(ctx context.Context, userID, noteID string) ([]int64, error)
	DeleteAllReminders(ctx context.Context, userID string) ([]int64, error)
	ListReminders(ctx context.Context, q model.ReminderQuery) ([]model.Reminder, error)
	CountReminders(ctx context.Context, userID string, now time.Time) (model.ReminderCounts, error)
	PendingReminders(ctx context.Context, now time.Time) ([]model.Reminder, error)
	ClaimReminderNotified(ctx context.Context, id int64) (bool, error)
}

// PreferenceStore is a durable string key-value table.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// NotificationStore is the single authoritative pending-notification table.
type NotificationStore interface {
	// UpsertPending replaces any row with the same key.
	UpsertPending(ctx context.Context, p *model.PendingNotification) error
	GetPending(ctx context.Context, key string) (*model.PendingNotification, error)
	// DeletePending only removes a row owned by userID.
	DeletePending(ctx context.Context, key, userID string) (bool, error)
	// ClaimPending deletes the row only if it still holds instance, and
	// returns it. A nil result means someone else claimed or replaced it.
	ClaimPending(ctx context.Context, key, instance string) (*model.PendingNotification, error)
	ListPending(ctx context.Context) ([]model.PendingNotification, error)
	DuePending(ctx context.Context, now time.Time) ([]model.PendingNotification, error)
}

// Store is everything Repository needs from the persistence layer.
type Store interface {
	UserStore
	NoteStore
	ReminderStore
}

// CurrentUserSource is the preference-backed "who is signed in" value.
type CurrentUserSource interface {
	CurrentUser() string
	WatchCurrentUser(ctx context.Context) <-chan string
	SetCurrentUser(ctx context.Context, id string) error
	ClearCurrentUser(ctx context.Context) error
}
