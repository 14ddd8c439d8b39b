package repository

import (
	"context"
	"time"

	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/observe"
)

func (r *Repository) AddReminder(ctx context.Context, rem *model.Reminder) error {
	if err := r.store.CreateReminder(ctx, rem); err != nil {
		return storageErr("add reminder", err)
	}
	r.remindersChanged.Publish()
	return nil
}

func (r *Repository) GetReminder(ctx context.Context, userID string, id int64) (*model.Reminder, error) {
	rem, err := r.store.GetReminder(ctx, userID, id)
	return rem, storageErr("get reminder", err)
}

// UpdateReminder never changes IsNotified.
func (r *Repository) UpdateReminder(ctx context.Context, rem *model.Reminder) error {
	if err := r.store.UpdateReminder(ctx, rem); err != nil {
		return storageErr("update reminder", err)
	}
	r.remindersChanged.Publish()
	return nil
}

func (r *Repository) DeleteReminder(ctx context.Context, userID string, id int64) error {
	if err := r.store.DeleteReminder(ctx, userID, id); err != nil {
		return storageErr("delete reminder", err)
	}
	r.remindersChanged.Publish()
	return nil
}

func (r *Repository) SetReminderCompletion(ctx context.Context, userID string, id int64, completed bool) error {
	if err := r.store.SetReminderCompletion(ctx, userID, id, completed); err != nil {
		return storageErr("set reminder completion", err)
	}
	r.remindersChanged.Publish()
	return nil
}

// reminderBulk runs a bulk write and publishes when it touched anything.
func (r *Repository) reminderBulk(op string, ids []int64, err error) ([]int64, error) {
	if err != nil {
		return nil, storageErr(op, err)
	}
	if len(ids) > 0 {
		r.remindersChanged.Publish()
	}
	return ids, nil
}

func (r *Repository) CompleteReminders(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	done, err := r.store.CompleteReminders(ctx, userID, ids)
	return r.reminderBulk("complete reminders", done, err)
}

func (r *Repository) DeleteReminders(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	deleted, err := r.store.DeleteReminders(ctx, userID, ids)
	return r.reminderBulk("delete reminders", deleted, err)
}

func (r *Repository) DeleteRemindersByNote(ctx context.Context, userID, noteID string) ([]int64, error) {
	deleted, err := r.store.DeleteRemindersByNote(ctx, userID, noteID)
	return r.reminderBulk("delete note reminders", deleted, err)
}

func (r *Repository) DeleteAllReminders(ctx context.Context, userID string) ([]int64, error) {
	deleted, err := r.store.DeleteAllReminders(ctx, userID)
	return r.reminderBulk("delete all reminders", deleted, err)
}

// Reminders runs q with time-relative views resolved against the clock.
func (r *Repository) Reminders(ctx context.Context, q model.ReminderQuery) ([]model.Reminder, error) {
	q.Now = r.clock.Now()
	if q.View == model.ReminderToday {
		q.From, q.To = r.DayBounds(q.Now)
	}
	list, err := r.store.ListReminders(ctx, q)
	return list, storageErr("list reminders", err)
}

// WatchReminders re-runs q after every reminder write. The today view also
// refreshes at local midnight.
func (r *Repository) WatchReminders(ctx context.Context, q model.ReminderQuery) <-chan observe.Result[[]model.Reminder] {
	fetch := func(ctx context.Context) ([]model.Reminder, error) { return r.Reminders(ctx, q) }
	if q.View == model.ReminderToday {
		return observe.QueryWake(ctx, fetch, r.untilMidnight, r.remindersChanged)
	}
	return observe.Query(ctx, fetch, r.remindersChanged)
}

func (r *Repository) ReminderCounts(ctx context.Context, userID string) (model.ReminderCounts, error) {
	c, err := r.store.CountReminders(ctx, userID, r.clock.Now())
	return c, storageErr("count reminders", err)
}

// PendingReminders lists due, open, unnotified reminders across all users.
func (r *Repository) PendingReminders(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	list, err := r.store.PendingReminders(ctx, now)
	return list, storageErr("list pending reminders", err)
}

// ClaimReminderNotified marks id notified. Only the caller that gets true
// may raise the notification.
func (r *Repository) ClaimReminderNotified(ctx context.Context, id int64) (bool, error) {
	ok, err := r.store.ClaimReminderNotified(ctx, id)
	if err != nil {
		return false, storageErr("claim reminder", err)
	}
	if ok {
		r.remindersChanged.Publish()
	}
	return ok, nil
}
