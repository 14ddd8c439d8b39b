package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/notify"
)

// ReminderInput is the user-editable part of a reminder.
type ReminderInput struct {
	NoteID           *string   `json:"noteId,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ReminderDateTime time.Time `json:"reminderDateTime"`
}

// ReminderService manages standalone reminders. Scheduling one only arranges
// a wake-up; the background sweep decides whether it still needs notifying
// and flips its notified flag.
type ReminderService struct {
	app *App
}

func NewReminderService(app *App) *ReminderService {
	return &ReminderService{app: app}
}

func validateReminder(in *ReminderInput, now time.Time, requireFuture bool) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	if len(in.Description) > MaxContentLength {
		return apperror.ValidationFailed("description", fmt.Sprintf("description must be at most %d characters", MaxContentLength))
	}
	if in.ReminderDateTime.IsZero() {
		return apperror.ValidationFailed("reminderDateTime", "reminder time is required")
	}
	in.ReminderDateTime = in.ReminderDateTime.Truncate(time.Millisecond)
	if requireFuture && !in.ReminderDateTime.After(now) {
		return apperror.ValidationFailed("reminderDateTime", "reminder time must be in the future")
	}
	if in.NoteID != nil && *in.NoteID == "" {
		in.NoteID = nil
	}
	return nil
}

func reminderRequest(r *model.Reminder) notify.Request {
	id := strconv.FormatInt(r.ID, 10)
	return notify.Request{
		Kind:      model.OwnerReminder,
		EntityID:  id,
		UserID:    r.UserID,
		Title:     r.Title,
		Body:      r.Description,
		Link:      "/reminders/" + id,
		TriggerAt: r.ReminderDateTime,
	}
}

func (s *ReminderService) cancel(ctx context.Context, userID string, id int64) {
	s.app.cancel(ctx, userID, model.OwnerReminder, strconv.FormatInt(id, 10))
}

// Create adds a reminder for the signed-in user and schedules it.
func (s *ReminderService) Create(ctx context.Context, in ReminderInput) (*model.Reminder, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateReminder(&in, s.app.Clock.Now(), true); err != nil {
		return nil, err
	}

	r := &model.Reminder{
		NoteID:           in.NoteID,
		Title:            in.Title,
		Description:      in.Description,
		ReminderDateTime: in.ReminderDateTime,
		UserID:           userID,
	}
	if err := s.app.Repo.AddReminder(ctx, r); err != nil {
		return nil, err
	}
	s.app.schedule(ctx, reminderRequest(r))

	s.app.Logger.Info("reminder created", slog.Int64("reminder_id", r.ID))
	return r, nil
}

// Update edits a reminder and reschedules it. A reminder that no longer
// exists is left alone and (nil, nil) is returned.
func (s *ReminderService) Update(ctx context.Context, id int64, in ReminderInput) (*model.Reminder, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.app.Repo.GetReminder(ctx, userID, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.app.Clock.Now()
	changed := !existing.ReminderDateTime.Equal(in.ReminderDateTime.Truncate(time.Millisecond))
	if err := validateReminder(&in, now, changed); err != nil {
		return nil, err
	}

	existing.NoteID = in.NoteID
	existing.Title = in.Title
	existing.Description = in.Description
	existing.ReminderDateTime = in.ReminderDateTime
	if err := s.app.Repo.UpdateReminder(ctx, existing); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.cancel(ctx, userID, id)
	if !existing.IsCompleted && existing.ReminderDateTime.After(now) {
		s.app.schedule(ctx, reminderRequest(existing))
	}
	return existing, nil
}

// Delete removes the reminder and cancels its wake-up. A missing reminder
// is not an error.
func (s *ReminderService) Delete(ctx context.Context, id int64) error {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return err
	}
	if err := s.app.Repo.DeleteReminder(ctx, userID, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	s.cancel(ctx, userID, id)
	return nil
}

func (s *ReminderService) SetCompleted(ctx context.Context, id int64, completed bool) error {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return err
	}
	r, err := s.app.Repo.GetReminder(ctx, userID, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.app.Repo.SetReminderCompletion(ctx, userID, id, completed); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}

	if completed {
		s.cancel(ctx, userID, id)
	} else if r.ReminderDateTime.After(s.app.Clock.Now()) {
		s.app.schedule(ctx, reminderRequest(r))
	}
	return nil
}

// CompleteMany completes the given reminders and returns the ids it changed.
func (s *ReminderService) CompleteMany(ctx context.Context, ids []int64) ([]int64, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	done, err := s.app.Repo.CompleteReminders(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range done {
		s.cancel(ctx, userID, id)
	}
	return nonNil(done), nil
}

func (s *ReminderService) DeleteMany(ctx context.Context, ids []int64) ([]int64, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := s.app.Repo.DeleteReminders(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range deleted {
		s.cancel(ctx, userID, id)
	}
	return nonNil(deleted), nil
}

// DeleteForNote removes every reminder linked to noteID.
func (s *ReminderService) DeleteForNote(ctx context.Context, noteID string) ([]int64, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := s.app.Repo.DeleteRemindersByNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	for _, id := range deleted {
		s.cancel(ctx, userID, id)
	}
	return nonNil(deleted), nil
}

func (s *ReminderService) DeleteAll(ctx context.Context) ([]int64, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := s.app.Repo.DeleteAllReminders(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range deleted {
		s.cancel(ctx, userID, id)
	}
	return nonNil(deleted), nil
}

func (s *ReminderService) Get(ctx context.Context, id int64) (*model.Reminder, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.app.Repo.GetReminder(ctx, userID, id)
}

// List runs one of the reminder views for the signed-in user. Signed out,
// it returns an empty list.
func (s *ReminderService) List(ctx context.Context, q model.ReminderQuery) ([]model.Reminder, error) {
	q.UserID = s.app.currentUser(ctx)
	if q.UserID == "" {
		return []model.Reminder{}, nil
	}
	return s.app.Repo.Reminders(ctx, q)
}

func (s *ReminderService) Counts(ctx context.Context) (model.ReminderCounts, error) {
	userID := s.app.currentUser(ctx)
	if userID == "" {
		return model.ReminderCounts{}, nil
	}
	return s.app.Repo.ReminderCounts(ctx, userID)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
