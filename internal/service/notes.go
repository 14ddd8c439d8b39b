package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/notify"
)

// Validation limits shared by notes and reminders.
const (
	MaxTitleLength   = 200
	MaxContentLength = 20000
)

// NoteInput is the user-editable part of a note.
type NoteInput struct {
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Topic        model.Topic `json:"topic"`
	ReminderTime *time.Time  `json:"reminderTime,omitempty"`
}

// NoteService applies note writes and keeps each note's notification in
// step with its reminder time and completion state.
type NoteService struct {
	app *App
}

func NewNoteService(app *App) *NoteService {
	return &NoteService{app: app}
}

// validateNote normalizes in and checks it. A reminder time only has to be in the
// future when requireFuture is set.
func validateNote(in *NoteInput, now time.Time, requireFuture bool) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	if len(in.Content) > MaxContentLength {
		return apperror.ValidationFailed("content", fmt.Sprintf("content must be at most %d characters", MaxContentLength))
	}
	if in.Topic == "" {
		in.Topic = model.TopicGeneral
	}
	if in.Topic == model.TopicAll || !in.Topic.Valid() {
		return apperror.ValidationFailed("topic", fmt.Sprintf("unknown topic %q", in.Topic))
	}
	if in.ReminderTime != nil {
		t := in.ReminderTime.Truncate(time.Millisecond)
		in.ReminderTime = &t
		if requireFuture && !t.After(now) {
			return apperror.ValidationFailed("reminderTime", "reminder time must be in the future")
		}
	}
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func noteRequest(n *model.Note) notify.Request {
	return notify.Request{
		Kind:      model.OwnerNote,
		EntityID:  n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Content,
		Link:      "/notes/" + n.ID,
		TriggerAt: *n.ReminderTime,
	}
}

// Add creates a note for the signed-in user and schedules its reminder.
func (s *NoteService) Add(ctx context.Context, in NoteInput) (*model.Note, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	now := s.app.Clock.Now()
	if err := validateNote(&in, now, true); err != nil {
		return nil, err
	}

	n := &model.Note{
		ID:           xid.New().String(),
		UserID:       userID,
		Title:        in.Title,
		Content:      in.Content,
		Topic:        in.Topic,
		CreatedAt:    now,
		ReminderTime: in.ReminderTime,
	}
	if err := s.app.Repo.AddNote(ctx, n); err != nil {
		return nil, err
	}
	if n.HasFutureReminder(now) {
		s.app.schedule(ctx, noteRequest(n))
	}

	s.app.Logger.Info("note created", slog.String("note_id", n.ID), slog.Bool("reminder", n.ReminderTime != nil))
	return n, nil
}

// Update edits title, content, topic and reminder. A note that no longer
// exists is left alone and (nil, nil) is returned. An unchanged reminder
// already in the past is kept but not scheduled again.
func (s *NoteService) Update(ctx context.Context, id string, in NoteInput) (*model.Note, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.app.Repo.GetNote(ctx, userID, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.app.Clock.Now()
	if in.ReminderTime != nil {
		t := in.ReminderTime.Truncate(time.Millisecond)
		in.ReminderTime = &t
	}
	changed := !sameInstant(existing.ReminderTime, in.ReminderTime)
	if err := validateNote(&in, now, changed); err != nil {
		return nil, err
	}

	existing.Title = in.Title
	existing.Content = in.Content
	existing.Topic = in.Topic
	existing.ReminderTime = in.ReminderTime
	if err := s.app.Repo.UpdateNote(ctx, existing); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.app.cancel(ctx, userID, model.OwnerNote, id)
	if !existing.IsCompleted && existing.HasFutureReminder(now) {
		s.app.schedule(ctx, noteRequest(existing))
	}
	return existing, nil
}

// Delete removes the note and its pending notification. Deleting a note
// that is already gone is not an error.
func (s *NoteService) Delete(ctx context.Context, id string) error {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return err
	}
	if err := s.app.Repo.DeleteNote(ctx, userID, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	s.app.cancel(ctx, userID, model.OwnerNote, id)
	return nil
}

// SetCompleted marks a note done or open again. Completing cancels the
// reminder; reopening schedules it again if it is still ahead.
func (s *NoteService) SetCompleted(ctx context.Context, id string, completed bool) error {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return err
	}
	n, err := s.app.Repo.GetNote(ctx, userID, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.app.Repo.SetNoteCompletion(ctx, userID, id, completed); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}

	if completed {
		s.app.cancel(ctx, userID, model.OwnerNote, id)
	} else if n.HasFutureReminder(s.app.Clock.Now()) {
		s.app.schedule(ctx, noteRequest(n))
	}
	return nil
}

// DeleteCompleted removes every completed note of the signed-in user.
func (s *NoteService) DeleteCompleted(ctx context.Context) ([]string, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.app.Repo.DeleteCompletedNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.app.cancel(ctx, userID, model.OwnerNote, id)
	}
	return ids, nil
}

// DeleteMany removes the given notes. Ids that are missing or belong to
// someone else are skipped; the ids actually deleted are returned.
func (s *NoteService) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	deleted, err := s.app.Repo.DeleteNotes(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range deleted {
		s.app.cancel(ctx, userID, model.OwnerNote, id)
	}
	return deleted, nil
}

func (s *NoteService) Get(ctx context.Context, id string) (*model.Note, error) {
	userID, err := s.app.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.app.Repo.GetNote(ctx, userID, id)
}

// Page returns one page of the signed-in user's notes, or an empty page when
// nobody is signed in.
func (s *NoteService) Page(ctx context.Context, filter model.NoteFilter, cursor string) (model.NotePage, error) {
	userID := s.app.currentUser(ctx)
	if userID == "" {
		return model.NotePage{Notes: []model.Note{}}, nil
	}
	return s.app.Repo.NotePage(ctx, model.NoteQuery{UserID: userID, NoteFilter: filter, Cursor: cursor})
}

// Today lists notes with a reminder on the current local day.
func (s *NoteService) Today(ctx context.Context) ([]model.Note, error) {
	userID := s.app.currentUser(ctx)
	if userID == "" {
		return []model.Note{}, nil
	}
	return s.app.Repo.TodayReminders(ctx, userID)
}
