package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/auth"
	"github.com/sakif/notekeeper/internal/model"
)

func TestNoteService_CallDana(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	n, err := svc.Add(ctx, NoteInput{Title: "Call Dana", ReminderTime: at(start.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, model.TopicGeneral, n.Topic)

	req, ok := app.sched.get(model.OwnerNote, n.ID)
	require.True(t, ok, "reminder should be scheduled")
	assert.Equal(t, "Call Dana", req.Title)
	assert.Equal(t, "/notes/"+n.ID, req.Link)

	require.NoError(t, svc.Delete(ctx, n.ID))
	assert.Zero(t, app.sched.count())

	active, err := app.Repo.ActiveNotes(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.Get(ctx, n.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// deleting again is a no-op
	assert.NoError(t, svc.Delete(ctx, n.ID))
}

func TestNoteService_RescheduleKeepsOnePending(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	n, err := svc.Add(ctx, NoteInput{Title: "Dentist", Topic: model.TopicHealth, ReminderTime: at(start.Add(time.Hour))})
	require.NoError(t, err)

	later := start.Add(3 * time.Hour)
	updated, err := svc.Update(ctx, n.ID, NoteInput{Title: "Dentist", Topic: model.TopicHealth, ReminderTime: &later})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, 1, app.sched.count())
	req, _ := app.sched.get(model.OwnerNote, n.ID)
	assert.True(t, req.TriggerAt.Equal(later))

	// clearing the reminder cancels it
	_, err = svc.Update(ctx, n.ID, NoteInput{Title: "Dentist", Topic: model.TopicHealth})
	require.NoError(t, err)
	assert.Zero(t, app.sched.count())
}

func TestNoteService_Validation(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	tests := []struct {
		name  string
		input NoteInput
	}{
		{"blank title", NoteInput{Title: "   "}},
		{"reminder in the past", NoteInput{Title: "late", ReminderTime: at(start.Add(-time.Minute))}},
		{"reminder now", NoteInput{Title: "now", ReminderTime: at(start)}},
		{"all is not a topic", NoteInput{Title: "x", Topic: model.TopicAll}},
		{"unknown topic", NoteInput{Title: "x", Topic: "Garden"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tc.input)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
	assert.Zero(t, app.sched.count())
}

func TestNoteService_UpdateMissingIsNoop(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)

	n, err := svc.Update(context.Background(), "missing", NoteInput{Title: "x"})
	assert.NoError(t, err)
	assert.Nil(t, n)
}

func TestNoteService_UpdateKeepsPastReminderUnscheduled(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	when := start.Add(time.Minute)
	n, err := svc.Add(ctx, NoteInput{Title: "standup", ReminderTime: &when})
	require.NoError(t, err)

	app.clock.Advance(time.Hour)
	_, err = svc.Update(ctx, n.ID, NoteInput{Title: "standup notes", ReminderTime: &when})
	require.NoError(t, err, "an unchanged past reminder is allowed")
	assert.Zero(t, app.sched.count())
}

func TestNoteService_SetCompleted(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	n, err := svc.Add(ctx, NoteInput{Title: "Pay bills", ReminderTime: at(start.Add(time.Hour))})
	require.NoError(t, err)

	require.NoError(t, svc.SetCompleted(ctx, n.ID, true))
	assert.Zero(t, app.sched.count())

	require.NoError(t, svc.SetCompleted(ctx, n.ID, false))
	assert.Equal(t, 1, app.sched.count())

	require.NoError(t, svc.SetCompleted(ctx, n.ID, true))
	ids, err := svc.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{n.ID}, ids)
	assert.Zero(t, app.sched.count())
}

func TestNoteService_DeleteManySkipsOtherUsers(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	mine, err := svc.Add(ctx, NoteInput{Title: "mine", ReminderTime: at(start.Add(time.Hour))})
	require.NoError(t, err)

	app.session.v.Store("bob")
	theirs, err := svc.Add(ctx, NoteInput{Title: "theirs"})
	require.NoError(t, err)

	app.session.v.Store("alice")
	deleted, err := svc.DeleteMany(ctx, []string{mine.ID, theirs.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, deleted)
	assert.Zero(t, app.sched.count())

	app.session.v.Store("bob")
	_, err = svc.Get(ctx, theirs.ID)
	assert.NoError(t, err)
}

func TestNoteService_DeleteOtherUsersNoteKeepsTheirReminder(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	n, err := svc.Add(ctx, NoteInput{Title: "alice only", ReminderTime: at(start.Add(time.Hour))})
	require.NoError(t, err)

	app.session.v.Store("bob")
	require.NoError(t, svc.Delete(ctx, n.ID))
	require.NoError(t, svc.SetCompleted(ctx, n.ID, true))

	_, ok := app.sched.get(model.OwnerNote, n.ID)
	assert.True(t, ok, "alice's reminder must survive bob's delete")

	app.session.v.Store("alice")
	got, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
}

func TestNoteService_RequestForPreviousUser(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := auth.ContextWithUserID(context.Background(), "alice")

	_, err := svc.Add(ctx, NoteInput{Title: "alice's"})
	require.NoError(t, err)

	app.session.v.Store("bob")
	_, err = svc.Add(ctx, NoteInput{Title: "sneaks in as bob"})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	page, err := svc.Page(ctx, model.DefaultNoteFilter(), "")
	require.NoError(t, err)
	assert.Empty(t, page.Notes)

	page, err = svc.Page(auth.ContextWithUserID(context.Background(), "bob"), model.DefaultNoteFilter(), "")
	require.NoError(t, err)
	assert.Empty(t, page.Notes)
}

func TestNoteService_SignedOut(t *testing.T) {
	app := newTestApp(t)
	svc := NewNoteService(app.App)
	ctx := context.Background()

	_, err := svc.Add(ctx, NoteInput{Title: "before"})
	require.NoError(t, err)
	app.session.v.Store("")

	page, err := svc.Page(ctx, model.DefaultNoteFilter(), "")
	require.NoError(t, err)
	assert.Empty(t, page.Notes)

	today, err := svc.Today(ctx)
	require.NoError(t, err)
	assert.Empty(t, today)

	_, err = svc.Add(ctx, NoteInput{Title: "after"})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
	assert.ErrorIs(t, svc.Delete(ctx, "x"), apperror.ErrUnauthenticated)
}
