package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
)

// createTestNote inserts a note for userID and fails the test on error.
// createdAt is offset from fixedNow so ordering is deterministic.
func createTestNote(t *testing.T, db *DB, userID, title string, topic model.Topic, offset time.Duration) *model.Note {
	t.Helper()
	n := &model.Note{
		UserID:    userID,
		Title:     title,
		Content:   "content of " + title,
		Topic:     topic,
		CreatedAt: fixedNow.Add(offset),
	}
	if err := db.CreateNote(context.Background(), n); err != nil {
		t.Fatalf("failed to create test note: %v", err)
	}
	return n
}

func TestCreateNote_GeneratesIDAndPersists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	remind := fixedNow.Add(time.Hour)
	n := &model.Note{UserID: "u1", Title: "Call Dana", Topic: model.TopicPersonal, ReminderTime: &remind}
	if err := db.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if n.ID == "" {
		t.Fatal("CreateNote() did not set ID")
	}

	got, err := db.GetNote(ctx, "u1", n.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if got.Title != "Call Dana" || got.Topic != model.TopicPersonal {
		t.Errorf("GetNote() = %+v", got)
	}
	if got.ReminderTime == nil || !got.ReminderTime.Equal(remind) {
		t.Errorf("ReminderTime = %v, want %v", got.ReminderTime, remind)
	}
	if !got.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, fixedNow)
	}
}

func TestGetNote_ScopedByUser(t *testing.T) {
	db := newTestDB(t)
	n := createTestNote(t, db, "alice", "secret", model.TopicGeneral, 0)

	_, err := db.GetNote(context.Background(), "bob", n.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetNote() as other user error = %v, want ErrNotFound", err)
	}
}

func TestUpdateNote_OnlyEditableFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	n := createTestNote(t, db, "u1", "old", model.TopicGeneral, 0)

	edited := *n
	edited.Title = "new"
	edited.Topic = model.TopicWork
	edited.IsCompleted = true                  // ignored by UpdateNote
	edited.CreatedAt = fixedNow.Add(time.Hour) // ignored by UpdateNote
	if err := db.UpdateNote(ctx, &edited); err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}

	got, _ := db.GetNote(ctx, "u1", n.ID)
	if got.Title != "new" || got.Topic != model.TopicWork {
		t.Errorf("GetNote() = %+v, want updated title/topic", got)
	}
	if got.IsCompleted {
		t.Error("UpdateNote() changed IsCompleted")
	}
	if !got.CreatedAt.Equal(n.CreatedAt) {
		t.Error("UpdateNote() changed CreatedAt")
	}
}

func TestDeleteNote_NotFoundTwice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	n := createTestNote(t, db, "u1", "x", model.TopicGeneral, 0)

	if err := db.DeleteNote(ctx, "u1", n.ID); err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	if err := db.DeleteNote(ctx, "u1", n.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteNote() error = %v, want ErrNotFound", err)
	}
}

func TestListNotes_ByCompletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	older := createTestNote(t, db, "u1", "older", model.TopicGeneral, 0)
	newer := createTestNote(t, db, "u1", "newer", model.TopicGeneral, time.Minute)
	done := createTestNote(t, db, "u1", "done", model.TopicGeneral, 2*time.Minute)
	createTestNote(t, db, "u2", "other user", model.TopicGeneral, 0)

	if err := db.SetNoteCompletion(ctx, "u1", done.ID, true); err != nil {
		t.Fatalf("SetNoteCompletion() error = %v", err)
	}

	active, err := db.ListNotes(ctx, "u1", model.CompletionActive)
	if err != nil {
		t.Fatalf("ListNotes(active) error = %v", err)
	}
	if len(active) != 2 || active[0].ID != newer.ID || active[1].ID != older.ID {
		t.Errorf("ListNotes(active) = %v, want [newer older]", titles(active))
	}

	completed, _ := db.ListNotes(ctx, "u1", model.CompletionCompleted)
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Errorf("ListNotes(completed) = %v, want [done]", titles(completed))
	}
}

func TestDeleteCompletedNotes_ReturnsIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	keep := createTestNote(t, db, "u1", "keep", model.TopicGeneral, 0)
	drop := createTestNote(t, db, "u1", "drop", model.TopicGeneral, 0)
	other := createTestNote(t, db, "u2", "other", model.TopicGeneral, 0)
	_ = db.SetNoteCompletion(ctx, "u1", drop.ID, true)
	_ = db.SetNoteCompletion(ctx, "u2", other.ID, true)

	ids, err := db.DeleteCompletedNotes(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteCompletedNotes() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != drop.ID {
		t.Errorf("deleted ids = %v, want [%s]", ids, drop.ID)
	}
	if _, err := db.GetNote(ctx, "u1", keep.ID); err != nil {
		t.Errorf("active note was deleted: %v", err)
	}
	if _, err := db.GetNote(ctx, "u2", other.ID); err != nil {
		t.Errorf("other user's completed note was deleted: %v", err)
	}
}

func TestDeleteNotes_IgnoresForeignIDs(t *testing.T) {
	db := newTestDB(t)
	mine := createTestNote(t, db, "u1", "mine", model.TopicGeneral, 0)
	theirs := createTestNote(t, db, "u2", "theirs", model.TopicGeneral, 0)

	ids, err := db.DeleteNotes(context.Background(), "u1", []string{mine.ID, theirs.ID, "missing"})
	if err != nil {
		t.Fatalf("DeleteNotes() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != mine.ID {
		t.Errorf("deleted ids = %v, want only %s", ids, mine.ID)
	}
}

func TestQueryNotes_SearchAndTopic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	milk := createTestNote(t, db, "u1", "Buy milk", model.TopicShopping, 0)
	createTestNote(t, db, "u1", "Standup", model.TopicWork, time.Minute)

	page, err := db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Search: "milk"}}, 0)
	if err != nil {
		t.Fatalf("QueryNotes(search) error = %v", err)
	}
	if len(page.Notes) != 1 || page.Notes[0].ID != milk.ID {
		t.Errorf("QueryNotes(search=milk) = %v, want [Buy milk]", titles(page.Notes))
	}

	page, _ = db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Search: "MILK"}}, 0)
	if len(page.Notes) != 1 {
		t.Errorf("search should be case-insensitive, got %v", titles(page.Notes))
	}

	page, _ = db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Search: "milk", Topic: model.TopicWork}}, 0)
	if len(page.Notes) != 0 {
		t.Errorf("QueryNotes(milk, Work) = %v, want empty", titles(page.Notes))
	}

	page, _ = db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Topic: model.TopicAll}}, 0)
	if len(page.Notes) != 2 {
		t.Errorf("QueryNotes(All) returned %d notes, want 2", len(page.Notes))
	}
}

func TestQueryNotes_SearchIsLiteral(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestNote(t, db, "u1", "100% done", model.TopicGeneral, 0)
	createTestNote(t, db, "u1", "1000 things", model.TopicGeneral, 0)
	createTestNote(t, db, "u1", "it's fine", model.TopicGeneral, 0)

	tests := []struct {
		search string
		want   int
	}{
		{"100%", 1},
		{"%", 1},
		{"_", 0},
		{"it's", 1},
		{"' OR 1=1 --", 0},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			page, err := db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Search: tt.search}}, 0)
			if err != nil {
				t.Fatalf("QueryNotes() error = %v", err)
			}
			if len(page.Notes) != tt.want {
				t.Errorf("search %q matched %v, want %d", tt.search, titles(page.Notes), tt.want)
			}
		})
	}
}

func TestQueryNotes_DateRangeAndCompletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	early := createTestNote(t, db, "u1", "early", model.TopicGeneral, -48*time.Hour)
	mid := createTestNote(t, db, "u1", "mid", model.TopicGeneral, 0)
	late := createTestNote(t, db, "u1", "late", model.TopicGeneral, 48*time.Hour)
	_ = db.SetNoteCompletion(ctx, "u1", late.ID, true)

	q := model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{From: mid.CreatedAt, To: late.CreatedAt}}
	page, _ := db.QueryNotes(ctx, q, 0)
	if got := titles(page.Notes); len(got) != 2 || got[0] != "late" || got[1] != "mid" {
		t.Errorf("inclusive range = %v, want [late mid]", got)
	}

	q.Completion = model.CompletionActive
	page, _ = db.QueryNotes(ctx, q, 0)
	if got := titles(page.Notes); len(got) != 1 || got[0] != "mid" {
		t.Errorf("range+active = %v, want [mid]", got)
	}

	q = model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{To: early.CreatedAt}}
	page, _ = db.QueryNotes(ctx, q, 0)
	if got := titles(page.Notes); len(got) != 1 || got[0] != "early" {
		t.Errorf("open lower bound = %v, want [early]", got)
	}
}

func TestQueryNotes_CursorPagination(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		createTestNote(t, db, "u1", fmt.Sprintf("note %02d", i), model.TopicGeneral, time.Duration(i)*time.Second)
	}

	q := model.NoteQuery{UserID: "u1"}
	seen := map[string]bool{}
	var pages []int
	for {
		page, err := db.QueryNotes(ctx, q, 0)
		if err != nil {
			t.Fatalf("QueryNotes() error = %v", err)
		}
		pages = append(pages, len(page.Notes))
		for _, n := range page.Notes {
			if seen[n.ID] {
				t.Fatalf("note %s returned twice", n.Title)
			}
			seen[n.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}

	if fmt.Sprint(pages) != "[20 20 5]" {
		t.Errorf("page sizes = %v, want [20 20 5]", pages)
	}
	if len(seen) != 45 {
		t.Errorf("saw %d notes, want 45", len(seen))
	}
}

func TestQueryNotes_SortByTitleAscWithTies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestNote(t, db, "u1", "banana", model.TopicGeneral, 0)
	createTestNote(t, db, "u1", "Apple", model.TopicGeneral, 0)
	createTestNote(t, db, "u1", "apple", model.TopicGeneral, 0)
	createTestNote(t, db, "u1", "cherry", model.TopicGeneral, 0)

	q := model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Sort: model.SortTitle, Order: model.SortAsc}}
	var got []string
	for {
		page, err := db.QueryNotes(ctx, q, 1)
		if err != nil {
			t.Fatalf("QueryNotes() error = %v", err)
		}
		got = append(got, titles(page.Notes)...)
		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}

	if len(got) != 4 || got[2] != "banana" || got[3] != "cherry" {
		t.Errorf("title order = %v, want apple/Apple, banana, cherry", got)
	}
}

func TestQueryNotes_RejectsBadSortAndCursor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", NoteFilter: model.NoteFilter{Sort: "title; DROP TABLE notes"}}, 0)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad sort error = %v, want ErrValidation", err)
	}

	_, err = db.QueryNotes(ctx, model.NoteQuery{UserID: "u1", Cursor: "not-base64!"}, 0)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad cursor error = %v, want ErrValidation", err)
	}

	// A cursor minted for one ordering is rejected under another.
	for i := 0; i < 3; i++ {
		createTestNote(t, db, "u1", fmt.Sprint(i), model.TopicGeneral, time.Duration(i)*time.Second)
	}
	page, _ := db.QueryNotes(ctx, model.NoteQuery{UserID: "u1"}, 1)
	_, err = db.QueryNotes(ctx, model.NoteQuery{
		UserID:     "u1",
		NoteFilter: model.NoteFilter{Sort: model.SortTitle},
		Cursor:     page.NextCursor,
	}, 1)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("stale cursor error = %v, want ErrValidation", err)
	}
}

func TestNotesWithReminderBetween(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	in := day.Add(14 * time.Hour)
	out := day.Add(24*time.Hour + time.Minute)

	a := &model.Note{UserID: "u1", Title: "today", Topic: model.TopicGeneral, ReminderTime: &in}
	b := &model.Note{UserID: "u1", Title: "tomorrow", Topic: model.TopicGeneral, ReminderTime: &out}
	for _, n := range []*model.Note{a, b} {
		if err := db.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote() error = %v", err)
		}
	}

	got, err := db.NotesWithReminderBetween(ctx, "u1", day, day.Add(24*time.Hour-time.Millisecond))
	if err != nil {
		t.Fatalf("NotesWithReminderBetween() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("NotesWithReminderBetween() = %v, want [today]", titles(got))
	}
}

func titles(notes []model.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}
