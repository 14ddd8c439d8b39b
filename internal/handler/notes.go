package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/service"
)

// NoteHandler serves the note endpoints. It owns no state; every request
// goes through NoteService, which reads the current user itself.
type NoteHandler struct {
	notes     *service.NoteService
	reminders *service.ReminderService
	app       *service.App
	logger    *slog.Logger
}

func NewNoteHandler(app *service.App, notes *service.NoteService, reminders *service.ReminderService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, reminders: reminders, app: app, logger: logger}
}

// parseNoteFilter reads search, topic, completion, from, to, sort and order.
// Dates are RFC 3339; anything unknown is a validation error rather than a
// silent default.
func parseNoteFilter(q url.Values) (model.NoteFilter, error) {
	f := model.DefaultNoteFilter()
	var err error

	f.Search = q.Get("search")
	if f.Topic, err = model.ParseTopic(q.Get("topic")); err != nil {
		return f, apperror.ValidationFailed("topic", err.Error())
	}
	if f.Topic == "" {
		f.Topic = model.TopicAll
	}
	if f.Completion, err = model.ParseCompletion(q.Get("completion")); err != nil {
		return f, apperror.ValidationFailed("completion", err.Error())
	}
	if f.Sort, err = model.ParseSortField(q.Get("sort")); err != nil {
		return f, apperror.ValidationFailed("sort", err.Error())
	}
	if f.Order, err = model.ParseSortOrder(q.Get("order")); err != nil {
		return f, apperror.ValidationFailed("order", err.Error())
	}
	if f.From, err = parseTime(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(name, "expected an RFC 3339 timestamp")
	}
	return t, nil
}

// HandleList returns one page of notes.
//
// HTTP: GET /api/notes?search=&topic=&completion=&from=&to=&sort=&order=&cursor=
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNoteFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.notes.Page(r.Context(), filter, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleCreate adds a note.
//
// HTTP: POST /api/notes
// REQUEST BODY: {"title": "Call Dana", "content": "", "topic": "Personal", "reminderTime": "2026-03-14T15:00:00Z"}
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.notes.Add(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// HandleGet returns a single note.
//
// HTTP: GET /api/notes/{id}
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleUpdate replaces the editable fields of a note. Editing a note that
// no longer exists is a no-op and answers 204.
//
// HTTP: PUT /api/notes/{id}
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.notes.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// HandleDelete removes a note. Deleting twice is fine.
//
// HTTP: DELETE /api/notes/{id}
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetCompletion marks a note done or reopens it.
//
// HTTP: PUT /api/notes/{id}/completion
// REQUEST BODY: {"completed": true}
func (h *NoteHandler) HandleSetCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.notes.SetCompleted(r.Context(), r.PathValue("id"), req.Completed); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteCompleted clears the archive.
//
// HTTP: DELETE /api/notes/completed
func (h *NoteHandler) HandleDeleteCompleted(w http.ResponseWriter, r *http.Request) {
	ids, err := h.notes.DeleteCompleted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse[string]{IDs: nonNilSlice(ids)})
}

// HandleDeleteMany removes a selection of notes.
//
// HTTP: POST /api/notes/delete
// REQUEST BODY: {"ids": ["...", "..."]}
func (h *NoteHandler) HandleDeleteMany(w http.ResponseWriter, r *http.Request) {
	var req idsResponse[string]
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ids, err := h.notes.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse[string]{IDs: nonNilSlice(ids)})
}

// HandleDeleteReminders removes every standalone reminder linked to a note.
//
// HTTP: DELETE /api/notes/{id}/reminders
func (h *NoteHandler) HandleDeleteReminders(w http.ResponseWriter, r *http.Request) {
	ids, err := h.reminders.DeleteForNote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse[int64]{IDs: ids})
}

// HandleToday lists notes whose reminder falls on the current local day.
//
// HTTP: GET /api/notes/today
func (h *NoteHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.Today(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleStream streams the home or archive list as server-sent events,
// re-sending on every change and every filter in the query string.
//
// HTTP: GET /api/notes/stream?list=home|archive&search=&topic=&...
func (h *NoteHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	filter, err := parseNoteFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	var list *service.NoteList
	switch r.URL.Query().Get("list") {
	case "", "home":
		list = service.NewHomeList(h.app)
	case "archive":
		list = service.NewArchiveList(h.app)
	default:
		writeError(w, apperror.ValidationFailed("list", "list must be home or archive"))
		return
	}
	list.SetFilter(filter)

	streamEvents(w, r, "notes", list.Watch(r.Context()), h.logger)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
