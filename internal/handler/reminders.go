package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/service"
)

// ReminderHandler serves the standalone reminder endpoints.
type ReminderHandler struct {
	reminders *service.ReminderService
	app       *service.App
	logger    *slog.Logger
}

func NewReminderHandler(app *service.App, reminders *service.ReminderService, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, app: app, logger: logger}
}

// HandleList runs one reminder view.
//
// HTTP: GET /api/reminders?view=active|completed|all|note|range|overdue|upcoming|search|today
//
// Extra parameters by view: note → noteId; range → from, to; upcoming →
// window (a Go duration such as "48h"); search → q.
func (h *ReminderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := model.ParseReminderView(q.Get("view"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("view", err.Error()))
		return
	}
	query := model.ReminderQuery{View: view, NoteID: q.Get("noteId"), Search: q.Get("q")}

	if query.From, err = parseTime(q, "from"); err != nil {
		writeError(w, err)
		return
	}
	if query.To, err = parseTime(q, "to"); err != nil {
		writeError(w, err)
		return
	}
	if view == model.ReminderRange && (query.From.IsZero() || query.To.IsZero()) {
		writeError(w, apperror.ValidationFailed("from", "range view needs from and to"))
		return
	}
	if raw := q.Get("window"); raw != "" {
		if query.Window, err = time.ParseDuration(raw); err != nil || query.Window <= 0 {
			writeError(w, apperror.ValidationFailed("window", "window must be a positive duration"))
			return
		}
	}

	list, err := h.reminders.List(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(list))
}

// HandleCreate adds a reminder.
//
// HTTP: POST /api/reminders
// REQUEST BODY: {"title": "Pay rent", "description": "", "reminderDateTime": "...", "noteId": "..."}
func (h *ReminderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.ReminderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	rem, err := h.reminders.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

// HTTP: GET /api/reminders/{id}
func (h *ReminderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rem, err := h.reminders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// HTTP: PUT /api/reminders/{id}
func (h *ReminderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var in service.ReminderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	rem, err := h.reminders.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	if rem == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

// HTTP: DELETE /api/reminders/{id}
func (h *ReminderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.reminders.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: PUT /api/reminders/{id}/completion
func (h *ReminderHandler) HandleSetCompletion(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req completionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.reminders.SetCompleted(r.Context(), id, req.Completed); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: POST /api/reminders/complete
func (h *ReminderHandler) HandleCompleteMany(w http.ResponseWriter, r *http.Request) {
	var req idsResponse[int64]
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ids, err := h.reminders.CompleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse[int64]{IDs: ids})
}

// HTTP: POST /api/reminders/delete
func (h *ReminderHandler) HandleDeleteMany(w http.ResponseWriter, r *http.Request) {
	var req idsResponse[int64]
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ids, err := h.reminders.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse[int64]{IDs: ids})
}

// HTTP: DELETE /api/reminders
func (h *ReminderHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	ids, err := h.reminders.DeleteAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idsResponse[int64]{IDs: ids})
}

// HandleCounts returns the badge counts.
//
// HTTP: GET /api/reminders/counts
func (h *ReminderHandler) HandleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reminders.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleStream streams a reminder view as server-sent events.
//
// HTTP: GET /api/reminders/stream?view=&q=&noteId=
func (h *ReminderHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := model.ParseReminderView(q.Get("view"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("view", err.Error()))
		return
	}
	if view == model.ReminderRange {
		writeError(w, apperror.ValidationFailed("view", "range view cannot be streamed"))
		return
	}

	list := service.NewReminderList(h.app)
	list.SetFilter(service.ReminderFilter{View: view, Search: q.Get("q"), NoteID: q.Get("noteId")})
	streamEvents(w, r, "reminders", list.Watch(r.Context()), h.logger)
}
