package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/notekeeper/internal/notify"
	"github.com/sakif/notekeeper/internal/service"
)

// SERVER-SENT EVENTS:
// A stream response stays open; each message is
//
//	event: <name>
//	data: <json>
//
// followed by a blank line. The browser's EventSource reconnects on its own
// when the connection drops, so handlers just stream until the request
// context ends.

// streamEvents writes every value from ch as an event until ch closes or
// the client goes away.
func streamEvents[T any](w http.ResponseWriter, r *http.Request, event string, ch <-chan T, logger *slog.Logger) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Error("streaming not supported", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, event, v); err != nil {
				logger.Debug("stream client gone", slog.String("event", event), slog.String("error", err.Error()))
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// StreamHandler serves the streams that are not tied to one resource.
type StreamHandler struct {
	app    *service.App
	feed   *notify.Feed
	logger *slog.Logger
}

func NewStreamHandler(app *service.App, feed *notify.Feed, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{app: app, feed: feed, logger: logger}
}

// notificationBuffer is how many fired notifications a slow client may lag
// behind before the feed starts dropping for it.
const notificationBuffer = 16

// HandleNotifications streams notifications as they fire.
//
// HTTP: GET /api/notifications/stream
// EVENT: notification {"key","title","body","link","firedAt"}
func (h *StreamHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ch, unsubscribe := h.feed.Subscribe(notificationBuffer)
	defer unsubscribe()
	streamEvents(w, r, "notification", ch, h.logger)
}

// HandleToday streams the today list; it refreshes by itself at midnight.
//
// HTTP: GET /api/notes/today/stream
func (h *StreamHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	streamEvents(w, r, "today", service.NewTodayList(h.app).Watch(r.Context()), h.logger)
}
