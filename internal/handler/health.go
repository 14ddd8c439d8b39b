package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/notekeeper/internal/worker"
)

// Pinger is satisfied by the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the database answers and how the background
// tasks are doing.
type HealthHandler struct {
	db     Pinger
	tasks  func() []worker.TaskInfo
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, tasks func() []worker.TaskInfo, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, tasks: tasks, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Tasks  []worker.TaskInfo `json:"tasks"`
}

// HandleHealth answers 200 when the database is reachable and 503 otherwise.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Tasks: []worker.TaskInfo{}}
	if h.tasks != nil {
		resp.Tasks = h.tasks()
	}
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
