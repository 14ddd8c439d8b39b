// Package service holds the app's business rules and per-screen state.
//
// DEPENDENCY CHAIN:
//
//	main.go builds:  sqlite.DB → Repository ─┐
//	                 prefs.Store ────────────┼→ App → NoteService, ReminderService,
//	                 notify.Scheduler ───────┘        AuthService, NoteList, ...
//
// App is the one process-wide context object. It is built once in main and
// passed explicitly to everything that needs it; there are no package-level
// singletons.
//
// CURRENT USER:
// Every user-scoped call reads the signed-in user from App.Session at call
// time. Signed out, list reads return empty results and writes fail with
// apperror.ErrUnauthenticated.
package service

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/auth"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/notify"
	"github.com/sakif/notekeeper/internal/repository"
)

// Scheduler is the part of notify.Scheduler the services use.
type Scheduler interface {
	ScheduleAt(ctx context.Context, req notify.Request) error
	Cancel(ctx context.Context, userID string, kind model.OwnerKind, entityID string) error
}

var _ Scheduler = (*notify.Scheduler)(nil)

// App is the shared application context.
type App struct {
	Repo      *repository.Repository
	Session   repository.CurrentUserSource
	Scheduler Scheduler
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// currentUser returns the signed-in user id, or "" when nobody is signed in.
// A request authenticated for a different user than the one signed in now
// (the account switched mid-request) also counts as signed out.
func (a *App) currentUser(ctx context.Context) string {
	id := a.Session.CurrentUser()
	if reqID, ok := auth.UserIDFromContext(ctx); ok && reqID != id {
		return ""
	}
	return id
}

// requireUser returns the signed-in user id or ErrUnauthenticated.
func (a *App) requireUser(ctx context.Context) (string, error) {
	id := a.currentUser(ctx)
	if id == "" {
		return "", apperror.Unauthenticated()
	}
	return id, nil
}

// schedule arranges a notification. The write that prompted it has already
// committed, so a failure here is logged rather than returned.
func (a *App) schedule(ctx context.Context, req notify.Request) {
	if err := a.Scheduler.ScheduleAt(ctx, req); err != nil {
		a.Logger.Error("failed to schedule notification",
			slog.String("kind", string(req.Kind)),
			slog.String("entity_id", req.EntityID),
			slog.String("error", err.Error()),
		)
	}
}

// cancel drops userID's pending notification for the entity.
func (a *App) cancel(ctx context.Context, userID string, kind model.OwnerKind, id string) {
	if err := a.Scheduler.Cancel(ctx, userID, kind, id); err != nil {
		a.Logger.Error("failed to cancel notification",
			slog.String("kind", string(kind)),
			slog.String("entity_id", id),
			slog.String("error", err.Error()),
		)
	}
}
