// Package prefs holds the small durable settings that live outside the
// relational tables, chiefly which user is signed in.
package prefs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/observe"
	"github.com/sakif/notekeeper/internal/repository"
)

const currentUserKey = "current_user_id"

var _ repository.CurrentUserSource = (*Store)(nil)

// Store caches the current user id in memory and writes through to the
// preferences table. An empty id means signed out.
type Store struct {
	backend repository.PreferenceStore
	current *observe.Value[string]
	logger  *slog.Logger
}

// Open loads the persisted current user.
func Open(ctx context.Context, backend repository.PreferenceStore, logger *slog.Logger) (*Store, error) {
	id, _, err := backend.GetPreference(ctx, currentUserKey)
	if err != nil {
		return nil, fmt.Errorf("prefs: loading current user: %w", err)
	}
	if id != "" {
		logger.Info("restored signed-in user", slog.String("user_id", id))
	}
	return &Store{backend: backend, current: observe.NewValue(id), logger: logger}, nil
}

func (s *Store) CurrentUser() string {
	return s.current.Load()
}

// WatchCurrentUser emits the current id, then every distinct change.
func (s *Store) WatchCurrentUser(ctx context.Context) <-chan string {
	return s.current.Watch(ctx)
}

func (s *Store) SetCurrentUser(ctx context.Context, id string) error {
	if id == "" {
		return s.ClearCurrentUser(ctx)
	}
	if err := s.backend.SetPreference(ctx, currentUserKey, id); err != nil {
		return apperror.Storage("set current user", err)
	}
	s.current.Store(id)
	return nil
}

func (s *Store) ClearCurrentUser(ctx context.Context) error {
	if err := s.backend.DeletePreference(ctx, currentUserKey); err != nil {
		return apperror.Storage("clear current user", err)
	}
	s.current.Store("")
	return nil
}
