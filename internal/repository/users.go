package repository

import (
	"context"
	"errors"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/observe"
)

// SaveUser inserts u or replaces the row with the same id.
func (r *Repository) SaveUser(ctx context.Context, u *model.User) error {
	if err := r.store.UpsertUser(ctx, u); err != nil {
		return storageErr("save user", err)
	}
	r.usersChanged.Publish()
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := r.store.GetUser(ctx, id)
	return u, storageErr("get user", err)
}

// WatchUser emits the user row, or nil while it does not exist.
func (r *Repository) WatchUser(ctx context.Context, id string) <-chan observe.Result[*model.User] {
	return observe.Query(ctx, func(ctx context.Context) (*model.User, error) {
		u, err := r.GetUser(ctx, id)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return u, err
	}, r.usersChanged)
}
