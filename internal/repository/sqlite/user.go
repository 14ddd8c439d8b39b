package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/repository"
)

var _ repository.UserStore = (*DB)(nil)

// UpsertUser inserts the user or replaces every column of the existing row
// with the same id. The id is the provider subject, so it is never generated
// here.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = db.now()

	var picture sql.NullString
	if user.ProfilePictureURL != "" {
		picture = sql.NullString{String: user.ProfilePictureURL, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, profile_picture_url, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			profile_picture_url = excluded.profile_picture_url,
			updated_at = excluded.updated_at`,
		user.ID, user.Name, user.Email, picture, millis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", user.ID, err)
	}
	return nil
}

// GetUser returns apperror.ErrNotFound if no user has that id.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	var (
		u       model.User
		picture sql.NullString
		updated int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, profile_picture_url, updated_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &picture, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	u.ProfilePictureURL = picture.String
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}
