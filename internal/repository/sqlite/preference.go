package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/notekeeper/internal/repository"
)

var _ repository.PreferenceStore = (*DB)(nil)

// GetPreference reports ok=false when the key has never been set.
func (db *DB) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: reading preference %s: %w", key, err)
	}
	return v, true, nil
}

func (db *DB) SetPreference(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: writing preference %s: %w", key, err)
	}
	return nil
}

func (db *DB) DeletePreference(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: deleting preference %s: %w", key, err)
	}
	return nil
}
