package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/repository"
)

var _ repository.NotificationStore = (*DB)(nil)

const pendingColumns = `key, kind, entity_id, user_id, instance, title, body, link, trigger_at, mode, created_at`

func scanPending(s rowScanner) (model.PendingNotification, error) {
	var (
		p                model.PendingNotification
		kind, mode       string
		trigger, created int64
	)
	if err := s.Scan(&p.Key, &kind, &p.EntityID, &p.UserID, &p.Instance, &p.Title, &p.Body, &p.Link,
		&trigger, &mode, &created); err != nil {
		return model.PendingNotification{}, err
	}
	p.Kind = model.OwnerKind(kind)
	p.Mode = model.ScheduleMode(mode)
	p.TriggerAt = fromMillis(trigger)
	p.CreatedAt = fromMillis(created)
	return p, nil
}

func collectPending(rows *sql.Rows) ([]model.PendingNotification, error) {
	defer rows.Close()
	out := make([]model.PendingNotification, 0)
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning pending notification: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pending notifications: %w", err)
	}
	return out, nil
}

// UpsertPending stores p, replacing whatever was pending under the same key.
func (db *DB) UpsertPending(ctx context.Context, p *model.PendingNotification) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = db.now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO pending_notifications (`+pendingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			entity_id = excluded.entity_id,
			user_id = excluded.user_id,
			instance = excluded.instance,
			title = excluded.title,
			body = excluded.body,
			link = excluded.link,
			trigger_at = excluded.trigger_at,
			mode = excluded.mode,
			created_at = excluded.created_at`,
		p.Key, string(p.Kind), p.EntityID, p.UserID, p.Instance, p.Title, p.Body, p.Link,
		millis(p.TriggerAt), string(p.Mode), millis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting pending notification %s: %w", p.Key, err)
	}
	return nil
}

func (db *DB) GetPending(ctx context.Context, key string) (*model.PendingNotification, error) {
	p, err := scanPending(db.conn.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_notifications WHERE key = ?`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("pending notification", key)
		}
		return nil, fmt.Errorf("sqlite: getting pending notification %s: %w", key, err)
	}
	return &p, nil
}

// DeletePending removes the key's row if userID owns it. Rows written before
// owners were recorded have an empty user_id and match any caller. It
// reports whether anything was removed.
func (db *DB) DeletePending(ctx context.Context, key, userID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM pending_notifications WHERE key = ? AND (user_id = ? OR user_id = '')`, key, userID)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting pending notification %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// ClaimPending deletes and returns the row for key only while it still
// carries instance. A nil result means the instance was cancelled, replaced
// or already fired.
func (db *DB) ClaimPending(ctx context.Context, key, instance string) (*model.PendingNotification, error) {
	p, err := scanPending(db.conn.QueryRowContext(ctx,
		`DELETE FROM pending_notifications WHERE key = ? AND instance = ? RETURNING `+pendingColumns,
		key, instance))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: claiming pending notification %s: %w", key, err)
	}
	return &p, nil
}

func (db *DB) ListPending(ctx context.Context) ([]model.PendingNotification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_notifications ORDER BY trigger_at ASC, key ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pending notifications: %w", err)
	}
	return collectPending(rows)
}

// DuePending lists rows whose trigger time is at or before now.
func (db *DB) DuePending(ctx context.Context, now time.Time) ([]model.PendingNotification, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_notifications
		 WHERE trigger_at <= ? ORDER BY trigger_at ASC, key ASC`, millis(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing due notifications: %w", err)
	}
	return collectPending(rows)
}
