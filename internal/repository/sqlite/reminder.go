package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/repository"
)

var _ repository.ReminderStore = (*DB)(nil)

const reminderColumns = `id, note_id, title, description, reminder_date_time, is_completed,
	is_notified, user_id, created_at, updated_at`

func scanReminder(s rowScanner) (model.Reminder, error) {
	var (
		r                   model.Reminder
		noteID              sql.NullString
		at, created, upd    int64
		completed, notified int
	)
	if err := s.Scan(&r.ID, &noteID, &r.Title, &r.Description, &at, &completed,
		&notified, &r.UserID, &created, &upd); err != nil {
		return model.Reminder{}, err
	}
	if noteID.Valid {
		id := noteID.String
		r.NoteID = &id
	}
	r.ReminderDateTime = fromMillis(at)
	r.IsCompleted = completed != 0
	r.IsNotified = notified != 0
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(upd)
	return r, nil
}

func collectReminders(rows *sql.Rows) ([]model.Reminder, error) {
	defer rows.Close()
	out := make([]model.Reminder, 0)
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning reminder row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reminders: %w", err)
	}
	return out, nil
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reminder id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reminder ids: %w", err)
	}
	return ids, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func idArgs(userID string, ids []int64) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// CreateReminder inserts r and sets its ID and timestamps. IsNotified always
// starts false whatever the caller passed.
func (db *DB) CreateReminder(ctx context.Context, r *model.Reminder) error {
	now := db.now().Truncate(time.Millisecond)
	r.CreatedAt, r.UpdatedAt = now, now
	r.IsNotified = false

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO reminders (note_id, title, description, reminder_date_time, is_completed,
			is_notified, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		nullString(r.NoteID), r.Title, r.Description, millis(r.ReminderDateTime),
		boolInt(r.IsCompleted), r.UserID, millis(now), millis(now),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating reminder: %w", err)
	}
	if r.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading reminder id: %w", err)
	}
	return nil
}

func (db *DB) GetReminder(ctx context.Context, userID string, id int64) (*model.Reminder, error) {
	r, err := scanReminder(db.conn.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("reminder", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting reminder %d: %w", id, err)
	}
	return &r, nil
}

// UpdateReminder writes the user-editable fields. is_notified is owned by
// the background sweep and is never written here.
func (db *DB) UpdateReminder(ctx context.Context, r *model.Reminder) error {
	r.UpdatedAt = db.now().Truncate(time.Millisecond)
	result, err := db.conn.ExecContext(ctx,
		`UPDATE reminders
		 SET note_id = ?, title = ?, description = ?, reminder_date_time = ?,
			is_completed = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		nullString(r.NoteID), r.Title, r.Description, millis(r.ReminderDateTime),
		boolInt(r.IsCompleted), millis(r.UpdatedAt), r.ID, r.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating reminder %d: %w", r.ID, err)
	}
	return expectOneRow(result, "reminder", strconv.FormatInt(r.ID, 10))
}

func (db *DB) DeleteReminder(ctx context.Context, userID string, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting reminder %d: %w", id, err)
	}
	return expectOneRow(result, "reminder", strconv.FormatInt(id, 10))
}

func (db *DB) SetReminderCompletion(ctx context.Context, userID string, id int64, completed bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE reminders SET is_completed = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		boolInt(completed), millis(db.now()), id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: setting completion of reminder %d: %w", id, err)
	}
	return expectOneRow(result, "reminder", strconv.FormatInt(id, 10))
}

func (db *DB) CompleteReminders(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{millis(db.now())}, idArgs(userID, ids)...)
	rows, err := db.conn.QueryContext(ctx,
		`UPDATE reminders SET is_completed = 1, updated_at = ?
		 WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`) RETURNING id`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: completing reminders: %w", err)
	}
	return collectIDs(rows)
}

func (db *DB) DeleteReminders(ctx context.Context, userID string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx,
		`DELETE FROM reminders WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`) RETURNING id`,
		idArgs(userID, ids)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting reminders: %w", err)
	}
	return collectIDs(rows)
}

func (db *DB) DeleteRemindersByNote(ctx context.Context, userID, noteID string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`DELETE FROM reminders WHERE user_id = ? AND note_id = ? RETURNING id`, userID, noteID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting reminders of note %s: %w", noteID, err)
	}
	return collectIDs(rows)
}

func (db *DB) DeleteAllReminders(ctx context.Context, userID string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`DELETE FROM reminders WHERE user_id = ? RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting all reminders: %w", err)
	}
	return collectIDs(rows)
}

// ListReminders runs one of the fixed reminder listings selected by q.View.
func (db *DB) ListReminders(ctx context.Context, q model.ReminderQuery) ([]model.Reminder, error) {
	now := q.Now
	if now.IsZero() {
		now = db.now()
	}

	conds := []string{"user_id = ?"}
	args := []any{q.UserID}
	order := "reminder_date_time ASC"

	switch q.View {
	case model.ReminderActive, "":
		conds = append(conds, "is_completed = 0")
	case model.ReminderCompleted:
		conds = append(conds, "is_completed = 1")
		order = "reminder_date_time DESC"
	case model.ReminderAll:
	case model.ReminderByNote:
		conds = append(conds, "note_id = ?")
		args = append(args, q.NoteID)
	case model.ReminderRange, model.ReminderToday:
		conds = append(conds, "reminder_date_time BETWEEN ? AND ?")
		args = append(args, millis(q.From), millis(q.To))
	case model.ReminderOverdue:
		conds = append(conds, "reminder_date_time < ?", "is_completed = 0")
		args = append(args, millis(now))
		order = "reminder_date_time DESC"
	case model.ReminderUpcoming:
		window := q.Window
		if window <= 0 {
			window = model.DefaultUpcomingWindow
		}
		conds = append(conds, "reminder_date_time BETWEEN ? AND ?", "is_completed = 0")
		args = append(args, millis(now), millis(now.Add(window)))
	case model.ReminderSearch:
		pattern := "%" + escapeLike(strings.TrimSpace(q.Search)) + "%"
		conds = append(conds, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	default:
		return nil, apperror.ValidationFailed("view", fmt.Sprintf("unknown reminder view %q", q.View))
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE `+strings.Join(conds, " AND ")+
			` ORDER BY `+order+`, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s reminders: %w", q.View, err)
	}
	return collectReminders(rows)
}

// CountReminders returns how many reminders are active and how many of
// those are overdue at now.
func (db *DB) CountReminders(ctx context.Context, userID string, now time.Time) (model.ReminderCounts, error) {
	var c model.ReminderCounts
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN reminder_date_time < ? THEN 1 ELSE 0 END), 0)
		 FROM reminders WHERE user_id = ? AND is_completed = 0`,
		millis(now), userID,
	).Scan(&c.Active, &c.Overdue)
	if err != nil {
		return c, fmt.Errorf("sqlite: counting reminders: %w", err)
	}
	return c, nil
}

// PendingReminders returns reminders across all users that are due at now,
// not completed and not yet notified, earliest first.
func (db *DB) PendingReminders(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE reminder_date_time <= ? AND is_notified = 0 AND is_completed = 0
		 ORDER BY reminder_date_time ASC, id ASC`, millis(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pending reminders: %w", err)
	}
	return collectReminders(rows)
}

// ClaimReminderNotified flips is_notified from 0 to 1. It reports false when
// the row was already notified, has been completed or is gone, so only one
// caller ever wins and a completed reminder is never notified.
func (db *DB) ClaimReminderNotified(ctx context.Context, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE reminders SET is_notified = 1, updated_at = ? WHERE id = ? AND is_notified = 0 AND is_completed = 0`,
		millis(db.now()), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: marking reminder %d notified: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}
