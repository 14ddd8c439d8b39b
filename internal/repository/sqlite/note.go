package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/repository"
)

var _ repository.NoteStore = (*DB)(nil)

const noteColumns = `id, user_id, title, content, topic, is_completed, created_at, reminder_time`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner, extra ...any) (model.Note, error) {
	var (
		n         model.Note
		topic     string
		completed int
		created   int64
		reminder  sql.NullInt64
	)
	dest := append([]any{&n.ID, &n.UserID, &n.Title, &n.Content, &topic, &completed, &created, &reminder}, extra...)
	if err := s.Scan(dest...); err != nil {
		return model.Note{}, err
	}
	n.Topic = model.Topic(topic)
	n.IsCompleted = completed != 0
	n.CreatedAt = fromMillis(created)
	n.ReminderTime = fromNullMillis(reminder)
	return n, nil
}

func collectNotes(rows *sql.Rows) ([]model.Note, error) {
	defer rows.Close()
	notes := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return notes, nil
}

// CreateNote inserts a note. ID and CreatedAt are filled when empty; callers
// normally generate the id themselves.
func (db *DB) CreateNote(ctx context.Context, note *model.Note) error {
	if note.ID == "" {
		note.ID = xid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = db.now()
	}
	// Stored precision is milliseconds; keep the in-memory copy identical.
	note.CreatedAt = note.CreatedAt.Truncate(time.Millisecond)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.UserID, note.Title, note.Content, string(note.Topic),
		boolInt(note.IsCompleted), millis(note.CreatedAt), nullMillis(note.ReminderTime),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}
	return nil
}

func (db *DB) GetNote(ctx context.Context, userID, id string) (*model.Note, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlite: getting note %s: %w", id, err)
	}
	return &n, nil
}

// UpdateNote writes the editable fields only: title, content, topic and
// reminder time. Completion has its own operation; id, owner and creation
// time never change.
func (db *DB) UpdateNote(ctx context.Context, note *model.Note) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, topic = ?, reminder_time = ?
		 WHERE id = ? AND user_id = ?`,
		note.Title, note.Content, string(note.Topic), nullMillis(note.ReminderTime),
		note.ID, note.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating note %s: %w", note.ID, err)
	}
	return expectOneRow(result, "note", note.ID)
}

func (db *DB) DeleteNote(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
	}
	return expectOneRow(result, "note", id)
}

func (db *DB) SetNoteCompletion(ctx context.Context, userID, id string, completed bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET is_completed = ? WHERE id = ? AND user_id = ?`,
		boolInt(completed), id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: setting completion of note %s: %w", id, err)
	}
	return expectOneRow(result, "note", id)
}

func (db *DB) DeleteCompletedNotes(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`DELETE FROM notes WHERE user_id = ? AND is_completed = 1 RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting completed notes: %w", err)
	}
	return collectStrings(rows)
}

func (db *DB) DeleteNotes(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := db.conn.QueryContext(ctx,
		`DELETE FROM notes WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`) RETURNING id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting notes: %w", err)
	}
	return collectStrings(rows)
}

// ListNotes returns a user's notes newest first, optionally filtered by
// completion.
func (db *DB) ListNotes(ctx context.Context, userID string, completion model.Completion) ([]model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ?`
	args := []any{userID}
	switch completion {
	case model.CompletionActive:
		query += ` AND is_completed = 0`
	case model.CompletionCompleted:
		query += ` AND is_completed = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes: %w", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return notes, nil
}

// NotesWithReminderBetween returns notes whose reminder falls in [from, to],
// earliest first.
func (db *DB) NotesWithReminderBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE user_id = ? AND reminder_time BETWEEN ? AND ?
		 ORDER BY reminder_time ASC, id ASC`,
		userID, millis(from), millis(to))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes by reminder time: %w", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return notes, nil
}

// expectOneRow maps "no row matched" to apperror.NotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning id: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ids: %w", err)
	}
	return out, nil
}
