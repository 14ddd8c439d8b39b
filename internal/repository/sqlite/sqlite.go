// Package sqlite implements the repository store interfaces on SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary stays CGo-free and
// cross-compiles anywhere. database/sql sees it as the driver "sqlite".
//
// CONNECTION MODEL:
// The app is single-device and single-process, so one *sql.DB pinned to one
// connection is shared by everything. Writes are serialized by that
// connection and by SQLite itself; there is no extra locking here. Callers
// must not issue a query while iterating another query's rows.
//
// TIMESTAMPS:
// Every timestamp column is INTEGER epoch milliseconds. Range filters and
// keyset cursors compare plain integers, which keeps them exact and indexable.
//
// MIGRATIONS:
// Versioned and additive only. Each step is CREATE ... IF NOT EXISTS or an
// addColumnIfNotExists, recorded in schema_migrations. A database written by
// an older build is upgraded in place; nothing is ever dropped.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository stores.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Option customizes a DB.
type Option func(*DB)

// WithNow sets the clock used for updated_at stamps.
func WithNow(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// New opens (creating if needed) the database at dbPath and migrates it.
//
// dbPath examples:
//   - "data/notes.db"  file-based, persistent
//   - ":memory:"       in-memory, for tests
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: ":memory:" databases are per-connection, and a single
	// writer avoids SQLITE_BUSY between our own goroutines.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the engine still answers. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migration is one schema step. Steps never drop or rewrite existing data.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

func execAll(stmts ...string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

var migrations = []migration{
	{1, "users and notes", execAll(
		`CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			email               TEXT NOT NULL,
			profile_picture_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			title         TEXT NOT NULL,
			content       TEXT NOT NULL DEFAULT '',
			topic         TEXT NOT NULL DEFAULT 'General',
			is_completed  INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			reminder_time INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_user_completed ON notes(user_id, is_completed, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_user_reminder ON notes(user_id, reminder_time)`,
	)},
	{2, "reminders", execAll(
		`CREATE TABLE IF NOT EXISTS reminders (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id            TEXT,
			title              TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			reminder_date_time INTEGER NOT NULL,
			is_completed       INTEGER NOT NULL DEFAULT 0,
			is_notified        INTEGER NOT NULL DEFAULT 0,
			user_id            TEXT NOT NULL,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user_time ON reminders(user_id, reminder_date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders(is_notified, is_completed, reminder_date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_note ON reminders(note_id)`,
	)},
	{3, "preferences", execAll(
		`CREATE TABLE IF NOT EXISTS preferences (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	)},
	{4, "pending notifications", execAll(
		`CREATE TABLE IF NOT EXISTS pending_notifications (
			key        TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			entity_id  TEXT NOT NULL,
			instance   TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '',
			link       TEXT NOT NULL DEFAULT '',
			trigger_at INTEGER NOT NULL,
			mode       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_trigger ON pending_notifications(trigger_at)`,
	)},
	{5, "users.updated_at", func(ctx context.Context, tx *sql.Tx) error {
		return addColumnIfNotExists(ctx, tx, "users", "updated_at", "INTEGER NOT NULL DEFAULT 0")
	}},
	{6, "pending_notifications.user_id", func(ctx context.Context, tx *sql.Tx) error {
		return addColumnIfNotExists(ctx, tx, "pending_notifications", "user_id", "TEXT NOT NULL DEFAULT ''")
	}},
}

// migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *DB) migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, db.now().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading schema version: %w", err)
	}
	return v, nil
}

// addColumnIfNotExists adds a column only if the table lacks it, so the
// step is safe on databases that already have it.
func addColumnIfNotExists(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	// table/column/definition are compile-time constants from the migration list.
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// millis and friends convert between time.Time and the stored epoch ms.
func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
