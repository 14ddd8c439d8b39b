package sqlite

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
)

// sortSpec maps an allowed sort field to a fixed SQL expression. Only these
// expressions ever reach the query text; search terms, topics and dates are
// always bound parameters.
type sortSpec struct {
	expr string
	text bool
}

var sortSpecs = map[model.SortField]sortSpec{
	model.SortCreatedAt:    {expr: "created_at"},
	model.SortTitle:        {expr: "lower(title)", text: true},
	model.SortReminderTime: {expr: "COALESCE(reminder_time, -1)"},
}

// noteCursor is the keyset position after the last row of a page. It also
// records the ordering it belongs to, so a cursor cannot be replayed under a
// different sort.
type noteCursor struct {
	Field model.SortField `json:"f"`
	Order model.SortOrder `json:"o"`
	Int   int64           `json:"i,omitempty"`
	Str   string          `json:"s,omitempty"`
	ID    string          `json:"id"`
}

func (c noteCursor) encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (noteCursor, error) {
	var c noteCursor
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	if c.ID == "" {
		return c, fmt.Errorf("cursor has no id")
	}
	return c, nil
}

// escapeLike escapes LIKE wildcards so the search text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// noteWhere builds the filter predicate for q as SQL with ? placeholders.
func noteWhere(q model.NoteQuery) ([]string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{q.UserID}

	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		conds = append(conds, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if q.Topic != "" && q.Topic != model.TopicAll {
		conds = append(conds, "topic = ?")
		args = append(args, string(q.Topic))
	}
	switch q.Completion {
	case model.CompletionActive:
		conds = append(conds, "is_completed = 0")
	case model.CompletionCompleted:
		conds = append(conds, "is_completed = 1")
	}
	if !q.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, millis(q.From))
	}
	if !q.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, millis(q.To))
	}
	return conds, args
}

// QueryNotes returns one page of notes matching q, ordered by q.Sort/q.Order
// with id as the tie-break. limit <= 0 means model.PageSize.
func (db *DB) QueryNotes(ctx context.Context, q model.NoteQuery, limit int) (model.NotePage, error) {
	if limit <= 0 {
		limit = model.PageSize
	}
	field := q.Sort
	if field == "" {
		field = model.SortCreatedAt
	}
	spec, ok := sortSpecs[field]
	if !ok {
		return model.NotePage{}, apperror.ValidationFailed("sort", fmt.Sprintf("cannot sort by %q", field))
	}
	order := q.Order
	if order == "" {
		order = model.SortDesc
	}
	dir, cmp := "DESC", "<"
	switch order {
	case model.SortAsc:
		dir, cmp = "ASC", ">"
	case model.SortDesc:
	default:
		return model.NotePage{}, apperror.ValidationFailed("order", fmt.Sprintf("unknown sort order %q", order))
	}

	conds, args := noteWhere(q)

	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil || c.Field != field || c.Order != order {
			return model.NotePage{}, apperror.ValidationFailed("cursor", "invalid or stale cursor")
		}
		var key any = c.Int
		if spec.text {
			key = c.Str
		}
		conds = append(conds, fmt.Sprintf("(%s %s ? OR (%s = ? AND id %s ?))", spec.expr, cmp, spec.expr, cmp))
		args = append(args, key, key, c.ID)
	}

	query := `SELECT ` + noteColumns + `, ` + spec.expr + ` AS sort_key FROM notes WHERE ` +
		strings.Join(conds, " AND ") +
		` ORDER BY sort_key ` + dir + `, id ` + dir +
		` LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return model.NotePage{}, fmt.Errorf("sqlite: querying notes: %w", err)
	}
	defer rows.Close()

	page := model.NotePage{Notes: make([]model.Note, 0, limit)}
	var last noteCursor
	for rows.Next() {
		var key any
		n, err := scanNote(rows, &key)
		if err != nil {
			return model.NotePage{}, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		if len(page.Notes) == limit {
			// The extra row only proves there is another page.
			page.NextCursor = last.encode()
			break
		}
		page.Notes = append(page.Notes, n)
		last = noteCursor{Field: field, Order: order, ID: n.ID}
		switch k := key.(type) {
		case int64:
			last.Int = k
		case string:
			last.Str = k
		case []byte:
			last.Str = string(k)
		}
	}
	if err := rows.Err(); err != nil {
		return model.NotePage{}, fmt.Errorf("sqlite: iterating notes: %w", err)
	}
	return page, nil
}
