package model

import (
	"fmt"
	"time"
)

// PageSize is the fixed number of notes per page.
const PageSize = 20

// SortField is the allow-list of sortable note columns.
type SortField string

const (
	SortCreatedAt    SortField = "created_at"
	SortTitle        SortField = "title"
	SortReminderTime SortField = "reminder_time"
)

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case "":
		return SortCreatedAt, nil
	case SortCreatedAt, SortTitle, SortReminderTime:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return SortDesc, nil
	case SortAsc, SortDesc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Completion filters notes by their completion flag.
type Completion string

const (
	CompletionAny       Completion = ""
	CompletionActive    Completion = "active"
	CompletionCompleted Completion = "completed"
)

func ParseCompletion(s string) (Completion, error) {
	switch c := Completion(s); c {
	case CompletionAny, CompletionActive, CompletionCompleted:
		return c, nil
	case "all":
		return CompletionAny, nil
	}
	return "", fmt.Errorf("unknown completion filter %q", s)
}

// NoteFilter is the user-editable part of a note listing. It is comparable so
// state holders can detect changes with ==.
type NoteFilter struct {
	Search     string
	Topic      Topic
	Completion Completion
	From       time.Time // inclusive lower bound on CreatedAt; zero = open
	To         time.Time // inclusive upper bound on CreatedAt; zero = open
	Sort       SortField
	Order      SortOrder
}

// DefaultNoteFilter sorts newest first across every topic.
func DefaultNoteFilter() NoteFilter {
	return NoteFilter{Topic: TopicAll, Sort: SortCreatedAt, Order: SortDesc}
}

// NoteQuery is a NoteFilter bound to a user and a page position.
type NoteQuery struct {
	UserID string
	NoteFilter
	Cursor string // opaque; empty for the first page
}

// NotePage is one page of a cursor-paginated listing.
type NotePage struct {
	Notes      []Note `json:"notes"`
	NextCursor string `json:"nextCursor,omitempty"`
}
