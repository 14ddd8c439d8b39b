package model

import (
	"fmt"
	"time"
)

// Reminder is a standalone schedulable entity. NoteID is a weak link: deleting
// the note does not delete the reminder.
type Reminder struct {
	ID               int64     `json:"id"`
	NoteID           *string   `json:"noteId,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ReminderDateTime time.Time `json:"reminderDateTime"`
	IsCompleted      bool      `json:"isCompleted"`
	IsNotified       bool      `json:"isNotified"` // set once by the background sweep
	UserID           string    `json:"userId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ReminderView selects one of the fixed reminder listings.
type ReminderView string

const (
	ReminderActive    ReminderView = "active"
	ReminderCompleted ReminderView = "completed"
	ReminderAll       ReminderView = "all"
	ReminderByNote    ReminderView = "note"
	ReminderRange     ReminderView = "range"
	ReminderOverdue   ReminderView = "overdue"
	ReminderUpcoming  ReminderView = "upcoming"
	ReminderSearch    ReminderView = "search"
	ReminderToday     ReminderView = "today"
)

func ParseReminderView(s string) (ReminderView, error) {
	switch v := ReminderView(s); v {
	case "":
		return ReminderActive, nil
	case ReminderActive, ReminderCompleted, ReminderAll, ReminderByNote, ReminderRange,
		ReminderOverdue, ReminderUpcoming, ReminderSearch, ReminderToday:
		return v, nil
	}
	return "", fmt.Errorf("unknown reminder view %q", s)
}

// DefaultUpcomingWindow is how far ahead the upcoming view looks.
const DefaultUpcomingWindow = 24 * time.Hour

// ReminderQuery parameterizes a reminder listing. Fields irrelevant to View
// are ignored. Now is filled by the repository from its clock when zero.
type ReminderQuery struct {
	UserID string
	View   ReminderView
	NoteID string
	Search string
	From   time.Time
	To     time.Time
	Window time.Duration
	Now    time.Time
}

type ReminderCounts struct {
	Active  int `json:"active"`
	Overdue int `json:"overdue"`
}
