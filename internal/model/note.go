// Package model holds the domain types shared across layers.
//
// Models carry no behaviour beyond small helpers; persistence, validation
// and scheduling live in their own packages. JSON tags define the API shape.
package model

import (
	"fmt"
	"time"
)

// Topic labels a note. The set is closed.
type Topic string

const (
	TopicGeneral  Topic = "General"
	TopicWork     Topic = "Work"
	TopicPersonal Topic = "Personal"
	TopicShopping Topic = "Shopping"
	TopicHealth   Topic = "Health"
	TopicIdeas    Topic = "Ideas"

	// TopicAll is only meaningful as a filter: it matches every topic.
	TopicAll Topic = "All"
)

// Topics lists the assignable topics in display order.
var Topics = []Topic{TopicGeneral, TopicWork, TopicPersonal, TopicShopping, TopicHealth, TopicIdeas}

// Valid reports whether t can be stored on a note.
func (t Topic) Valid() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopic accepts an assignable topic or "All"/"" for filtering.
func ParseTopic(s string) (Topic, error) {
	t := Topic(s)
	if t == "" || t == TopicAll || t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown topic %q", s)
}

type Note struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Topic        Topic      `json:"topic"`
	IsCompleted  bool       `json:"isCompleted"`
	CreatedAt    time.Time  `json:"createdAt"`
	ReminderTime *time.Time `json:"reminderTime,omitempty"`
}

// HasFutureReminder reports whether the note still needs a notification at now.
func (n *Note) HasFutureReminder(now time.Time) bool {
	return n.ReminderTime != nil && n.ReminderTime.After(now)
}
