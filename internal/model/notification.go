package model

import (
	"strings"
	"time"
)

// OwnerKind names the entity type that owns a pending notification.
type OwnerKind string

const (
	OwnerNote     OwnerKind = "note"
	OwnerReminder OwnerKind = "reminder"
)

// ScheduleMode records which delivery path armed a pending notification.
type ScheduleMode string

const (
	ModeExact   ScheduleMode = "exact"
	ModeInexact ScheduleMode = "inexact"
)

// NotificationKey is the unique key of the pending-notification table.
func NotificationKey(kind OwnerKind, entityID string) string {
	return string(kind) + ":" + entityID
}

// SplitNotificationKey reverses NotificationKey.
func SplitNotificationKey(key string) (OwnerKind, string, bool) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return "", "", false
	}
	return OwnerKind(kind), id, true
}

// PendingNotification is one scheduled, not yet fired notification. Instance
// changes on every reschedule so a stale timer can never fire a newer entry.
type PendingNotification struct {
	Key       string       `json:"key"`
	Kind      OwnerKind    `json:"kind"`
	EntityID  string       `json:"entityId"`
	UserID    string       `json:"userId"`
	Instance  string       `json:"instance"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	Link      string       `json:"link"`
	TriggerAt time.Time    `json:"triggerAt"`
	Mode      ScheduleMode `json:"mode"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Notification is what a user sees when a pending notification fires.
type Notification struct {
	Key     string    `json:"key"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Link    string    `json:"link"`
	FiredAt time.Time `json:"firedAt"`
}
