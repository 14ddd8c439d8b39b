package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/notify"
)

// ReminderSource is the part of the repository the sweep needs.
type ReminderSource interface {
	PendingReminders(ctx context.Context, now time.Time) ([]model.Reminder, error)
	ClaimReminderNotified(ctx context.Context, id int64) (bool, error)
}

// ReminderSweeper notifies due reminders exactly once each. It is the only
// writer of a reminder's notified flag.
type ReminderSweeper struct {
	source   ReminderSource
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger

	mu sync.Mutex
}

func NewReminderSweeper(source ReminderSource, notifier notify.Notifier, clock clockwork.Clock, logger *slog.Logger) *ReminderSweeper {
	return &ReminderSweeper{source: source, notifier: notifier, clock: clock, logger: logger}
}

// Sweep claims and notifies every due reminder and returns how many it
// notified. A reminder claimed by a concurrent sweep is skipped.
func (s *ReminderSweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	due, err := s.source.PendingReminders(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("worker: listing due reminders: %w", err)
	}

	notified := 0
	for _, r := range due {
		claimed, err := s.source.ClaimReminderNotified(ctx, r.ID)
		if err != nil {
			return notified, fmt.Errorf("worker: claiming reminder %d: %w", r.ID, err)
		}
		if !claimed {
			continue
		}

		id := strconv.FormatInt(r.ID, 10)
		n := model.Notification{
			Key:     model.NotificationKey(model.OwnerReminder, id),
			Title:   r.Title,
			Body:    r.Description,
			Link:    "/reminders/" + id,
			FiredAt: now,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("failed to raise reminder notification",
				slog.Int64("reminder_id", r.ID), slog.String("error", err.Error()))
			continue
		}
		notified++
	}

	if notified > 0 {
		s.logger.Info("reminders notified", slog.Int("count", notified))
	}
	return notified, nil
}
