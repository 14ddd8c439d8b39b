package worker

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/notify"
)

var _ notify.Handler = (*Dispatcher)(nil)

// Dispatcher delivers claimed notifications. Note notifications carry their
// own payload; a reminder's wake-up only triggers a sweep, which decides
// whether the reminder still needs notifying.
type Dispatcher struct {
	notifier notify.Notifier
	sweeper  *ReminderSweeper
	clock    clockwork.Clock
}

func NewDispatcher(notifier notify.Notifier, sweeper *ReminderSweeper, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{notifier: notifier, sweeper: sweeper, clock: clock}
}

func (d *Dispatcher) Handle(ctx context.Context, p model.PendingNotification) error {
	switch p.Kind {
	case model.OwnerNote:
		return d.notifier.Notify(ctx, model.Notification{
			Key:     p.Key,
			Title:   p.Title,
			Body:    p.Body,
			Link:    p.Link,
			FiredAt: d.clock.Now(),
		})
	case model.OwnerReminder:
		_, err := d.sweeper.Sweep(ctx)
		return err
	default:
		return fmt.Errorf("worker: unknown notification kind %q", p.Kind)
	}
}
