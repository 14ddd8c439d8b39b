package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sakif/notekeeper/internal/model"
)

// Notifier raises a notification to the user.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// LogNotifier writes each notification to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n model.Notification) error {
	l.Logger.Info("notification",
		slog.String("key", n.Key),
		slog.String("title", n.Title),
		slog.String("link", n.Link),
	)
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Feed broadcasts fired notifications to live subscribers, such as open
// event streams. A subscriber whose buffer is full misses the notification.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan model.Notification]struct{}
	logger *slog.Logger
}

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{subs: make(map[chan model.Notification]struct{}), logger: logger}
}

// Subscribe returns a channel of notifications and a func that ends the
// subscription and closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan model.Notification, func()) {
	ch := make(chan model.Notification, buffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed) Notify(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- n:
		default:
			f.logger.Warn("notification feed subscriber is full, dropping", slog.String("key", n.Key))
		}
	}
	return nil
}
