// Package notify schedules user notifications for notes and reminders.
//
// Every scheduled notification is one row in the pending table, keyed by
// "<kind>:<entity id>". Scheduling again under the same key replaces the row
// and gives it a fresh instance id; firing deletes the row only if it still
// holds the instance that was armed. That claim is what makes cancel and
// reschedule safe against a timer that is already running.
//
// Two delivery paths exist. Exact rows get an in-process timer on the
// injected clock. Inexact rows, used when exact alarms are unavailable, are
// picked up by SweepDue from the background worker.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"github.com/sakif/notekeeper/internal/apperror"
	"github.com/sakif/notekeeper/internal/model"
	"github.com/sakif/notekeeper/internal/repository"
)

// fireTimeout bounds a single claim and dispatch.
const fireTimeout = 30 * time.Second

// Request describes one notification to deliver at TriggerAt.
type Request struct {
	Kind      model.OwnerKind
	EntityID  string
	UserID    string
	Title     string
	Body      string
	Link      string
	TriggerAt time.Time
}

// Handler receives a pending notification after it has been claimed.
type Handler interface {
	Handle(ctx context.Context, p model.PendingNotification) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, p model.PendingNotification) error

func (f HandlerFunc) Handle(ctx context.Context, p model.PendingNotification) error {
	return f(ctx, p)
}

// AlarmCapability reports whether exact wake-ups are currently allowed.
type AlarmCapability interface {
	CanScheduleExact() bool
}

// StaticCapability is an AlarmCapability fixed at startup.
type StaticCapability bool

func (c StaticCapability) CanScheduleExact() bool { return bool(c) }

type armed struct {
	instance string
	timer    clockwork.Timer
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	store   repository.NotificationStore
	clock   clockwork.Clock
	caps    AlarmCapability
	handler Handler
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	timers map[string]armed
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(
	store repository.NotificationStore,
	clock clockwork.Clock,
	caps AlarmCapability,
	handler Handler,
	metrics *Metrics,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:   store,
		clock:   clock,
		caps:    caps,
		handler: handler,
		metrics: metrics,
		logger:  logger,
		timers:  make(map[string]armed),
	}
}

// ScheduleAt replaces whatever is pending for the request's owner with a
// notification at req.TriggerAt. A trigger time already in the past fires
// as soon as possible.
func (s *Scheduler) ScheduleAt(ctx context.Context, req Request) error {
	if req.Kind != model.OwnerNote && req.Kind != model.OwnerReminder {
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown notification owner %q", req.Kind))
	}
	if req.EntityID == "" {
		return apperror.ValidationFailed("entityId", "entity id is required")
	}

	mode := model.ModeInexact
	if s.caps.CanScheduleExact() {
		mode = model.ModeExact
	}
	p := &model.PendingNotification{
		Key:       model.NotificationKey(req.Kind, req.EntityID),
		Kind:      req.Kind,
		EntityID:  req.EntityID,
		UserID:    req.UserID,
		Instance:  xid.New().String(),
		Title:     req.Title,
		Body:      req.Body,
		Link:      req.Link,
		TriggerAt: req.TriggerAt,
		Mode:      mode,
		CreatedAt: s.clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("notify: scheduler is closed")
	}

	s.disarmLocked(p.Key)
	if err := s.store.UpsertPending(ctx, p); err != nil {
		return apperror.Storage("schedule notification", err)
	}
	delay := max(0, p.TriggerAt.Sub(s.clock.Now()))
	if mode == model.ModeExact {
		s.armLocked(p.Key, p.Instance, delay)
	}

	s.metrics.scheduled.WithLabelValues(string(p.Kind), string(mode)).Inc()
	s.logger.Debug("notification scheduled",
		slog.String("key", p.Key),
		slog.String("mode", string(mode)),
		slog.Duration("delay", delay),
	)
	return nil
}

// Cancel removes the pending notification for the owner, if any. Only a row
// scheduled for userID is touched, so a user can never cancel another
// user's notification by guessing its entity id.
func (s *Scheduler) Cancel(ctx context.Context, userID string, kind model.OwnerKind, entityID string) error {
	key := model.NotificationKey(kind, entityID)

	s.mu.Lock()
	defer s.mu.Unlock()

	existed, err := s.store.DeletePending(ctx, key, userID)
	if err != nil {
		return apperror.Storage("cancel notification", err)
	}
	if existed {
		s.disarmLocked(key)
		s.metrics.cancelled.WithLabelValues(string(kind)).Inc()
		s.logger.Debug("notification cancelled", slog.String("key", key))
	}
	return nil
}

// Pending returns the owner's pending notification, or nil if there is none.
func (s *Scheduler) Pending(ctx context.Context, kind model.OwnerKind, entityID string) (*model.PendingNotification, error) {
	p, err := s.store.GetPending(ctx, model.NotificationKey(kind, entityID))
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage("get pending notification", err)
	}
	return p, nil
}

// Restore arms timers for exact rows left in the table by an earlier
// process. It returns how many it armed. Rows it cannot arm stay for
// SweepDue.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	rows, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, apperror.Storage("restore notifications", err)
	}
	if !s.caps.CanScheduleExact() {
		s.logger.Info("exact alarms unavailable, leaving pending notifications to the sweep",
			slog.Int("pending", len(rows)))
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("notify: scheduler is closed")
	}
	n := 0
	for _, p := range rows {
		if p.Mode != model.ModeExact {
			continue
		}
		if cur, ok := s.timers[p.Key]; ok && cur.instance == p.Instance {
			continue
		}
		s.armLocked(p.Key, p.Instance, max(0, p.TriggerAt.Sub(s.clock.Now())))
		n++
	}
	s.logger.Info("pending notifications restored", slog.Int("armed", n), slog.Int("pending", len(rows)))
	return n, nil
}

// SweepDue fires every due row that no timer is going to handle: inexact
// rows, and exact rows whose timer was lost. It returns how many it fired.
func (s *Scheduler) SweepDue(ctx context.Context) (int, error) {
	due, err := s.store.DuePending(ctx, s.clock.Now())
	if err != nil {
		return 0, apperror.Storage("list due notifications", err)
	}

	fired := 0
	for _, p := range due {
		s.mu.Lock()
		cur, ok := s.timers[p.Key]
		covered := ok && cur.instance == p.Instance && p.Mode == model.ModeExact
		s.mu.Unlock()
		if covered {
			continue
		}
		if s.fire(ctx, p.Key, p.Instance) {
			fired++
		}
	}
	return fired, nil
}

// Close stops every timer and waits for in-flight deliveries. Rows stay in
// the table for Restore.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for key := range s.timers {
		s.disarmLocked(key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) armLocked(key, instance string, delay time.Duration) {
	launch := func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if cur, ok := s.timers[key]; ok && cur.instance == instance {
			delete(s.timers, key)
			s.metrics.armed.Dec()
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
			defer cancel()
			s.fire(ctx, key, instance)
		}()
	}

	if delay <= 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
			defer cancel()
			s.fire(ctx, key, instance)
		}()
		return
	}

	// The callback may run while the clock holds its own lock, so it must not
	// take s.mu synchronously.
	s.timers[key] = armed{instance: instance, timer: s.clock.AfterFunc(delay, func() { go launch() })}
	s.metrics.armed.Inc()
}

func (s *Scheduler) disarmLocked(key string) {
	cur, ok := s.timers[key]
	if !ok {
		return
	}
	cur.timer.Stop()
	delete(s.timers, key)
	s.metrics.armed.Dec()
}

// fire claims the instance and hands it to the handler. It reports whether
// this call won the claim.
func (s *Scheduler) fire(ctx context.Context, key, instance string) bool {
	p, err := s.store.ClaimPending(ctx, key, instance)
	if err != nil {
		s.logger.Error("failed to claim notification", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if p == nil {
		s.logger.Debug("notification superseded before firing", slog.String("key", key))
		return false
	}

	s.metrics.fired.WithLabelValues(string(p.Kind), string(p.Mode)).Inc()
	if err := s.handler.Handle(ctx, *p); err != nil {
		s.logger.Error("notification handler failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return true
}
