// Package worker runs the app's periodic background jobs: sweeping due
// reminders and firing notifications that no timer is waiting on.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a registered periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	lastError error
}

// TaskInfo is a snapshot of a task for monitoring.
type TaskInfo struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"lastRun"`
	NextRun   time.Time `json:"nextRun"`
	RunCount  int64     `json:"runCount"`
	LastError *string   `json:"lastError,omitempty"`
}

// Runner checks its tasks on every tick of the clock and runs the ones that
// are due, one after another.
type Runner struct {
	clock      clockwork.Clock
	resolution time.Duration
	logger     *slog.Logger

	mu    sync.RWMutex
	tasks []*Task

	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewRunner builds a Runner that wakes every resolution.
func NewRunner(clock clockwork.Clock, resolution time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		clock:      clock,
		resolution: resolution,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Register adds a task. Its first run is one interval from now.
func (r *Runner) Register(name string, interval time.Duration, run func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = append(r.tasks, &Task{
		Name:     name,
		Interval: interval,
		Run:      run,
		nextRun:  r.clock.Now().Add(interval),
	})
	r.logger.Info("background task registered", slog.String("task", name), slog.Duration("interval", interval))
}

// Start runs the tick loop in the background until Stop or ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ticker := r.clock.NewTicker(r.resolution)
			defer ticker.Stop()

			for {
				select {
				case <-r.stop:
					return
				case <-ctx.Done():
					return
				case now := <-ticker.Chan():
					r.tick(ctx, now)
				}
			}
		}()
		r.logger.Info("background worker started", slog.Duration("resolution", r.resolution))
	})
}

func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
		r.logger.Info("background worker stopped")
	})
}

// RunAll runs every task once, regardless of schedule.
func (r *Runner) RunAll(ctx context.Context) {
	now := r.clock.Now()
	for _, task := range r.snapshot() {
		r.run(ctx, task, now)
	}
}

func (r *Runner) snapshot() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]*Task, len(r.tasks))
	copy(tasks, r.tasks)
	return tasks
}

func (r *Runner) tick(ctx context.Context, now time.Time) {
	for _, task := range r.snapshot() {
		r.mu.RLock()
		due := !now.Before(task.nextRun)
		r.mu.RUnlock()
		if due {
			r.run(ctx, task, now)
		}
	}
}

func (r *Runner) run(ctx context.Context, task *Task, now time.Time) {
	err := task.Run(ctx)
	if err != nil {
		r.logger.Error("background task failed", slog.String("task", task.Name), slog.String("error", err.Error()))
	}

	r.mu.Lock()
	task.lastError = err
	task.lastRun = now
	task.nextRun = now.Add(task.Interval)
	task.runCount++
	r.mu.Unlock()
}

// Tasks lists registered tasks in registration order.
func (r *Runner) Tasks() []TaskInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		info := TaskInfo{
			Name:     t.Name,
			Interval: t.Interval.String(),
			LastRun:  t.lastRun,
			NextRun:  t.nextRun,
			RunCount: t.runCount,
		}
		if t.lastError != nil {
			msg := t.lastError.Error()
			info.LastError = &msg
		}
		out = append(out, info)
	}
	return out
}
