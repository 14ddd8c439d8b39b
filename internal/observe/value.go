package observe

import (
	"context"
	"sync"
)

// Value holds a single latest value and lets readers watch it change.
type Value[T comparable] struct {
	mu      sync.RWMutex
	v       T
	changed *Broker
}

func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{v: initial, changed: NewBroker()}
}

func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.v
}

// Store replaces the value and notifies watchers if it differs.
func (v *Value[T]) Store(x T) {
	v.mu.Lock()
	if v.v == x {
		v.mu.Unlock()
		return
	}
	v.v = x
	v.mu.Unlock()
	v.changed.Publish()
}

// Watch emits the current value, then every distinct value after it.
// Intermediate values may be skipped if the reader is slow; the latest
// value is never skipped.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	out := make(chan T)
	in := Query(ctx, func(context.Context) (T, error) { return v.Load(), nil }, v.changed)

	go func() {
		defer close(out)
		var (
			last T
			seen bool
		)
		for r := range in {
			if seen && r.Value == last {
				continue
			}
			last, seen = r.Value, true
			select {
			case out <- r.Value:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
