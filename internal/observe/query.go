package observe

import (
	"context"
	"time"
)

// Result is one emission of a query stream.
type Result[T any] struct {
	Value T
	Err   error
}

// Wake returns a channel that fires once when the stream should refresh on
// its own, plus a func that releases it. It is called again after each
// emission so the deadline can move (midnight, for example).
type Wake func() (<-chan time.Time, func())

// Query emits fetch's result immediately and again after every signal from
// any of the brokers, until ctx is done. The subscription is taken before the
// first fetch, so a write that commits while the first fetch runs still
// produces a fresh emission.
func Query[T any](ctx context.Context, fetch func(context.Context) (T, error), brokers ...*Broker) <-chan Result[T] {
	return QueryWake(ctx, fetch, nil, brokers...)
}

// QueryWake is Query with an additional self-refresh trigger.
func QueryWake[T any](ctx context.Context, fetch func(context.Context) (T, error), wake Wake, brokers ...*Broker) <-chan Result[T] {
	out := make(chan Result[T])
	dirty := make(chan struct{}, 1)

	unsubs := make([]func(), 0, len(brokers))
	for _, b := range brokers {
		unsubs = append(unsubs, b.Subscribe(dirty))
	}

	go func() {
		defer close(out)
		defer func() {
			for _, u := range unsubs {
				u()
			}
		}()

		for {
			v, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Result[T]{Value: v, Err: err}:
			case <-ctx.Done():
				return
			}

			var (
				wakeC <-chan time.Time
				stop  = func() {}
			)
			if wake != nil {
				wakeC, stop = wake()
			}
			select {
			case <-dirty:
			case <-wakeC:
			case <-ctx.Done():
				stop()
				return
			}
			stop()
		}
	}()

	return out
}
