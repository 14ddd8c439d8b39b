package observe

import "context"

// SwitchMap subscribes to f(key) for each key received and forwards its
// values, dropping the previous inner stream whenever a new key arrives.
// A value read from an old inner stream but not yet delivered when the key
// changes is discarded, so nothing from a superseded key is emitted after
// the switch.
//
// The output closes when ctx is done, or when keys is closed and the last
// inner stream has finished.
func SwitchMap[K any, T any](ctx context.Context, keys <-chan K, f func(context.Context, K) <-chan T) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		var (
			inner       <-chan T
			cancelInner = func() {}
			pending     T
			hasPending  bool
		)
		defer func() { cancelInner() }()

		for {
			if keys == nil && inner == nil && !hasPending {
				return
			}

			recv := inner
			var send chan<- T
			if hasPending {
				recv = nil
				send = out
			}

			select {
			case k, ok := <-keys:
				if !ok {
					keys = nil
					continue
				}
				cancelInner()
				ictx, cancel := context.WithCancel(ctx)
				cancelInner = cancel
				inner = f(ictx, k)
				var zero T
				pending, hasPending = zero, false

			case v, ok := <-recv:
				if !ok {
					inner = nil
					continue
				}
				pending, hasPending = v, true

			case send <- pending:
				var zero T
				pending, hasPending = zero, false

			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Combine emits f(a, b) each time either input emits, once both have emitted
// at least once. It closes when ctx is done or either input closes.
func Combine[A, B, K any](ctx context.Context, as <-chan A, bs <-chan B, f func(A, B) K) <-chan K {
	out := make(chan K)

	go func() {
		defer close(out)

		var (
			a          A
			b          B
			haveA      bool
			haveB      bool
			pending    K
			hasPending bool
		)

		for {
			var send chan<- K
			if hasPending {
				send = out
			}

			select {
			case v, ok := <-as:
				if !ok {
					return
				}
				a, haveA = v, true
			case v, ok := <-bs:
				if !ok {
					return
				}
				b, haveB = v, true
			case send <- pending:
				hasPending = false
				continue
			case <-ctx.Done():
				return
			}

			if haveA && haveB {
				pending, hasPending = f(a, b), true
			}
		}
	}()

	return out
}
