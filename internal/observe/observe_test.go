package observe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// recv reads one value or fails the test.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

func TestBroker_CoalescesSignals(t *testing.T) {
	b := NewBroker()
	ch := make(chan struct{}, 1)
	unsub := b.Subscribe(ch)

	b.Publish()
	b.Publish()
	b.Publish()

	assert.Len(t, ch, 1)
	unsub()
	unsub()
	assert.Equal(t, 0, b.Subscribers())
}

func TestQuery_ReemitsAfterPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroker()
	var n atomic.Int32
	stream := Query(ctx, func(context.Context) (int32, error) {
		return n.Add(1), nil
	}, b)

	assert.Equal(t, int32(1), recv(t, stream).Value)

	b.Publish()
	assert.Equal(t, int32(2), recv(t, stream).Value)
}

func TestQuery_CarriesErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	stream := Query(ctx, func(context.Context) (int, error) { return 0, boom })

	r := recv(t, stream)
	assert.ErrorIs(t, r.Err, boom)
}

func TestQuery_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroker()
	stream := Query(ctx, func(context.Context) (int, error) { return 1, nil }, b)
	recv(t, stream)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, waitFor, 5*time.Millisecond)
}

func TestQueryWake_RefreshesWithoutPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tick := make(chan time.Time, 1)
	wake := func() (<-chan time.Time, func()) { return tick, func() {} }

	var n atomic.Int32
	stream := QueryWake(ctx, func(context.Context) (int32, error) { return n.Add(1), nil }, wake)

	assert.Equal(t, int32(1), recv(t, stream).Value)
	tick <- time.Now()
	assert.Equal(t, int32(2), recv(t, stream).Value)
}

func TestValue_WatchEmitsDistinctChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := NewValue("a")
	w := v.Watch(ctx)
	assert.Equal(t, "a", recv(t, w))

	v.Store("a") // no change, no emission
	v.Store("b")
	assert.Equal(t, "b", recv(t, w))
	assert.Equal(t, "b", v.Load())
}

func TestSwitchMap_DropsSupersededKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys := make(chan string)
	released := make(chan struct{})

	out := SwitchMap(ctx, keys, func(ctx context.Context, k string) <-chan string {
		ch := make(chan string)
		go func() {
			defer close(ch)
			if k == "A" {
				// A's result only becomes available after the switch to B.
				select {
				case <-released:
				case <-ctx.Done():
				}
			}
			select {
			case ch <- k:
			case <-ctx.Done():
			}
		}()
		return ch
	})

	keys <- "A"
	keys <- "B"
	close(released)

	assert.Equal(t, "B", recv(t, out))

	select {
	case v, ok := <-out:
		if ok {
			t.Fatalf("unexpected emission %q after switch", v)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSwitchMap_ClosesAfterKeysAndInnerFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys := make(chan int, 1)
	keys <- 3
	close(keys)

	out := SwitchMap(ctx, keys, func(_ context.Context, n int) <-chan int {
		ch := make(chan int, n)
		for i := 0; i < n; i++ {
			ch <- i
		}
		close(ch)
		return ch
	})

	var got []int
	for v := range out {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestCombine_WaitsForBothThenTracksLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	as := make(chan string)
	bs := make(chan int)
	out := Combine(ctx, as, bs, func(a string, b int) string {
		return a + ":" + string(rune('0'+b))
	})

	go func() {
		as <- "u1"
		bs <- 1
	}()
	require.Equal(t, "u1:1", recv(t, out))

	go func() { as <- "u2" }()
	assert.Equal(t, "u2:1", recv(t, out))
}
