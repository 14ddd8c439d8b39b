// Package observe provides the small reactive toolkit the rest of the app is
// built on: change signals, latest-value holders and query streams.
//
// MODEL:
// A Broker is a pub-sub broadcast of "something changed" signals. Signals are
// coalesced per subscriber (a buffered channel of one), so a slow subscriber
// sees one pending signal no matter how many writes happened meanwhile.
//
// Streams built on top (Query, Value.Watch, SwitchMap, Combine) are plain
// receive-only channels owned by a goroutine. The goroutine exits and closes
// its channel when the context passed at creation is cancelled. Every
// emission replaces the previous one wholesale; consumers never merge.
package observe

import "sync"

// Broker fans change signals out to subscribers.
type Broker struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers ch, which should have a buffer of at least one. The
// returned func removes the subscription and is safe to call more than once.
func (b *Broker) Subscribe(ch chan struct{}) (unsubscribe func()) {
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Publish signals every subscriber without blocking. A subscriber that
// already has a pending signal keeps just that one.
func (b *Broker) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
