// Package eventbus is the coordinator's fan-out broadcast channel for live
// discovery updates: the session registry publishes DiscoveryUpdatePayload
// events here, and the SSE handler (internal/coordinatorapi) subscribes
// one channel per connected UI client. Grounded on the teacher's
// internal/events/bus.go, extended with a per-subscriber dropped-event
// counter so a lagging client can report how far behind it fell (spec.md
// §5 "Backpressure").
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/Will-Luck/Docker-Sentinel/internal/model"
)

// bufferSize is the fixed ring buffer per subscriber, per spec.md §5's
// "design value: 100".
const bufferSize = 100

// Bus is a multi-producer, multi-subscriber fan-out channel. Publish never
// blocks: a subscriber that falls behind has old events dropped instead of
// stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	next uint64
}

type subscription struct {
	ch      chan model.UpdatePayload
	dropped atomic.Uint64
}

// New creates a ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Publish sends an update to every current subscriber. A subscriber whose
// buffer is full loses its oldest queued event to make room for this one,
// and its lag counter is incremented.
func (b *Bus) Publish(update model.UpdatePayload) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- update:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- update:
			default:
			}
			sub.dropped.Add(1)
		}
	}
}

// Subscription is a live subscriber handle returned by Subscribe.
type Subscription struct {
	C      <-chan model.UpdatePayload
	cancel func()
	sub    *subscription
}

// Dropped returns how many events have been dropped for this subscriber
// since it subscribed, because its buffer was full when Publish ran.
func (s *Subscription) Dropped() uint64 {
	return s.sub.dropped.Load()
}

// Close unsubscribes and releases the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.cancel()
}

// Subscribe returns a handle receiving all future updates. The caller must
// call Close when done to avoid leaking the subscriber slot.
func (b *Bus) Subscribe() *Subscription {
	sub := &subscription{ch: make(chan model.UpdatePayload, bufferSize)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}

	return &Subscription{C: sub.ch, cancel: cancel, sub: sub}
}

// SubscriberCount reports how many subscribers are currently attached,
// mainly for diagnostics/tests.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
