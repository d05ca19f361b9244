// Package eventbus implements C10: an in-process, fire-and-forget
// publish/subscribe fan-out used by SSE handlers and the chat bot
// (spec.md §4.9). It has no persistence and no cross-process delivery.
package eventbus

import (
	"sync"

	"github.com/hoopsguild/leaguesim/internal/platform/id"
)

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Event is one envelope published on the bus.
type Event struct {
	Type    string
	Payload any
}

const defaultBufferSize = 64

// Bus is the process-wide publish/subscribe fan-out. The zero value
// is not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	bufferSize  int
	subscribers map[string]map[string]*subscription
}

type subscription struct {
	id     string
	ch     chan Event
	closed bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize overrides the per-subscriber buffer size (default 64).
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// New constructs an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{bufferSize: defaultBufferSize, subscribers: make(map[string]map[string]*subscription)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is a bounded stream of events for one subscriber. Call
// Events to range over received events and Unsubscribe when done.
type Subscription struct {
	bus  *Bus
	typ  string
	sub  *subscription
}

// Events returns the channel to range over. It is closed by
// Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

// Unsubscribe detaches the subscription and closes its channel. Safe
// to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.sub.closed {
		return
	}
	s.sub.closed = true
	close(s.sub.ch)
	delete(s.bus.subscribers[s.typ], s.sub.id)
	if len(s.bus.subscribers[s.typ]) == 0 {
		delete(s.bus.subscribers, s.typ)
	}
}

// Subscribe returns a bounded stream of events of the given type.
// Pass Wildcard to receive every published event regardless of type.
func (b *Bus) Subscribe(eventType string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{id: id.New(), ch: make(chan Event, b.bufferSize)}
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[string]*subscription)
	}
	b.subscribers[eventType][sub.id] = sub
	return &Subscription{bus: b, typ: eventType, sub: sub}
}

// Publish enqueues e into every subscriber of e.Type plus every
// wildcard subscriber. A full subscriber buffer drops its oldest
// queued event to make room (fire-and-forget; spec.md §4.9 "overflow
// drops the oldest event").
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers[e.Type] {
		deliver(sub, e)
	}
	if e.Type != Wildcard {
		for _, sub := range b.subscribers[Wildcard] {
			deliver(sub, e)
		}
	}
}

func deliver(sub *subscription, e Event) {
	if sub.closed {
		return
	}
	for {
		select {
		case sub.ch <- e:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}
