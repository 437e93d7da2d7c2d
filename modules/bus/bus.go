// Package bus provides a bounded, multi-subscriber broadcast channel for chat messages.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/anon-chat-relay/domain/chat"
)

// DefaultCapacity is the number of messages retained for slow subscribers.
const DefaultCapacity = 1024

// ErrClosed is returned once the bus has been shut down.
var ErrClosed = errors.New("bus: closed")

// LaggedError reports that a subscriber fell more than the bus capacity behind
// and skipped messages. The subscription stays usable.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("bus: subscriber lagged, skipped %d messages", e.Skipped)
}

// Bus broadcasts every published message to every subscriber in publish order.
// Messages live in a ring buffer indexed by a global sequence number; each
// subscription keeps its own cursor into it.
type Bus struct {
	mu          sync.Mutex
	ring        []chat.Message
	head        uint64 // sequence number of the next publish
	closed      bool
	notify      chan struct{}
	subscribers int
}

// New creates a Bus retaining up to capacity messages per subscriber backlog.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		ring:   make([]chat.Message, capacity),
		notify: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Publish appends msg to the stream. It succeeds with zero subscribers and
// never blocks on slow ones.
func (b *Bus) Publish(msg chat.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.ring[b.head%uint64(len(b.ring))] = msg
	b.head++
	b.wakeLocked()
	return nil
}

// Subscribe returns a subscription that observes only messages published after this call.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers++
	return &Subscription{bus: b, next: b.head}
}

// Close shuts the bus down. Subscribers drain what is still buffered for them
// and then receive ErrClosed. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.wakeLocked()
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// SubscriberCount returns the number of open subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribers
}

// Published returns the total number of messages accepted by Publish.
func (b *Bus) Published() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head
}

// wakeLocked releases every receiver parked on the current notify channel.
func (b *Bus) wakeLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}

// Subscription is one receive cursor into the bus. It must be used by a
// single goroutine.
type Subscription struct {
	bus       *Bus
	next      uint64
	closeOnce sync.Once
}

// Recv blocks until the next message is available, ctx is done, or the bus
// is closed and drained. A *LaggedError means messages were skipped; the
// following call continues with the oldest retained message.
func (s *Subscription) Recv(ctx context.Context) (chat.Message, error) {
	b := s.bus
	for {
		if err := ctx.Err(); err != nil {
			return chat.Message{}, err
		}

		b.mu.Lock()
		if s.next < b.head {
			capacity := uint64(len(b.ring))
			var oldest uint64
			if b.head > capacity {
				oldest = b.head - capacity
			}
			if s.next < oldest {
				skipped := oldest - s.next
				s.next = oldest
				b.mu.Unlock()
				return chat.Message{}, &LaggedError{Skipped: skipped}
			}
			msg := b.ring[s.next%capacity]
			s.next++
			b.mu.Unlock()
			return msg, nil
		}
		if b.closed {
			b.mu.Unlock()
			return chat.Message{}, ErrClosed
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return chat.Message{}, ctx.Err()
		}
	}
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		s.bus.subscribers--
		s.bus.mu.Unlock()
	})
}
