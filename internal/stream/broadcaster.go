// Package stream provides channel fan-out of immutable snapshots to
// subscribers (SSE clients, tests, coordinator wiring).
package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Broadcaster fans values out to subscriber channels. Sends never block;
// subscribers that fall behind miss intermediate snapshots, which is fine
// because every snapshot is complete.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]chan T
	closed      bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[string]chan T),
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel is buffered so a burst of snapshots does not drop the latest.
func (b *Broadcaster[T]) Subscribe() (string, <-chan T) {
	id := uuid.NewString()
	ch := make(chan T, 16)

	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[id] = ch
	}
	b.mu.Unlock()

	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster[T]) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Broadcast delivers v to every subscriber without blocking.
func (b *Broadcaster[T]) Broadcast(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			// Skip slow subscribers
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels; later Subscribe calls get a closed
// channel so readers exit promptly.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
