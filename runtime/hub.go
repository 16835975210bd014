package runtime

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
)

const DefaultHubCapacity = 64

// LaggedError is returned by a subscription that fell more than the hub
// capacity behind. Count is the exact number of events it will never see.
// The subscription stays usable: the next receive returns the oldest retained event.
type LaggedError struct {
	Count uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged behind, %d event(s) dropped", e.Count)
}

type HubStats struct {
	Capacity    int
	Subscribers int
	Published   uint64
	Dropped     uint64
}

// Hub is a bounded multi-consumer broadcast queue.
//
// Events live in a ring of fixed capacity indexed by a monotonic sequence
// number. Every subscription keeps its own cursor; publishing never waits for
// readers; a reader whose cursor falls off the ring is moved forward and told
// how many events it lost.
type Hub struct {
	mu          sync.Mutex
	ring        []event.Event
	capacity    uint64
	tail        uint64 // sequence of the next published event
	subscribers int
	closed      bool
	wake        chan struct{} // closed then replaced on each publish

	dropped atomic.Uint64
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultHubCapacity
	}
	return &Hub{
		ring:     make([]event.Event, capacity),
		capacity: uint64(capacity),
		wake:     make(chan struct{}),
	}
}

// Publish appends evt and wakes every waiting subscriber.
// It never blocks on readers. Without subscribers the event is discarded.
// The returned value is the number of subscriptions the event was offered to.
func (h *Hub) Publish(evt event.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.subscribers == 0 {
		return 0
	}
	h.ring[h.tail%h.capacity] = evt
	h.tail++
	close(h.wake)
	h.wake = make(chan struct{})
	return h.subscribers
}

// Subscribe returns a cursor positioned after the last published event.
// Nothing published before the call is ever delivered to it.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers++
	return &Subscription{hub: h, next: h.tail}
}

// Close stops the hub. Pending events can still be drained, after which every
// subscription reports errors.ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.wake)
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HubStats{
		Capacity:    int(h.capacity),
		Subscribers: h.subscribers,
		Published:   h.tail,
		Dropped:     h.dropped.Load(),
	}
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Subscription is one reader's view of the hub.
// It must be used by a single goroutine.
type Subscription struct {
	hub    *Hub
	next   uint64
	closed bool
}

// TryRecv returns the next event without waiting.
// It returns errors.ErrHubEmpty when the subscription is caught up,
// a *LaggedError when events were dropped, and errors.ErrHubClosed once
// the hub is closed and drained.
func (s *Subscription) TryRecv() (event.Event, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return nil, errors.ErrHubClosed
	}
	if h.tail-s.next > h.capacity {
		oldest := h.tail - h.capacity
		missed := oldest - s.next
		s.next = oldest
		h.dropped.Add(missed)
		return nil, &LaggedError{Count: missed}
	}
	if s.next == h.tail {
		if h.closed {
			return nil, errors.ErrHubClosed
		}
		return nil, errors.ErrHubEmpty
	}
	evt := h.ring[s.next%h.capacity]
	s.next++
	return evt, nil
}

// Ready returns a channel that is closed when TryRecv has something to report.
// A fresh channel must be requested after every wake-up.
func (s *Subscription) Ready() <-chan struct{} {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed || h.closed || s.next != h.tail {
		return closedChan
	}
	return h.wake
}

// Recv blocks until an event, a lag report or hub closure is available.
func (s *Subscription) Recv(ctx context.Context) (event.Event, error) {
	for {
		evt, err := s.TryRecv()
		if !stderrors.Is(err, errors.ErrHubEmpty) {
			return evt, err
		}
		select {
		case <-s.Ready():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close detaches the subscription from the hub. It is safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	h.subscribers--
}
