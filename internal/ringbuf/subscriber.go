package ringbuf

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/five82/vmlog/internal/logevent"
)

// ErrSubscriberClosed is returned by Next once the subscriber has been closed.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber is an unbounded FIFO of events for one live consumer. Push never
// blocks; Next is the only blocking call.
type Subscriber struct {
	id string

	mu     sync.Mutex
	queue  []logevent.LogEvent
	closed bool

	ready chan struct{}
	done  chan struct{}
}

// NewSubscriber returns an open subscriber not attached to any buffer. Remote
// feeds use it to hand streamed events to a tail session.
func NewSubscriber() *Subscriber {
	return &Subscriber{
		id:    uuid.NewString(),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// ID identifies the subscriber in logs and metrics.
func (s *Subscriber) ID() string {
	return s.id
}

// Push enqueues evt. It returns false when the subscriber is closed.
func (s *Subscriber) Push(evt logevent.LogEvent) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until an event is available, the context ends, or the
// subscriber is closed.
func (s *Subscriber) Next(ctx context.Context) (logevent.LogEvent, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return logevent.LogEvent{}, ErrSubscriberClosed
		}
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue[0] = logevent.LogEvent{}
			s.queue = s.queue[1:]
			if len(s.queue) == 0 {
				s.queue = nil
			}
			s.mu.Unlock()
			return evt, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return logevent.LogEvent{}, ctx.Err()
		case <-s.done:
		case <-s.ready:
		}
	}
}

// Len returns the number of queued events.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Closed reports whether Close has been called.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close discards queued events and wakes a blocked Next. It is idempotent.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
}
