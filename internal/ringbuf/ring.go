package ringbuf

import (
	"errors"
	"fmt"
	"sync"

	"github.com/five82/vmlog/internal/logevent"
)

var (
	// ErrInvalidConfig reports a buffer capacity that is not positive.
	ErrInvalidConfig = errors.New("invalid buffer config")
	// ErrInvalidArgument reports a nil event passed to Add.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrClosed reports an Add after the buffer was closed.
	ErrClosed = errors.New("buffer closed")
)

// Observer receives buffer activity notifications. Subscribers is called
// under the ring lock so counts arrive in order; the other calls are made
// outside it. Implementations must not call back into the buffer.
type Observer interface {
	Appended()
	Evicted()
	Subscribers(n int)
	DeliveryFailed()
}

type nopObserver struct{}

func (nopObserver) Appended()       {}
func (nopObserver) Evicted()        {}
func (nopObserver) Subscribers(int) {}
func (nopObserver) DeliveryFailed() {}

// Option configures a Buffer.
type Option func(*Buffer)

// WithObserver registers an Observer for buffer activity.
func WithObserver(o Observer) Option {
	return func(b *Buffer) {
		if o != nil {
			b.observer = o
		}
	}
}

// Buffer is a fixed-capacity circular store of log events with live fan-out
// to subscribers.
type Buffer struct {
	mu     sync.Mutex
	slots  []logevent.LogEvent
	head   int // oldest event
	tail   int // next write position
	full   bool
	seq    uint64
	subs   []*Subscriber // replaced, never mutated in place
	closed bool

	// deliver is taken before mu is released in Add so fan-out runs outside
	// the ring lock while subscribers still see insertion order.
	deliver sync.Mutex

	observer Observer
}

// New creates a Buffer holding at most capacity events.
func New(capacity int, opts ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d must be greater than 0", ErrInvalidConfig, capacity)
	}
	b := &Buffer{
		slots:    make([]logevent.LogEvent, capacity),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.slots)
}

// Size returns the number of retained events.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size()
}

func (b *Buffer) size() int {
	switch {
	case b.full:
		return len(b.slots)
	case b.tail >= b.head:
		return b.tail - b.head
	default:
		return len(b.slots) - b.head + b.tail
	}
}

// Add stores a copy of evt, evicting the oldest event when the buffer is
// full, and delivers it to every registered subscriber.
func (b *Buffer) Add(evt *logevent.LogEvent) error {
	if evt == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidArgument)
	}
	stored := evt.Clone()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	evicted := false
	if b.full {
		b.slots[b.head] = logevent.LogEvent{}
		b.head = (b.head + 1) % len(b.slots)
		b.full = false
		evicted = true
	}
	b.seq++
	stored.Seq = b.seq
	b.slots[b.tail] = stored
	b.tail = (b.tail + 1) % len(b.slots)
	if b.tail == b.head {
		b.full = true
	}
	subs := b.subs
	b.deliver.Lock()
	b.mu.Unlock()

	failed := b.fanout(subs, stored)
	b.deliver.Unlock()

	if evicted {
		b.observer.Evicted()
	}
	b.observer.Appended()
	for i := 0; i < failed; i++ {
		b.observer.DeliveryFailed()
	}
	return nil
}

// Accept is the event-source entry point. It never reports failures back to
// the logging call path.
func (b *Buffer) Accept(evt logevent.LogEvent) {
	defer func() { _ = recover() }()
	_ = b.Add(&evt)
}

func (b *Buffer) fanout(subs []*Subscriber, evt logevent.LogEvent) int {
	failed := 0
	for _, sub := range subs {
		if !deliver(sub, evt) {
			failed++
		}
	}
	return failed
}

func deliver(sub *Subscriber, evt logevent.LogEvent) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	// A closed subscriber is mid-unsubscribe; skipping it is not a failure.
	sub.Push(evt)
	return true
}

// Snapshot returns the newest min(n, Size()) events, oldest first. The
// returned events share trace and property storage with the buffer and must
// be treated as read-only.
func (b *Buffer) Snapshot(n int) []logevent.LogEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastLocked(n)
}

func (b *Buffer) lastLocked(n int) []logevent.LogEvent {
	size := b.size()
	if n > size {
		n = size
	}
	if n <= 0 {
		return []logevent.LogEvent{}
	}
	out := make([]logevent.LogEvent, n)
	for i := 0; i < n; i++ {
		out[i] = b.slots[(b.head+size-n+i)%len(b.slots)]
	}
	return out
}

// Clear drops every retained event. Capacity, sequence numbering and
// subscribers are unaffected.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.slots {
		b.slots[i] = logevent.LogEvent{}
	}
	b.head = 0
	b.tail = 0
	b.full = false
}

// Subscribe registers a subscriber that receives every event added after
// this call.
func (b *Buffer) Subscribe() *Subscriber {
	_, sub := b.Attach(0)
	return sub
}

// Attach atomically returns the newest n events and registers a subscriber,
// so nothing added concurrently is missed or delivered twice.
func (b *Buffer) Attach(n int) ([]logevent.LogEvent, *Subscriber) {
	sub := NewSubscriber()
	b.mu.Lock()
	backlog := b.lastLocked(n)
	b.observer.Subscribers(b.register(sub))
	b.mu.Unlock()
	return backlog, sub
}

// AttachSince atomically returns every retained event with a sequence
// greater than seq and registers a subscriber.
func (b *Buffer) AttachSince(seq uint64) ([]logevent.LogEvent, *Subscriber) {
	sub := NewSubscriber()
	b.mu.Lock()
	all := b.lastLocked(b.size())
	start := len(all)
	for i, evt := range all {
		if evt.Seq > seq {
			start = i
			break
		}
	}
	b.observer.Subscribers(b.register(sub))
	b.mu.Unlock()
	return all[start:], sub
}

func (b *Buffer) register(sub *Subscriber) int {
	if b.closed {
		sub.Close()
		return len(b.subs)
	}
	next := make([]*Subscriber, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, sub)
	return len(b.subs)
}

// Unsubscribe removes sub and releases its queue. Unknown or already removed
// subscribers are ignored.
func (b *Buffer) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	next := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s != sub {
			next = append(next, s)
		}
	}
	b.subs = next
	b.observer.Subscribers(len(next))
	b.mu.Unlock()

	sub.Close()
}

// Subscribers returns the number of registered subscribers.
func (b *Buffer) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the buffer down and forcibly closes every subscriber. It is
// safe to call more than once.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.observer.Subscribers(0)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
