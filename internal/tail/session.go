package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/ringbuf"
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("tail session already run")

// State is the lifecycle stage of a Session.
type State int32

const (
	Draining State = iota
	Live
	Stopped
)

func (s State) String() string {
	switch s {
	case Draining:
		return "draining"
	case Live:
		return "live"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source supplies a backlog and a live subscriber. Attach must return the
// backlog and register the subscriber atomically.
type Source interface {
	Attach(n int) ([]logevent.LogEvent, *ringbuf.Subscriber, error)
	Detach(sub *ringbuf.Subscriber)
}

// Emitter outputs one event.
type Emitter interface {
	Emit(evt logevent.LogEvent) error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCount limits the backlog to the newest n events. Zero or less means
// every retained event.
func WithCount(n int) SessionOption {
	return func(s *Session) { s.count = n }
}

// WithFilter drops events for which keep returns false, in the backlog and
// while live.
func WithFilter(keep func(logevent.LogEvent) bool) SessionOption {
	return func(s *Session) { s.filter = keep }
}

// WithLogger sets the logger for session lifecycle messages.
func WithLogger(log logrus.FieldLogger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// Session drains a backlog and then streams live events to an Emitter until
// it is stopped or its context ends.
type Session struct {
	src    Source
	emit   Emitter
	count  int
	filter func(logevent.LogEvent) bool
	log    logrus.FieldLogger

	state atomic.Int32

	mu      sync.Mutex
	ran     bool
	stopped bool
	cancel  context.CancelFunc
}

// NewSession creates a session reading from src and writing to emit.
func NewSession(src Source, emit Emitter, opts ...SessionOption) *Session {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	s := &Session{src: src, emit: emit, log: quiet}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stop ends the session. Events not yet emitted are discarded. Safe to call
// at any time, including before Run.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Run emits the backlog, then live events, until ctx is cancelled, Stop is
// called or the subscriber is closed by the source. Cancellation is not an
// error; an Emit failure is returned.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return ErrAlreadyRun
	}
	s.ran = true
	if s.stopped {
		s.mu.Unlock()
		s.state.Store(int32(Stopped))
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	backlog, sub, err := s.src.Attach(s.count)
	if err != nil {
		s.state.Store(int32(Stopped))
		return fmt.Errorf("attach: %w", err)
	}
	defer func() {
		s.src.Detach(sub)
		s.state.Store(int32(Stopped))
	}()

	log := s.log.WithField("subscriber", sub.ID())
	log.WithField("backlog", len(backlog)).Debug("tail session draining")

	for _, evt := range backlog {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.emitOne(evt); err != nil {
			return err
		}
	}

	s.state.CompareAndSwap(int32(Draining), int32(Live))
	log.Debug("tail session live")

	for {
		evt, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ringbuf.ErrSubscriberClosed) {
				log.Debug("tail session stopped")
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := s.emitOne(evt); err != nil {
			return err
		}
	}
}

func (s *Session) emitOne(evt logevent.LogEvent) error {
	if s.filter != nil && !s.filter(evt) {
		return nil
	}
	if err := s.emit.Emit(evt); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	return nil
}

// BufferSource attaches sessions to a local ring buffer.
type BufferSource struct {
	buf *ringbuf.Buffer
}

// NewBufferSource wraps buf.
func NewBufferSource(buf *ringbuf.Buffer) *BufferSource {
	return &BufferSource{buf: buf}
}

// Attach returns the newest n events (all when n <= 0) and a live subscriber.
func (b *BufferSource) Attach(n int) ([]logevent.LogEvent, *ringbuf.Subscriber, error) {
	if n <= 0 {
		n = b.buf.Cap()
	}
	backlog, sub := b.buf.Attach(n)
	return backlog, sub, nil
}

// Detach unregisters sub from the buffer.
func (b *BufferSource) Detach(sub *ringbuf.Subscriber) {
	b.buf.Unsubscribe(sub)
}
