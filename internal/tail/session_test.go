package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/five82/vmlog/internal/console"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/pattern"
	"github.com/five82/vmlog/internal/ringbuf"
)

type recorder struct {
	mu     sync.Mutex
	msgs   []string
	notify chan string
	err    error
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan string, 100)}
}

func (r *recorder) Emit(evt logevent.LogEvent) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, evt.Message)
	r.mu.Unlock()
	r.notify <- evt.Message
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *recorder) waitFor(t *testing.T, msg string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-r.notify:
			if got == msg {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q; emitted %q", msg, r.messages())
		}
	}
}

func event(msg string) *logevent.LogEvent {
	return &logevent.LogEvent{Timestamp: time.Now(), Logger: "svc", Level: logevent.LevelInfo, Message: msg}
}

func newBuffer(t *testing.T, capacity int) *ringbuf.Buffer {
	t.Helper()
	buf, err := ringbuf.New(capacity)
	if err != nil {
		t.Fatalf("ringbuf.New: %v", err)
	}
	return buf
}

func runSession(ctx context.Context, s *Session) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSession_DrainThenLive(t *testing.T) {
	buf := newBuffer(t, 10)
	_ = buf.Add(event("E1"))
	_ = buf.Add(event("E2"))

	rec := newRecorder()
	s := NewSession(NewBufferSource(buf), rec)
	if s.State() != Draining {
		t.Fatalf("initial state = %s, want draining", s.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runSession(ctx, s)
	rec.waitFor(t, "E2")

	_ = buf.Add(event("E3"))
	rec.waitFor(t, "E3")
	if s.State() != Live {
		t.Fatalf("state = %s, want live", s.State())
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State() != Stopped {
		t.Fatalf("state = %s, want stopped", s.State())
	}
	if got, want := rec.messages(), []string{"E1", "E2", "E3"}; !equal(got, want) {
		t.Fatalf("emitted %q, want %q", got, want)
	}
	if buf.Subscribers() != 0 {
		t.Fatalf("subscribers = %d after Run, want 0", buf.Subscribers())
	}
}

func TestSession_StopDiscardsLaterEvents(t *testing.T) {
	buf := newBuffer(t, 10)
	_ = buf.Add(event("E1"))
	_ = buf.Add(event("E2"))

	rec := newRecorder()
	s := NewSession(NewBufferSource(buf), rec)
	done := runSession(context.Background(), s)

	_ = buf.Add(event("E3"))
	rec.waitFor(t, "E3")

	s.Stop()
	_ = buf.Add(event("E4"))

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := rec.messages(), []string{"E1", "E2", "E3"}; !equal(got, want) {
		t.Fatalf("emitted %q, want %q", got, want)
	}
}

func TestSession_Count(t *testing.T) {
	buf := newBuffer(t, 10)
	for i := 1; i <= 5; i++ {
		_ = buf.Add(event(fmt.Sprintf("E%d", i)))
	}

	tests := []struct {
		count int
		want  []string
	}{
		{2, []string{"E4", "E5"}},
		{0, []string{"E1", "E2", "E3", "E4", "E5"}},
		{50, []string{"E1", "E2", "E3", "E4", "E5"}},
	}
	for _, tt := range tests {
		rec := newRecorder()
		ctx, cancel := context.WithCancel(context.Background())
		s := NewSession(NewBufferSource(buf), rec, WithCount(tt.count))
		done := runSession(ctx, s)
		rec.waitFor(t, "E5")
		cancel()
		if err := waitDone(t, done); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := rec.messages(); !equal(got, tt.want) {
			t.Fatalf("WithCount(%d) emitted %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestSession_Filter(t *testing.T) {
	buf := newBuffer(t, 10)
	warn := event("warn")
	warn.Level = logevent.LevelWarn
	_ = buf.Add(event("info"))
	_ = buf.Add(warn)

	rec := newRecorder()
	s := NewSession(NewBufferSource(buf), rec, WithFilter(logevent.AtLeast(logevent.LevelWarn)))
	ctx, cancel := context.WithCancel(context.Background())
	done := runSession(ctx, s)
	rec.waitFor(t, "warn")

	_ = buf.Add(event("info2"))
	errEvt := event("error")
	errEvt.Level = logevent.LevelError
	_ = buf.Add(errEvt)
	rec.waitFor(t, "error")

	cancel()
	_ = waitDone(t, done)
	if got, want := rec.messages(), []string{"warn", "error"}; !equal(got, want) {
		t.Fatalf("emitted %q, want %q", got, want)
	}
}

func TestSession_StopBeforeRun(t *testing.T) {
	buf := newBuffer(t, 4)
	_ = buf.Add(event("E1"))
	rec := newRecorder()
	s := NewSession(NewBufferSource(buf), rec)
	s.Stop()
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.messages()) != 0 {
		t.Fatalf("emitted %q after Stop", rec.messages())
	}
	if s.State() != Stopped {
		t.Fatalf("state = %s, want stopped", s.State())
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("second Run error = %v, want ErrAlreadyRun", err)
	}
}

func TestSession_BufferCloseEndsSession(t *testing.T) {
	buf := newBuffer(t, 4)
	rec := newRecorder()
	s := NewSession(NewBufferSource(buf), rec)
	done := runSession(context.Background(), s)

	_ = buf.Add(event("E1"))
	rec.waitFor(t, "E1")
	buf.Close()

	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSession_EmitErrorEndsSession(t *testing.T) {
	buf := newBuffer(t, 4)
	_ = buf.Add(event("E1"))
	rec := newRecorder()
	rec.err = errors.New("sink closed")

	err := NewSession(NewBufferSource(buf), rec).Run(context.Background())
	if !errors.Is(err, rec.err) {
		t.Fatalf("Run error = %v, want %v", err, rec.err)
	}
	if buf.Subscribers() != 0 {
		t.Fatalf("subscribers = %d, want 0", buf.Subscribers())
	}
}

type failingSource struct{ err error }

func (f failingSource) Attach(int) ([]logevent.LogEvent, *ringbuf.Subscriber, error) {
	return nil, nil, f.err
}

func (failingSource) Detach(*ringbuf.Subscriber) {}

func TestSession_AttachError(t *testing.T) {
	want := errors.New("daemon unreachable")
	s := NewSession(failingSource{err: want}, newRecorder())
	if err := s.Run(context.Background()); !errors.Is(err, want) {
		t.Fatalf("Run error = %v, want %v", err, want)
	}
	if s.State() != Stopped {
		t.Fatalf("state = %s, want stopped", s.State())
	}
}

func TestPatternEmitter(t *testing.T) {
	var out bytes.Buffer
	e := PatternEmitter{
		Pattern: pattern.MustCompile("%p %c - %m"),
		Sink:    console.NewWriter(&out),
	}
	evt := *event("boom")
	evt.Level = logevent.LevelError
	evt.Logger = "svc.Foo"
	if err := e.Emit(evt); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if got, want := out.String(), "ERROR svc.Foo - boom\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}
