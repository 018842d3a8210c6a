package ringbuf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/vmlog/internal/logevent"
)

func event(msg string) *logevent.LogEvent {
	return &logevent.LogEvent{Logger: "test", Level: logevent.LevelInfo, Message: msg}
}

func messages(events []logevent.LogEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Message
	}
	return out
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

func mustNew(t *testing.T, capacity int, opts ...Option) *Buffer {
	t.Helper()
	b, err := New(capacity, opts...)
	if err != nil {
		t.Fatalf("New(%d) returned error: %v", capacity, err)
	}
	return b
}

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(capacity); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("New(%d) error = %v, want ErrInvalidConfig", capacity, err)
		}
	}
}

func TestAdd_NilEventFails(t *testing.T) {
	b := mustNew(t, 2)
	if err := b.Add(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Add(nil) error = %v, want ErrInvalidArgument", err)
	}
	if b.Size() != 0 {
		t.Fatalf("Size = %d after rejected add, want 0", b.Size())
	}
}

func TestAdd_EvictsOldestFirst(t *testing.T) {
	b := mustNew(t, 3)
	for i := 1; i <= 5; i++ {
		if err := b.Add(event(fmt.Sprintf("E%d", i))); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got := messages(b.Snapshot(10)); !equal(got, []string{"E3", "E4", "E5"}) {
		t.Fatalf("Snapshot(10) = %v, want [E3 E4 E5]", got)
	}
	if b.Size() != 3 {
		t.Fatalf("Size = %d, want 3", b.Size())
	}
}

func TestSnapshot_LastCapacityEventsForAnyOverflow(t *testing.T) {
	for _, capacity := range []int{1, 2, 7} {
		for n := capacity + 1; n <= capacity*3+1; n++ {
			b := mustNew(t, capacity)
			var want []string
			for i := 0; i < n; i++ {
				msg := fmt.Sprintf("E%d", i)
				_ = b.Add(event(msg))
				want = append(want, msg)
			}
			want = want[n-capacity:]
			if got := messages(b.Snapshot(capacity)); !equal(got, want) {
				t.Fatalf("cap=%d n=%d Snapshot = %v, want %v", capacity, n, got, want)
			}
			if b.Size() != capacity {
				t.Fatalf("cap=%d n=%d Size = %d", capacity, n, b.Size())
			}
		}
	}
}

func TestSnapshot_Window(t *testing.T) {
	b := mustNew(t, 5)
	for i := 1; i <= 4; i++ {
		_ = b.Add(event(fmt.Sprintf("E%d", i)))
	}
	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{-3, []string{}},
		{2, []string{"E3", "E4"}},
		{4, []string{"E1", "E2", "E3", "E4"}},
		{9, []string{"E1", "E2", "E3", "E4"}},
	}
	for _, tt := range tests {
		if got := messages(b.Snapshot(tt.n)); !equal(got, tt.want) {
			t.Errorf("Snapshot(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestAdd_AssignsIncreasingSequence(t *testing.T) {
	b := mustNew(t, 2)
	for i := 0; i < 5; i++ {
		_ = b.Add(event("x"))
	}
	snap := b.Snapshot(2)
	if snap[0].Seq != 4 || snap[1].Seq != 5 {
		t.Fatalf("seqs = %d,%d want 4,5", snap[0].Seq, snap[1].Seq)
	}
}

func TestAdd_StoresCopy(t *testing.T) {
	b := mustNew(t, 2)
	evt := event("orig")
	evt.Properties = map[string]string{"k": "v"}
	_ = b.Add(evt)
	evt.Message = "changed"
	evt.Properties["k"] = "changed"

	got := b.Snapshot(1)[0]
	if got.Message != "orig" || got.Properties["k"] != "v" {
		t.Fatalf("stored event mutated: %+v", got)
	}
}

func TestClear_EmptiesButKeepsCapacity(t *testing.T) {
	b := mustNew(t, 3)
	for i := 0; i < 5; i++ {
		_ = b.Add(event("x"))
	}
	b.Clear()
	for _, n := range []int{0, 1, 3, 100} {
		if got := b.Snapshot(n); len(got) != 0 {
			t.Fatalf("Snapshot(%d) after Clear = %v, want empty", n, got)
		}
	}
	if b.Cap() != 3 {
		t.Fatalf("Cap = %d, want 3", b.Cap())
	}
	for i := 1; i <= 4; i++ {
		_ = b.Add(event(fmt.Sprintf("N%d", i)))
	}
	if got := messages(b.Snapshot(3)); !equal(got, []string{"N2", "N3", "N4"}) {
		t.Fatalf("Snapshot after refill = %v", got)
	}
}

func TestClear_KeepsQueuedSubscriberItems(t *testing.T) {
	b := mustNew(t, 3)
	sub := b.Subscribe()
	_ = b.Add(event("E1"))
	b.Clear()
	if sub.Len() != 1 {
		t.Fatalf("sub.Len = %d after Clear, want 1", sub.Len())
	}
}

func TestSubscriber_ReceivesInOrder(t *testing.T) {
	b := mustNew(t, 3)
	sub := b.Subscribe()
	for i := 1; i <= 3; i++ {
		_ = b.Add(event(fmt.Sprintf("E%d", i)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 1; i <= 3; i++ {
		got, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if want := fmt.Sprintf("E%d", i); got.Message != want {
			t.Fatalf("Next = %q, want %q", got.Message, want)
		}
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := mustNew(t, 3)
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	_ = b.Add(event("E1"))
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d, want 0", b.Subscribers())
	}
	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrSubscriberClosed) {
		t.Fatalf("Next after Unsubscribe error = %v, want ErrSubscriberClosed", err)
	}
	b.Unsubscribe(sub)
}

func TestAttach_NoGapNoDuplicate(t *testing.T) {
	b := mustNew(t, 100)
	const producers = 4
	const perProducer = 200

	var wg sync.WaitGroup
	start := make(chan struct{})
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < perProducer; i++ {
				_ = b.Add(event("x"))
			}
		}()
	}
	close(start)
	time.Sleep(time.Millisecond)
	backlog, sub := b.Attach(b.Cap())
	wg.Wait()

	seen := make(map[uint64]bool)
	var last uint64
	for _, e := range backlog {
		if e.Seq <= last {
			t.Fatalf("backlog out of order: %d after %d", e.Seq, last)
		}
		last = e.Seq
		seen[e.Seq] = true
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for sub.Len() > 0 {
		e, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if seen[e.Seq] {
			t.Fatalf("seq %d delivered twice", e.Seq)
		}
		if e.Seq != last+1 && last != 0 {
			t.Fatalf("gap: got seq %d after %d", e.Seq, last)
		}
		last = e.Seq
	}
	if last != producers*perProducer {
		t.Fatalf("last seq = %d, want %d", last, producers*perProducer)
	}
}

func TestAttachSince_ReturnsNewerEvents(t *testing.T) {
	b := mustNew(t, 4)
	for i := 1; i <= 6; i++ {
		_ = b.Add(event(fmt.Sprintf("E%d", i)))
	}
	backlog, sub := b.AttachSince(4)
	defer b.Unsubscribe(sub)
	if got := messages(backlog); !equal(got, []string{"E5", "E6"}) {
		t.Fatalf("AttachSince(4) backlog = %v, want [E5 E6]", got)
	}
	backlog, sub2 := b.AttachSince(0)
	defer b.Unsubscribe(sub2)
	if got := messages(backlog); !equal(got, []string{"E3", "E4", "E5", "E6"}) {
		t.Fatalf("AttachSince(0) backlog = %v", got)
	}
	backlog, sub3 := b.AttachSince(99)
	defer b.Unsubscribe(sub3)
	if len(backlog) != 0 {
		t.Fatalf("AttachSince(99) backlog = %v, want empty", messages(backlog))
	}
}

func TestConcurrentAddKeepsOrderAndBound(t *testing.T) {
	b := mustNew(t, 64)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = b.Add(event("x"))
				if i%50 == 0 {
					snap := b.Snapshot(64)
					for j := 1; j < len(snap); j++ {
						if snap[j].Seq != snap[j-1].Seq+1 {
							t.Errorf("torn snapshot: %d then %d", snap[j-1].Seq, snap[j].Seq)
							return
						}
					}
				}
			}
		}()
	}
	wg.Wait()
	if b.Size() != 64 {
		t.Fatalf("Size = %d, want 64", b.Size())
	}
}

func TestClose_ClosesSubscribersAndRejectsAdds(t *testing.T) {
	b := mustNew(t, 2)
	sub := b.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		done <- err
	}()
	b.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrSubscriberClosed) {
			t.Fatalf("Next error = %v, want ErrSubscriberClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Next did not unblock after Close")
	}
	if err := b.Add(event("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Add after Close error = %v, want ErrClosed", err)
	}
	b.Close()

	late := b.Subscribe()
	if !late.Closed() {
		t.Fatalf("Subscribe after Close returned an open subscriber")
	}
}

func TestAccept_SwallowsFailures(t *testing.T) {
	b := mustNew(t, 1)
	b.Close()
	b.Accept(*event("ignored"))
}

type countingObserver struct {
	appended, evicted, failed atomic.Int64
	subs                      atomic.Int64
}

func (o *countingObserver) Appended()         { o.appended.Add(1) }
func (o *countingObserver) Evicted()          { o.evicted.Add(1) }
func (o *countingObserver) Subscribers(n int) { o.subs.Store(int64(n)) }
func (o *countingObserver) DeliveryFailed()   { o.failed.Add(1) }

func TestObserver_CountsActivity(t *testing.T) {
	obs := &countingObserver{}
	b := mustNew(t, 2, WithObserver(obs))
	sub := b.Subscribe()
	for i := 0; i < 5; i++ {
		_ = b.Add(event("x"))
	}
	if obs.appended.Load() != 5 || obs.evicted.Load() != 3 {
		t.Fatalf("appended=%d evicted=%d, want 5 and 3", obs.appended.Load(), obs.evicted.Load())
	}
	if obs.subs.Load() != 1 {
		t.Fatalf("subscribers = %d, want 1", obs.subs.Load())
	}
	b.Unsubscribe(sub)
	if obs.subs.Load() != 0 {
		t.Fatalf("subscribers after Unsubscribe = %d, want 0", obs.subs.Load())
	}
}

func TestObserver_SubscriberGaugeTracksFinalCount(t *testing.T) {
	obs := &countingObserver{}
	b := mustNew(t, 4, WithObserver(obs))

	keep := make([]*Subscriber, 8)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, sub := b.Attach(1)
			if i < len(keep) {
				keep[i] = sub
				return
			}
			b.Unsubscribe(sub)
		}(i)
	}
	wg.Wait()

	if got, want := obs.subs.Load(), int64(b.Subscribers()); got != want || want != int64(len(keep)) {
		t.Fatalf("gauge = %d, Subscribers = %d, want both %d", got, want, len(keep))
	}
}
