package client

import (
	"context"
	"errors"
	"sync"

	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/ringbuf"
	"github.com/five82/vmlog/internal/tail"
)

var _ tail.Source = (*Feed)(nil)

var errDetached = errors.New("feed detached")

// Feed is a tail source backed by the daemon: the backlog comes from
// FetchLogs and live events from a stream resumed at the batch cursor, so
// nothing is missed or repeated between the two.
type Feed struct {
	client *Client
	ctx    context.Context
	level  string

	mu      sync.Mutex
	cancels map[*ringbuf.Subscriber]context.CancelFunc
	err     error
}

// Feed returns a tail source for this client. Streams stop when ctx ends.
// A non-empty level filters on the daemon side.
func (c *Client) Feed(ctx context.Context, level string) *Feed {
	return &Feed{client: c, ctx: ctx, level: level, cancels: make(map[*ringbuf.Subscriber]context.CancelFunc)}
}

// Attach fetches up to n recent events (all when n <= 0) and starts a stream
// feeding the returned subscriber.
func (f *Feed) Attach(n int) ([]logevent.LogEvent, *ringbuf.Subscriber, error) {
	batch, err := f.client.FetchLogs(f.ctx, LogQuery{Limit: n, Level: f.level})
	if err != nil {
		return nil, nil, err
	}

	sub := ringbuf.NewSubscriber()
	ctx, cancel := context.WithCancel(f.ctx)
	f.mu.Lock()
	f.cancels[sub] = cancel
	f.mu.Unlock()

	go func() {
		defer sub.Close()
		err := f.client.Stream(ctx, StreamQuery{Since: batch.Next, HasSince: true, Level: f.level}, func(evt logevent.LogEvent) error {
			if !sub.Push(evt) {
				return errDetached
			}
			return nil
		})
		if err != nil && ctx.Err() == nil && !errors.Is(err, errDetached) {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
		}
	}()
	return batch.Events, sub, nil
}

// Detach stops the stream behind sub.
func (f *Feed) Detach(sub *ringbuf.Subscriber) {
	if sub == nil {
		return
	}
	f.mu.Lock()
	cancel := f.cancels[sub]
	delete(f.cancels, sub)
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	sub.Close()
}

// Err returns the error that ended a stream early, if any.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
