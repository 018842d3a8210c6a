package tail

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
)

// KeySource reads single keys. Close must unblock a pending ReadKey.
type KeySource interface {
	ReadKey() (int, error)
	Close() error
}

// WatchKeys reads keys until one asks to quit, then calls cancel. A negative
// key (end of input), Ctrl-C, Ctrl-D or a read error all end the watch.
// Other keys are ignored.
func WatchKeys(ctx context.Context, keys KeySource, cancel context.CancelFunc) {
	defer cancel()
	for ctx.Err() == nil {
		key, err := keys.ReadKey()
		if err != nil {
			return
		}
		switch {
		case key < 0, key == keyCtrlC, key == keyCtrlD:
			return
		}
	}
}

// Follow runs session and a key watcher together. Whichever finishes first
// ends the other; keys is closed before Follow returns.
func Follow(ctx context.Context, session *Session, keys KeySource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { _ = keys.Close() }()
		defer cancel()
		return session.Run(gctx)
	})
	g.Go(func() error {
		WatchKeys(gctx, keys, cancel)
		return nil
	})
	return g.Wait()
}
